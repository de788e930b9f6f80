// -----------------------------------------------------------------------
// Last Modified: Wednesday, 8th October 2025 5:03:03 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/quaero/internal/app"
	"github.com/ternarybob/quaero/internal/common"
	"github.com/ternarybob/quaero/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server exposing the Tenant API",
	Long:  `Starts Quaero's HTTP server: search/fetch/browse_tree/sync endpoints over every registered tenant, plus scheduled sync cycles.`,
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer application.Shutdown()

	shutdownChan := make(chan struct{})

	srv := server.New(application)
	srv.SetShutdownChannel(shutdownChan)

	startErrChan := make(chan error, 1)
	common.SafeGo(logger, "http-server", func() {
		if err := srv.Start(); err != nil {
			startErrChan <- err
		}
	})

	logger.Info().
		Int("port", config.Infrastructure.MCPPort).
		Msg(fmt.Sprintf("server ready at http://localhost:%d — press Ctrl+C to stop", config.Infrastructure.MCPPort))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info().Msg("interrupt signal received")
	case <-shutdownChan:
		logger.Info().Msg("shutdown requested via HTTP")
	case err := <-startErrChan:
		logger.Fatal().Err(err).Msg("server failed")
	}

	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
