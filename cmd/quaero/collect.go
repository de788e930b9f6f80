// -----------------------------------------------------------------------
// Last Modified: Wednesday, 8th October 2025 5:03:03 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/quaero/internal/app"
)

var (
	collectTenant        string
	collectForceCrawler  bool
	collectForceFullSync bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Trigger one tenant's sync cycle and wait for it to settle",
	Long:  `Builds the tenant registry, triggers an immediate sync cycle for one tenant, and polls sync/status until it stops running.`,
	Run:   runCollect,
}

func init() {
	collectCmd.Flags().StringVarP(&collectTenant, "tenant", "t", "", "Tenant codename to sync (required)")
	collectCmd.Flags().BoolVar(&collectForceCrawler, "force-crawler", false, "Passed to the sync cycle, which does not read it; every crawl fetches all URLs")
	collectCmd.Flags().BoolVar(&collectForceFullSync, "force-full-sync", false, "Request a full index rebuild; no changed-path list reaches the indexer, so every rebuild covers all documents")
}

func runCollect(cmd *cobra.Command, args []string) {
	if collectTenant == "" {
		fmt.Fprintln(os.Stderr, "collect requires --tenant")
		os.Exit(1)
	}

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer application.Shutdown()

	runtime, err := application.Registry.Resolve(collectTenant)
	if err != nil {
		logger.Fatal().Err(err).Str("tenant", collectTenant).Msg("unknown tenant")
	}
	if runtime.Scheduler == nil {
		logger.Fatal().Str("tenant", collectTenant).Msg("tenant has no scheduler configured (filesystem-backed tenants sync externally)")
	}

	if err := runtime.Scheduler.TriggerSync(collectForceCrawler, collectForceFullSync); err != nil {
		logger.Fatal().Err(err).Msg("failed to trigger sync")
	}
	logger.Info().Str("tenant", collectTenant).Msg("sync triggered, waiting for completion")

	for {
		time.Sleep(2 * time.Second)
		stats := runtime.Scheduler.Stats()
		if !stats.Running {
			if stats.LastError != "" {
				logger.Error().Str("tenant", collectTenant).Str("error", stats.LastError).Msg("sync finished with an error")
				os.Exit(1)
			}
			logger.Info().Str("tenant", collectTenant).Msg("sync complete")
			return
		}
	}
}
