package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/quaero/internal/app"
	"github.com/ternarybob/quaero/internal/common"
)

func main() {
	configPath := os.Getenv("QUAERO_CONFIG")
	if configPath == "" {
		configPath = "deployment.json"
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal console-only logging to avoid cluttering MCP stdio.
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Shutdown()

	mcpServer := server.NewMCPServer(
		"quaero",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	registry := application.Registry
	mcpServer.AddTool(createSearchDocumentsTool(), handleSearchDocuments(registry, logger))
	mcpServer.AddTool(createFetchDocumentTool(), handleFetchDocument(registry, logger))
	mcpServer.AddTool(createBrowseTreeTool(), handleBrowseTree(registry, logger))
	mcpServer.AddTool(createTriggerSyncTool(), handleTriggerSync(registry, logger))
	mcpServer.AddTool(createListTenantsTool(), handleListTenants(registry, logger))

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
