package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quaero/internal/tenant"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(text)}}
}

// handleSearchDocuments implements the search_documents tool.
func handleSearchDocuments(registry *tenant.Registry, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenantName, err := request.RequireString("tenant")
		if err != nil || tenantName == "" {
			return textResult("Error: tenant parameter is required"), nil
		}
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return textResult("Error: query parameter is required"), nil
		}

		rt, err := registry.Resolve(tenantName)
		if err != nil {
			return textResult(fmt.Sprintf("Error: %v", err)), nil
		}

		maxResults := request.GetInt("max_results", 20)
		wordMatch := request.GetBool("word_match", false)

		resp, err := rt.Search(ctx, query, maxResults, wordMatch)
		if err != nil {
			logger.Error().Err(err).Str("tenant", tenantName).Msg("search failed")
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}

		return textResult(formatSearchResults(query, resp.Results)), nil
	}
}

// handleFetchDocument implements the fetch_document tool.
func handleFetchDocument(registry *tenant.Registry, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenantName, err := request.RequireString("tenant")
		if err != nil || tenantName == "" {
			return textResult("Error: tenant parameter is required"), nil
		}
		uri, err := request.RequireString("uri")
		if err != nil || uri == "" {
			return textResult("Error: uri parameter is required"), nil
		}

		rt, err := registry.Resolve(tenantName)
		if err != nil {
			return textResult(fmt.Sprintf("Error: %v", err)), nil
		}

		fetchCtx := tenant.FetchContext(request.GetString("context", string(tenant.FetchFull)))
		resp, err := rt.Fetch(uri, fetchCtx)
		if err != nil {
			logger.Error().Err(err).Str("tenant", tenantName).Str("uri", uri).Msg("fetch failed")
			return textResult("Document not found"), nil
		}

		return textResult(formatDocument(resp)), nil
	}
}

// handleBrowseTree implements the browse_tree tool.
func handleBrowseTree(registry *tenant.Registry, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenantName, err := request.RequireString("tenant")
		if err != nil || tenantName == "" {
			return textResult("Error: tenant parameter is required"), nil
		}

		rt, err := registry.Resolve(tenantName)
		if err != nil {
			return textResult(fmt.Sprintf("Error: %v", err)), nil
		}

		path := request.GetString("path", "")
		depth := request.GetInt("depth", 2)

		node, err := rt.BrowseTree(path, depth)
		if err != nil {
			logger.Error().Err(err).Str("tenant", tenantName).Msg("browse_tree failed")
			return textResult(fmt.Sprintf("Error: %v", err)), nil
		}

		return textResult(formatTree(path, depth, node.Children)), nil
	}
}

// handleTriggerSync implements the trigger_sync tool.
func handleTriggerSync(registry *tenant.Registry, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenantName, err := request.RequireString("tenant")
		if err != nil || tenantName == "" {
			return textResult("Error: tenant parameter is required"), nil
		}

		rt, err := registry.Resolve(tenantName)
		if err != nil {
			return textResult(fmt.Sprintf("Error: %v", err)), nil
		}
		if rt.Scheduler == nil {
			return textResult("tenant has no scheduler configured"), nil
		}

		forceFullSync := request.GetBool("force_full_sync", false)
		if err := rt.Scheduler.TriggerSync(false, forceFullSync); err != nil {
			logger.Error().Err(err).Str("tenant", tenantName).Msg("trigger_sync failed")
			return textResult(fmt.Sprintf("Error: %v", err)), nil
		}

		return textResult(fmt.Sprintf("Sync triggered for tenant %q", tenantName)), nil
	}
}

// handleListTenants implements the list_tenants tool.
func handleListTenants(registry *tenant.Registry, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snapshot := registry.HealthSnapshot()
		if len(snapshot) == 0 {
			return textResult("No tenants registered."), nil
		}

		text := "## Registered tenants\n\n"
		for codename, health := range snapshot {
			text += fmt.Sprintf("- **%s**: %s (source: %s, scheduler: %s)\n", codename, health.Status, health.SourceType, health.SchedulerState)
		}
		return textResult(text), nil
	}
}
