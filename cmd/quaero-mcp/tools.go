package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createSearchDocumentsTool returns the search_documents tool definition.
func createSearchDocumentsTool() mcp.Tool {
	return mcp.NewTool("search_documents",
		mcp.WithDescription("Search one tenant's documentation index using BM25 ranking"),
		mcp.WithString("tenant",
			mcp.Required(),
			mcp.Description("Tenant codename, as listed by list_tenants"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum results to return (default: 20)"),
		),
		mcp.WithBoolean("word_match",
			mcp.Description("Informational flag echoed through to the match trace"),
		),
	)
}

// createFetchDocumentTool returns the fetch_document tool definition.
func createFetchDocumentTool() mcp.Tool {
	return mcp.NewTool("fetch_document",
		mcp.WithDescription("Fetch one document's Markdown by its URL/URI"),
		mcp.WithString("tenant",
			mcp.Required(),
			mcp.Description("Tenant codename"),
		),
		mcp.WithString("uri",
			mcp.Required(),
			mcp.Description("Document URL as returned by search_documents"),
		),
		mcp.WithString("context",
			mcp.Description("\"full\", \"surrounding\", or \"none\" (default: full)"),
		),
	)
}

// createBrowseTreeTool returns the browse_tree tool definition.
func createBrowseTreeTool() mcp.Tool {
	return mcp.NewTool("browse_tree",
		mcp.WithDescription("List the documentation tree under a path"),
		mcp.WithString("tenant",
			mcp.Required(),
			mcp.Description("Tenant codename"),
		),
		mcp.WithString("path",
			mcp.Description("Root path to browse from (default: tenant root)"),
		),
		mcp.WithNumber("depth",
			mcp.Description("How many levels deep to descend (default: 2)"),
		),
	)
}

// createTriggerSyncTool returns the trigger_sync tool definition.
func createTriggerSyncTool() mcp.Tool {
	return mcp.NewTool("trigger_sync",
		mcp.WithDescription("Trigger an immediate sync cycle for one tenant"),
		mcp.WithString("tenant",
			mcp.Required(),
			mcp.Description("Tenant codename"),
		),
		mcp.WithBoolean("force_full_sync",
			mcp.Description("Request a full index rebuild; no changed-path list reaches the indexer, so every rebuild covers all documents"),
		),
	)
}

// createListTenantsTool returns the list_tenants tool definition.
func createListTenantsTool() mcp.Tool {
	return mcp.NewTool("list_tenants",
		mcp.WithDescription("List every registered tenant codename and its health status"),
	)
}
