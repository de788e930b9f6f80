package main

import (
	"fmt"
	"strings"

	"github.com/ternarybob/quaero/internal/docstore"
	"github.com/ternarybob/quaero/internal/tenant"
)

// formatSearchResults formats search results as markdown.
func formatSearchResults(query string, results []tenant.SearchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for \"%s\" (%d results)\n\n", query, len(results)))

	if len(results) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("### %d. %s (score %.3f)\n", i+1, r.Title, r.Score))
		sb.WriteString(fmt.Sprintf("**URL:** %s\n\n", r.URL))
		sb.WriteString(r.Snippet)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// formatDocument formats one fetched document as markdown.
func formatDocument(resp tenant.FetchResponse) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", resp.Title))
	sb.WriteString(fmt.Sprintf("**URL:** %s\n", resp.URL))
	if resp.Truncated {
		sb.WriteString("**Note:** content truncated\n")
	}
	sb.WriteString("\n## Content\n\n")
	sb.WriteString(resp.Content)
	return sb.String()
}

// formatTree formats a tenant's browse_tree response as markdown.
func formatTree(rootPath string, depth int, children []*docstore.TreeNode) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Tree under %q (depth %d)\n\n", rootPath, depth))
	for _, child := range children {
		writeTreeNode(&sb, child, 0)
	}
	return sb.String()
}

func writeTreeNode(sb *strings.Builder, node *docstore.TreeNode, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	if node.HasChildren {
		sb.WriteString(fmt.Sprintf("- %s/\n", node.Name))
	} else {
		sb.WriteString(fmt.Sprintf("- %s (%s)\n", node.Name, node.URL))
	}
	for _, child := range node.Children {
		writeTreeNode(sb, child, depth+1)
	}
}
