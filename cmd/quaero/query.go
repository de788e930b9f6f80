// -----------------------------------------------------------------------
// Last Modified: Wednesday, 8th October 2025 5:03:03 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ternarybob/quaero/internal/app"
)

var (
	queryTenant     string
	queryMaxResults int
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Search one tenant's documentation from the command line",
	Long:  `Builds the tenant registry from deployment.json, searches one tenant offline (no server required), and prints ranked results.`,
	Args:  cobra.MinimumNArgs(1),
	Run:   runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryTenant, "tenant", "t", "", "Tenant codename to search (required)")
	queryCmd.Flags().IntVarP(&queryMaxResults, "max-results", "n", 10, "Maximum number of results to print")
}

func runQuery(cmd *cobra.Command, args []string) {
	if queryTenant == "" {
		fmt.Fprintln(os.Stderr, "query requires --tenant")
		os.Exit(1)
	}
	question := strings.Join(args, " ")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer application.Shutdown()

	runtime, err := application.Registry.Resolve(queryTenant)
	if err != nil {
		logger.Fatal().Err(err).Str("tenant", queryTenant).Msg("unknown tenant")
	}

	resp, err := runtime.Search(context.Background(), question, queryMaxResults, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("search failed")
	}

	if len(resp.Results) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, r := range resp.Results {
		fmt.Printf("%d. %s (%.3f)\n   %s\n   %s\n\n", i+1, r.Title, r.Score, r.URL, r.Snippet)
	}
}
