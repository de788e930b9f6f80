// -----------------------------------------------------------------------
// Last Modified: Friday, 8th November 2025 4:00:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/common"
)

var (
	configPath string
	mcpPort    int

	config *common.Config
	logger arbor.ILogger
)

// rootCmd is the Quaero CLI entry point: loads deployment.json (or the
// path given via --config), applies flag overrides, sets up logging, and
// dispatches to one of serve/query/collect/version.
var rootCmd = &cobra.Command{
	Use:   "quaero",
	Short: "Multi-tenant documentation search service",
	Long: `Quaero indexes one or more documentation sources (crawled sites,
git repositories, local filesystem trees) per tenant and serves search,
fetch, and browse operations over them via HTTP and MCP.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return loadConfigAndLogger()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to deployment.json (default: ./deployment.json)")
	rootCmd.PersistentFlags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (overrides infrastructure.mcp_port)")

	rootCmd.AddCommand(serveCmd, queryCmd, collectCmd, versionCmd)
}

func loadConfigAndLogger() error {
	path := configPath
	if path == "" {
		path = "deployment.json"
	}

	var err error
	config, err = common.LoadFromFile(path)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Str("path", path).Msg("failed to load deployment configuration")
		return err
	}

	common.ApplyFlagOverrides(config, mcpPort)

	logger = common.SetupLogger(config)
	common.InstallCrashHandler("logs/crashes")
	common.PrintBanner(config, logger)

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
