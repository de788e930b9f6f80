// -----------------------------------------------------------------------
// Last Modified: Friday, 8th November 2025 4:00:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

// Command quaero-index-audit audits every search-enabled tenant's segment
// fingerprint against its manifest and, with --rebuild, repairs mismatches.
// It is meant to run at boot or from a cron/CI step ahead of `quaero serve`,
// per spec §6's index-audit CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/quaero/internal/common"
)

var (
	configPath     string
	tenantFilters  []string
	segmentsRoot   string
	segmentsSubdir string
	maxParallel    int
	tenantTimeoutS int
	rebuild        bool
)

var rootCmd = &cobra.Command{
	Use:   "quaero-index-audit",
	Short: "Audit search segment fingerprints and optionally rebuild mismatches",
	Long: `Audits every search-enabled tenant's segment fingerprint against its
manifest's active segment id and, with --rebuild, rebuilds tenants whose
fingerprints disagree. Prints one JSON report line per tenant and exits
0 (all ok), 1 (invalid invocation/config), 2 (mismatches, no rebuild
requested), or 3 (errors during audit, or mismatches persisting after
rebuild).`,
	RunE: runAudit,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "deployment.json", "Path to deployment.json")
	rootCmd.Flags().StringSliceVar(&tenantFilters, "tenants", nil, "Optional tenant codename filters")
	rootCmd.Flags().StringVar(&segmentsRoot, "segments-root", "", "Root directory for search segments, used as <root>/<codename>/<segments-subdir> (defaults to data/tenants/<codename>/segments)")
	rootCmd.Flags().StringVar(&segmentsSubdir, "segments-subdir", "__search_segments", "Per-tenant subdirectory under --segments-root (ignored when --segments-root is not set)")
	rootCmd.Flags().IntVar(&maxParallel, "max-parallel", defaultMaxParallel(), "Maximum tenants audited concurrently")
	rootCmd.Flags().IntVar(&tenantTimeoutS, "tenant-timeout", 300, "Timeout in seconds for each tenant audit")
	rootCmd.Flags().BoolVar(&rebuild, "rebuild", false, "Rebuild tenants whose fingerprints disagree with the manifest")
}

func defaultMaxParallel() int {
	cpu := runtime.NumCPU()
	switch {
	case cpu <= 2:
		return 1
	case cpu <= 4:
		return 2
	default:
		limit := cpu / 2
		if limit > 4 {
			limit = 4
		}
		return limit
	}
}

func main() {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to the spec §6 exit code it carries,
// defaulting to 1 (invalid invocation/config) for anything unrecognized.
func exitCodeFor(err error) int {
	var ec *exitCodeError
	if ok := asExitCodeError(err, &ec); ok {
		return ec.code
	}
	return 1
}

// exitCodeError tags an error with the specific process exit code it
// should produce, since cobra's RunE only carries an error, not a code.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func asExitCodeError(err error, target **exitCodeError) bool {
	for err != nil {
		if ec, ok := err.(*exitCodeError); ok {
			*target = ec
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func runAudit(cmd *cobra.Command, args []string) error {
	if maxParallel < 1 {
		return &exitCodeError{code: 1, err: fmt.Errorf("--max-parallel must be >= 1")}
	}
	if tenantTimeoutS < 5 {
		return &exitCodeError{code: 1, err: fmt.Errorf("--tenant-timeout must be >= 5 seconds")}
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		return &exitCodeError{code: 1, err: err}
	}

	tenants, err := selectTenants(config, tenantFilters)
	if err != nil {
		return &exitCodeError{code: 1, err: err}
	}
	if len(tenants) == 0 {
		fmt.Println("No search-enabled tenants selected; nothing to audit")
		return nil
	}

	reports := runTenantAudits(tenants)
	for _, r := range reports {
		printReport(r)
	}

	code := determineExitCode(reports, rebuild)
	if code != 0 {
		return &exitCodeError{code: code, err: fmt.Errorf("audit completed with status %s", statusSummary(reports))}
	}
	return nil
}

func selectTenants(config *common.Config, filters []string) ([]common.TenantConfig, error) {
	var eligible []common.TenantConfig
	allowed := map[string]bool{}
	for _, t := range config.Tenants {
		if t.Search.Enabled {
			eligible = append(eligible, t)
			allowed[t.Codename] = true
		}
	}
	if len(filters) == 0 {
		return eligible, nil
	}

	var unknown []string
	var selected []common.TenantConfig
	for _, codename := range filters {
		if !allowed[codename] {
			unknown = append(unknown, codename)
			continue
		}
		for _, t := range eligible {
			if t.Codename == codename {
				selected = append(selected, t)
				break
			}
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown tenant(s): %v", unknown)
	}
	return selected, nil
}

func runTenantAudits(tenants []common.TenantConfig) []tenantAuditReport {
	reports := make([]tenantAuditReport, len(tenants))

	group, ctx := errgroup.WithContext(context.Background())
	group.SetLimit(maxParallel)

	for i, tenant := range tenants {
		i, tenant := i, tenant
		group.Go(func() error {
			tenantCtx, cancel := context.WithTimeout(ctx, time.Duration(tenantTimeoutS)*time.Second)
			defer cancel()
			reports[i] = auditOneTenant(tenantCtx, tenant, rebuild)
			return nil
		})
	}
	// Per-tenant failures are captured in each report, not propagated as a
	// group error, so this Wait only ever surfaces a panic.
	_ = group.Wait()

	return reports
}
