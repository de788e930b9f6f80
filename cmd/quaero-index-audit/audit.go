package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quaero/internal/common"
	"github.com/ternarybob/quaero/internal/search"
	"github.com/ternarybob/quaero/internal/search/indexer"
	"github.com/ternarybob/quaero/internal/search/segment"
)

// tenantAuditReport mirrors the original index-audit tool's per-tenant
// report shape: fingerprint/current segment id, whether a rebuild ran,
// and the resulting status.
type tenantAuditReport struct {
	Tenant           string  `json:"tenant"`
	Fingerprint      string  `json:"fingerprint,omitempty"`
	CurrentSegmentID string  `json:"current_segment_id,omitempty"`
	NeedsRebuild     bool    `json:"needs_rebuild"`
	Rebuilt          bool    `json:"rebuilt"`
	DurationS        float64 `json:"duration_s"`
	DocumentsIndexed int     `json:"documents_indexed,omitempty"`
	Error            string  `json:"error,omitempty"`
}

func (r tenantAuditReport) status() string {
	switch {
	case r.Error != "":
		return "error"
	case r.Rebuilt:
		return "rebuilt"
	case r.NeedsRebuild:
		return "stale"
	default:
		return "ok"
	}
}

const maxSegmentsRetained = 32

// auditOneTenant computes a tenant's segment fingerprint, compares it to
// the manifest's active segment, and — when rebuild is requested and the
// fingerprint disagrees — rebuilds the segment and re-audits once to
// confirm the rebuild actually converged.
func auditOneTenant(ctx context.Context, tc common.TenantConfig, rebuild bool) tenantAuditReport {
	start := time.Now()
	report := tenantAuditReport{Tenant: tc.Codename}

	select {
	case <-ctx.Done():
		report.NeedsRebuild = true
		report.Error = fmt.Sprintf("timed out after %s", time.Since(start).Round(time.Second))
		report.DurationS = time.Since(start).Seconds()
		return report
	default:
	}

	ix, err := buildIndexer(tc)
	if err != nil {
		report.NeedsRebuild = true
		report.Error = err.Error()
		report.DurationS = time.Since(start).Seconds()
		return report
	}

	audit, err := ix.FingerprintAudit()
	if err != nil {
		report.NeedsRebuild = true
		report.Error = err.Error()
		report.DurationS = time.Since(start).Seconds()
		return report
	}
	report.Fingerprint = audit.Fingerprint
	report.CurrentSegmentID = audit.CurrentSegmentID
	report.NeedsRebuild = audit.NeedsRebuild

	if rebuild && audit.NeedsRebuild {
		buildResult, err := ix.BuildSegment(indexer.BuildOptions{Persist: true})
		if err != nil {
			report.Error = err.Error()
			report.DurationS = time.Since(start).Seconds()
			return report
		}
		report.Rebuilt = true
		report.DocumentsIndexed = buildResult.DocumentsIndexed

		audit, err = ix.FingerprintAudit()
		if err != nil {
			report.Error = err.Error()
			report.DurationS = time.Since(start).Seconds()
			return report
		}
		report.Fingerprint = audit.Fingerprint
		report.CurrentSegmentID = audit.CurrentSegmentID
		report.NeedsRebuild = audit.NeedsRebuild
		if audit.NeedsRebuild {
			report.Error = "fingerprint mismatch persists after rebuild"
		}
	}

	report.DurationS = time.Since(start).Seconds()
	return report
}

// buildIndexer assembles the minimal collaborator graph an audit needs:
// a segment store and an Indexer bound to the tenant's docs_root, with no
// crawler/scheduler/server wiring since the audit never syncs anything.
func buildIndexer(tc common.TenantConfig) (*indexer.Indexer, error) {
	dataDir := filepath.Join("data", "tenants", tc.Codename)

	docsRoot := tc.DocsRootDir
	if docsRoot == "" {
		docsRoot = filepath.Join(dataDir, "docs")
	}

	segmentsDir := segmentsRoot
	if segmentsDir == "" {
		segmentsDir = filepath.Join(dataDir, "segments")
	} else {
		segmentsDir = filepath.Join(segmentsDir, tc.Codename, segmentsSubdir)
	}

	logger := arbor.NewLogger().WithLevelFromString("warn")

	store, err := segment.NewStore(segmentsDir, maxSegmentsRetained, logger)
	if err != nil {
		return nil, fmt.Errorf("open segment store: %w", err)
	}

	ctx := indexer.TenantContext{
		Codename:             tc.Codename,
		DocsRoot:             docsRoot,
		SegmentsDir:          segmentsDir,
		SourceType:           tc.SourceType,
		URLWhitelistPrefixes: tc.URLWhitelistPrefixes,
		URLBlacklistPrefixes: tc.URLBlacklistPrefixes,
		AnalyzerProfile:      tc.Search.AnalyzerProfile,
	}

	return indexer.New(ctx, search.DefaultSchema(), store, logger), nil
}

func printReport(r tenantAuditReport) {
	fingerprint := r.Fingerprint
	if fingerprint == "" {
		fingerprint = "-"
	}
	current := r.CurrentSegmentID
	if current == "" {
		current = "-"
	}
	line := fmt.Sprintf("%-16s status=%-7s fingerprint=%s current=%s rebuilt=%v duration=%.2fs",
		r.Tenant, r.status(), fingerprint, current, r.Rebuilt, r.DurationS)
	if r.Error != "" {
		line += fmt.Sprintf(" error=%s", r.Error)
	}
	fmt.Println(line)

	payload, _ := json.Marshal(struct {
		tenantAuditReport
		Status string `json:"status"`
	}{r, r.status()})
	fmt.Println(string(payload))
}

func determineExitCode(reports []tenantAuditReport, rebuild bool) int {
	for _, r := range reports {
		if r.Error != "" {
			return 3
		}
	}
	for _, r := range reports {
		if r.NeedsRebuild {
			if rebuild {
				return 3
			}
			return 2
		}
	}
	return 0
}

func statusSummary(reports []tenantAuditReport) string {
	var parts []string
	for _, r := range reports {
		parts = append(parts, r.Tenant+"="+r.status())
	}
	return strings.Join(parts, ", ")
}
