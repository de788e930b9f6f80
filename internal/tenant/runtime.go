// Package tenant assembles the URL translation, analyzer, BM25 engine,
// segment store, indexer, crawler/scheduler, and state store packages
// into one per-tenant object, per spec §4.12.
package tenant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quaero/internal/docstore"
	"github.com/ternarybob/quaero/internal/search"
	"github.com/ternarybob/quaero/internal/search/bm25"
	"github.com/ternarybob/quaero/internal/search/indexer"
	"github.com/ternarybob/quaero/internal/search/segment"
	"github.com/ternarybob/quaero/internal/services/crawler"
	"github.com/ternarybob/quaero/internal/services/scheduler"
	"github.com/ternarybob/quaero/internal/statestore"
)

// FetchContext selects how much of a document fetch() returns, per spec
// §4.12.
type FetchContext string

const (
	FetchFull       FetchContext = "full"
	FetchSurrounding FetchContext = "surrounding"
	FetchNone        FetchContext = "none"
)

const surroundingMaxChars = 8000

// MatchTrace explains how one result was produced, per spec §4.12/§6.
type MatchTrace struct {
	Stage          string             `json:"stage"`
	StageName      string             `json:"stage_name"`
	QueryVariant   string             `json:"query_variant"`
	MatchReason    string             `json:"match_reason"`
	RipgrepFlags   string             `json:"ripgrep_flags,omitempty"`
	RankingFactors map[string]float64 `json:"ranking_factors,omitempty"`
}

// SearchResult is one ranked document, with its snippet and trace.
type SearchResult struct {
	URL        string     `json:"url"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	Score      float64    `json:"score"`
	MatchTrace MatchTrace `json:"match_trace"`
}

// SearchResponse is the tenant search() return shape.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// FetchResponse is the tenant fetch() return shape.
type FetchResponse struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}

// HealthStatus reports aggregated per-tenant health, per spec §4.12.
type HealthStatus struct {
	Status         string    `json:"status"`
	DocumentCount  int       `json:"document_count"`
	SchedulerState string    `json:"scheduler_state"`
	SourceType     string    `json:"source_type"`
	LastSyncAt     time.Time `json:"last_sync_at"`
	FetchAttempts  int       `json:"fetch_attempts"`
	FetchSuccesses int       `json:"fetch_successes"`
	FetchFailures  int       `json:"fetch_failures"`
}

// Config describes one tenant's static configuration, per spec §6's
// deployment.json shape.
type Config struct {
	Codename             string
	SourceType           string
	DocsRoot             string
	SegmentsDir          string
	URLWhitelistPrefixes []string
	URLBlacklistPrefixes []string
	AnalyzerProfile      string
	FieldBoosts          map[string]float64
	MaxSegmentsRetained  int
}

// Runtime assembles the full per-tenant stack and exposes the operations
// spec §4.12 names.
type Runtime struct {
	Config     Config
	Logger     arbor.ILogger
	Repository *docstore.Repository
	Schema     search.Schema
	Engine     *bm25.Engine
	Segments   *segment.Store
	Indexer    *indexer.Indexer
	StateStore *statestore.Store
	Scheduler  *scheduler.Scheduler

	// Fetcher is set only for crawler-sourced tenants; its Metrics() feed
	// Health()'s fetch counters. git/filesystem tenants leave it nil.
	Fetcher *crawler.Fetcher

	mu            sync.RWMutex
	activeSegment *segment.Segment
}

// New wires a Runtime's fixed collaborators. Segments/StateStore/Scheduler
// may be nil for a tenant still being provisioned; initialize() will
// refuse to serve search until a segment is loaded.
func New(config Config, logger arbor.ILogger, segments *segment.Store, stateStore *statestore.Store, sched *scheduler.Scheduler) *Runtime {
	schema := search.DefaultSchema()
	ctx := indexer.TenantContext{
		Codename:             config.Codename,
		DocsRoot:             config.DocsRoot,
		SegmentsDir:          config.SegmentsDir,
		SourceType:           config.SourceType,
		URLWhitelistPrefixes: config.URLWhitelistPrefixes,
		URLBlacklistPrefixes: config.URLBlacklistPrefixes,
		AnalyzerProfile:      config.AnalyzerProfile,
	}
	return &Runtime{
		Config:     config,
		Logger:     logger,
		Repository: docstore.NewRepository(config.DocsRoot),
		Schema:     schema,
		Engine:     bm25.NewEngine(schema, config.FieldBoosts),
		Segments:   segments,
		Indexer:    indexer.New(ctx, schema, segments, logger),
		StateStore: stateStore,
		Scheduler:  sched,
	}
}

// Initialize starts the scheduler (if configured to auto-start) and loads
// the latest sealed segment, if one exists, per spec §4.12.
func (r *Runtime) Initialize(ctx context.Context) error {
	if r.Scheduler != nil {
		if _, err := r.Scheduler.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize scheduler: %w", err)
		}
	}
	if err := r.ReloadSearchIndex(); err != nil && r.Logger != nil {
		r.Logger.Warn().Err(err).Str("tenant", r.Config.Codename).Msg("no search segment available at startup")
	}
	return nil
}

// ReloadSearchIndex locates the manifest's latest segment, opens it, and
// swaps it in as the active segment, closing the previous one. Called by
// the post-sync hook, per spec §4.12.
func (r *Runtime) ReloadSearchIndex() error {
	if r.Segments == nil {
		return fmt.Errorf("tenant %s has no segment store configured", r.Config.Codename)
	}
	segmentID, err := r.Segments.LatestSegmentID()
	if err != nil {
		return fmt.Errorf("resolve latest segment: %w", err)
	}
	if segmentID == "" {
		return fmt.Errorf("tenant %s has no sealed segment yet", r.Config.Codename)
	}

	next, err := r.Segments.Load(segmentID)
	if err != nil {
		return fmt.Errorf("load segment %s: %w", segmentID, err)
	}

	r.mu.Lock()
	previous := r.activeSegment
	r.activeSegment = next
	r.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil && r.Logger != nil {
			r.Logger.Warn().Err(err).Str("tenant", r.Config.Codename).Msg("failed to close previous segment after reload")
		}
	}
	return nil
}

func (r *Runtime) currentSegment() *segment.Segment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeSegment
}

// Search analyzes query, runs BM25, builds snippets, and attaches a
// match_trace per result, per spec §4.12. word_match is accepted but
// purely informational — ranking ignores it.
func (r *Runtime) Search(ctx context.Context, query string, maxResults int, wordMatch bool) (SearchResponse, error) {
	seg := r.currentSegment()
	if seg == nil {
		return SearchResponse{}, fmt.Errorf("tenant %s has no active search segment", r.Config.Codename)
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	tokens := r.Engine.TokenizeQuery(query)
	if tokens.IsEmpty() {
		return SearchResponse{}, nil
	}

	ranked, err := r.Engine.Score(ctx, seg, tokens, maxResults)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("score query: %w", err)
	}

	docIDs := make([]string, 0, len(ranked))
	for _, rd := range ranked {
		docIDs = append(docIDs, rd.DocID)
	}
	stored, err := seg.AllStoredFields(ctx, docIDs)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("load stored fields: %w", err)
	}

	results := make([]SearchResult, 0, len(ranked))
	for _, rd := range ranked {
		fields := stored[rd.DocID]
		title, _ := fields["title"].(string)
		body, _ := fields["body"].(string)
		url, _ := fields["url"].(string)
		if url == "" {
			url = rd.DocID
		}

		snippet := BuildSnippet(body, tokens.OrderedTerms, SnippetPlain)

		results = append(results, SearchResult{
			URL:     url,
			Title:   title,
			Snippet: snippet,
			Score:   rd.Score,
			MatchTrace: MatchTrace{
				Stage:          "bm25",
				StageName:      "bm25f_ranking",
				QueryVariant:   tokens.SeedText,
				MatchReason:    rd.MatchReason,
				RankingFactors: rd.RankingFactors,
			},
		})
	}

	return SearchResponse{Results: results}, nil
}

// Fetch resolves uri to a file in docs_root and returns its Markdown, per
// spec §4.12.
func (r *Runtime) Fetch(uri string, fetchCtx FetchContext) (FetchResponse, error) {
	if fetchCtx == FetchNone {
		return FetchResponse{URL: uri}, nil
	}

	content, err := r.Repository.ReadMarkdown(uri)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("not found: %w", err)
	}

	meta, _ := r.Repository.ReadMetadata(uri)
	title := ""
	if meta != nil {
		title = meta.Title
	}

	if fetchCtx == FetchSurrounding && len(content) > surroundingMaxChars {
		return FetchResponse{
			URL:       uri,
			Title:     title,
			Content:   content[:surroundingMaxChars] + "…",
			Truncated: true,
		}, nil
	}

	return FetchResponse{URL: uri, Title: title, Content: content}, nil
}

// BrowseTree walks docs_root under path, per spec §4.12.
func (r *Runtime) BrowseTree(path string, depth int) (*docstore.TreeNode, error) {
	return r.Repository.BrowseTree(path, depth)
}

// Health reports aggregated tenant status, per spec §4.12: index status,
// document count, scheduler state and last sync time, and (for crawler
// tenants) fetcher counters.
func (r *Runtime) Health() HealthStatus {
	status := "ok"
	seg := r.currentSegment()
	docCount := 0
	if seg == nil {
		status = "no_index"
	} else {
		docCount = seg.DocCount
	}

	schedState := "disabled"
	var lastSyncAt time.Time
	if r.Scheduler != nil {
		stats := r.Scheduler.Stats()
		schedState = string(stats.State)
		if stats.LastRun != nil {
			lastSyncAt = *stats.LastRun
		}
	}

	health := HealthStatus{
		Status:         status,
		DocumentCount:  docCount,
		SchedulerState: schedState,
		SourceType:     r.Config.SourceType,
		LastSyncAt:     lastSyncAt,
	}

	if r.Fetcher != nil {
		metrics := r.Fetcher.Metrics()
		health.FetchAttempts = metrics.Attempts
		health.FetchSuccesses = metrics.Successes
		health.FetchFailures = metrics.Failures
	}

	return health
}

// Shutdown stops the scheduler and releases the active segment's file
// handles, per spec §4.12.
func (r *Runtime) Shutdown() error {
	if r.Scheduler != nil {
		if err := r.Scheduler.Stop(); err != nil {
			return fmt.Errorf("stop scheduler: %w", err)
		}
	}
	r.mu.Lock()
	seg := r.activeSegment
	r.activeSegment = nil
	r.mu.Unlock()
	if seg != nil {
		return seg.Close()
	}
	return nil
}
