// -----------------------------------------------------------------------
// Last Modified: Wednesday, 5th November 2025 8:17:54 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quaero/internal/common"
	"github.com/ternarybob/quaero/internal/handlers"
	"github.com/ternarybob/quaero/internal/search/indexer"
	"github.com/ternarybob/quaero/internal/search/segment"
	"github.com/ternarybob/quaero/internal/services/crawler"
	"github.com/ternarybob/quaero/internal/services/scheduler"
	"github.com/ternarybob/quaero/internal/statestore"
	"github.com/ternarybob/quaero/internal/tenant"
)

const (
	maxSegmentsRetained = 32
	crawlWorkerCount    = 8
	crawlMaxDepth       = 10
	crawlBaseRPS        = 2.0
	crawlMinConcurrency = 5
	crawlMaxConcurrency = 20
)

// App holds the process-wide collaborators: configuration, logging, and
// the tenant registry that every HTTP/CLI/MCP surface is built on top of.
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	Registry  *tenant.Registry
	ctx       context.Context
	cancelCtx context.CancelFunc

	TenantHandler *handlers.TenantHandler
}

// New builds one tenant.Runtime per deployment.json tenant entry, wires
// them into a shared Registry, and assembles the HTTP handlers on top of
// it. A tenant whose runtime fails to build aborts startup — deployment.json
// is assumed validated at load time (common.LoadFromFile), so a failure
// here means a collaborator (disk, git binary) isn't available.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Registry:  tenant.NewRegistry(),
		ctx:       ctx,
		cancelCtx: cancel,
	}

	for _, tc := range cfg.Tenants {
		runtime, err := a.buildTenantRuntime(tc)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("tenant %q: %w", tc.Codename, err)
		}
		a.Registry.Register(tc.Codename, runtime)

		if err := runtime.Initialize(ctx); err != nil {
			logger.Warn().Err(err).Str("tenant", tc.Codename).Msg("tenant runtime initialized with a warning")
		}
	}

	a.TenantHandler = handlers.NewTenantHandler(a.Registry, logger)

	logger.Info().Int("tenant_count", len(cfg.Tenants)).Msg("application initialized")
	return a, nil
}

// buildTenantRuntime wires the full per-tenant stack — segment store,
// crawl state store, fetcher/crawler or git syncer, scheduler — into one
// tenant.Runtime, following the source_type decided at config load time.
func (a *App) buildTenantRuntime(tc common.TenantConfig) (*tenant.Runtime, error) {
	dataDir := filepath.Join("data", "tenants", tc.Codename)

	docsRoot := tc.DocsRootDir
	if docsRoot == "" {
		docsRoot = filepath.Join(dataDir, "docs")
	}
	segmentsDir := filepath.Join(dataDir, "segments")
	statePath := filepath.Join(dataDir, "crawl_state.db")

	segments, err := segment.NewStore(segmentsDir, maxSegmentsRetained, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("open segment store: %w", err)
	}

	var stateStore *statestore.Store
	if tc.SourceType != "filesystem" {
		stateStore, err = statestore.Open(statePath, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("open crawl state store: %w", err)
		}
	}

	runtimeConfig := tenant.Config{
		Codename:             tc.Codename,
		SourceType:           tc.SourceType,
		DocsRoot:             docsRoot,
		SegmentsDir:          segmentsDir,
		URLWhitelistPrefixes: tc.URLWhitelistPrefixes,
		URLBlacklistPrefixes: tc.URLBlacklistPrefixes,
		AnalyzerProfile:      tc.Search.AnalyzerProfile,
		FieldBoosts:          tc.Search.Boosts,
		MaxSegmentsRetained:  maxSegmentsRetained,
	}
	rt := tenant.New(runtimeConfig, a.Logger, segments, stateStore, nil)

	sched, err := a.buildScheduler(tc, rt, stateStore)
	if err != nil {
		return nil, err
	}
	rt.Scheduler = sched

	return rt, nil
}

// buildScheduler wires the sync cycle appropriate to tc.SourceType.
// Filesystem tenants have no sync mechanism at all, so no scheduler is
// built for them — the doc tree is expected to be kept current by
// whatever external process owns docs_root_dir.
func (a *App) buildScheduler(tc common.TenantConfig, rt *tenant.Runtime, stateStore *statestore.Store) (*scheduler.Scheduler, error) {
	switch tc.SourceType {
	case "crawler":
		return a.buildCrawlerScheduler(tc, rt, stateStore)
	case "git":
		return a.buildGitScheduler(tc, rt)
	case "filesystem":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown source_type %q", tc.SourceType)
	}
}

func (a *App) buildCrawlerScheduler(tc common.TenantConfig, rt *tenant.Runtime, stateStore *statestore.Store) (*scheduler.Scheduler, error) {
	rateLimiter := crawler.NewAdaptiveRateLimiter(crawlBaseRPS, a.Logger)
	concurrency := crawler.NewAdaptiveConcurrencyLimiter(crawlMinConcurrency, crawlMaxConcurrency)
	linkFilter := crawler.NewLinkFilter(tc.URLWhitelistPrefixes, tc.URLBlacklistPrefixes, nil, nil, a.Logger)

	var browserPool *crawler.ChromeDPPool
	if a.Config.Infrastructure.ArticleExtractorFallback.Enabled {
		browserPool = crawler.NewChromeDPPool(crawler.ChromeDPPoolConfig{
			MaxInstances: crawlMinConcurrency,
			Headless:     true,
		}, a.Logger)
	}

	fetcher := crawler.NewFetcher(crawler.FetcherConfig{
		HTTPTimeout:        a.Config.HTTPTimeout(),
		FallbackEnabled:    a.Config.Infrastructure.ArticleExtractorFallback.Enabled,
		FallbackURL:        a.Config.Infrastructure.ArticleExtractorFallback.Endpoint,
		FallbackMaxRetries: 2,
	}, browserPool, rateLimiter, a.Logger)
	rt.Fetcher = fetcher

	crawlerInst := crawler.NewCrawler(rt.Config.DocsRoot, fetcher, linkFilter, concurrency, stateStore, a.Logger)

	var startURLs []string
	if tc.DocsEntryURL != "" {
		startURLs = append(startURLs, tc.DocsEntryURL)
	}
	var sitemapURLs []string
	if tc.DocsSitemapURL != "" {
		sitemapURLs = append(sitemapURLs, tc.DocsSitemapURL)
	}

	syncFunc := func(ctx context.Context, forceCrawler, forceFullSync bool) error {
		return scheduler.RunOnlineSync(ctx, scheduler.OnlineSyncConfig{
			Crawler:           crawlerInst,
			StartURLs:         startURLs,
			SitemapURLs:       sitemapURLs,
			MaxDepth:          crawlMaxDepth,
			WorkerCount:       crawlWorkerCount,
			Indexer:           rt.Indexer,
			ReloadSearchIndex: rt.ReloadSearchIndex,
			Logger:            a.Logger,
		}, forceFullSync)
	}

	return scheduler.New(scheduler.Config{
		Kind:            scheduler.KindCrawlRefresh,
		Enabled:         true,
		RefreshSchedule: tc.RefreshSchedule,
		Sync:            syncFunc,
	}, a.Logger)
}

func (a *App) buildGitScheduler(tc common.TenantConfig, rt *tenant.Runtime) (*scheduler.Scheduler, error) {
	workDir := filepath.Join("data", "tenants", tc.Codename, "git")
	syncer := scheduler.NewGitSyncer(scheduler.GitSyncConfig{
		RepoURL:     tc.GitRepoURL,
		Branch:      tc.GitBranch,
		Subpaths:    tc.GitSubpaths,
		StripPrefix: tc.StripPrefix,
		DocsRoot:    rt.Config.DocsRoot,
		WorkDir:     workDir,
	}, a.Logger)

	syncFunc := func(ctx context.Context, forceCrawler, forceFullSync bool) error {
		result, err := syncer.Sync(ctx)
		if err != nil {
			return err
		}
		a.Logger.Info().
			Str("tenant", tc.Codename).
			Str("commit", result.CommitID).
			Int("files_copied", result.FilesCopied).
			Bool("repo_updated", result.RepoUpdated).
			Msg("git sync cycle complete")

		buildOpts := indexer.BuildOptions{ChangedOnly: !forceFullSync, Persist: true}
		if _, err := rt.Indexer.BuildSegment(buildOpts); err != nil {
			a.Logger.Warn().Err(&common.IndexBuildError{Cause: err}).Str("tenant", tc.Codename).Msg("post-sync index rebuild failed; previous segment stays active")
			return nil
		}
		if err := rt.ReloadSearchIndex(); err != nil {
			a.Logger.Warn().Err(&common.PostSyncHookError{Hook: "reload_search_index", Cause: err}).Str("tenant", tc.Codename).Msg("post-sync search index reload failed")
		}
		return nil
	}

	return scheduler.New(scheduler.Config{
		Kind:            scheduler.KindGitSync,
		Enabled:         true,
		RefreshSchedule: tc.RefreshSchedule,
		Sync:            syncFunc,
	}, a.Logger)
}

// Shutdown stops every tenant's scheduler and releases its segment
// handles, then cancels the application context.
func (a *App) Shutdown() error {
	errs := a.Registry.ShutdownAll()
	a.cancelCtx()
	if len(errs) > 0 {
		return fmt.Errorf("%d tenant(s) failed to shut down cleanly: %v", len(errs), errs[0])
	}
	return nil
}
