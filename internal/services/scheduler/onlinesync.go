package scheduler

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quaero/internal/search/indexer"
	"github.com/ternarybob/quaero/internal/services/crawler"
)

// OnlineSyncConfig wires a tenant's crawl + rebuild-index + reload cycle,
// per spec §4.11's online sync cycle: discovery → progressive enqueue →
// fetch pool → commit via UnitOfWork → post-sync hook.
type OnlineSyncConfig struct {
	Crawler          *crawler.Crawler
	StartURLs        []string
	SitemapURLs      []string
	MaxDepth         int
	WorkerCount      int
	Indexer          *indexer.Indexer
	ReloadSearchIndex func() error
	Logger           arbor.ILogger
}

// RunOnlineSync drives one crawl, rebuilds the tenant's search index, and
// asks the tenant runtime to reload the active segment. Indexing and
// reload failures are logged but do not fail the sync, per spec §4.11's
// post-sync hook semantics — only a crawl failure itself is propagated.
func RunOnlineSync(ctx context.Context, config OnlineSyncConfig, forceFullSync bool) error {
	if config.Crawler == nil {
		return fmt.Errorf("online sync requires a crawler")
	}

	summary, err := config.Crawler.Crawl(ctx, crawler.CrawlOptions{
		StartURLs:   config.StartURLs,
		SitemapURLs: config.SitemapURLs,
		MaxDepth:    config.MaxDepth,
		WorkerCount: config.WorkerCount,
	})
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	if config.Logger != nil {
		config.Logger.Info().Int("fetched", summary.Fetched).Int("failed", summary.Failed).Msg("crawl cycle complete")
	}

	runPostSyncHook(config, forceFullSync)
	return nil
}

func runPostSyncHook(config OnlineSyncConfig, forceFullSync bool) {
	if config.Indexer != nil {
		buildOpts := indexer.BuildOptions{ChangedOnly: !forceFullSync, Persist: true}
		result, err := config.Indexer.BuildSegment(buildOpts)
		if err != nil {
			if config.Logger != nil {
				config.Logger.Warn().Err(err).Msg("post-sync index rebuild failed")
			}
		} else if config.Logger != nil {
			config.Logger.Info().Int("indexed", result.DocumentsIndexed).Int("skipped", result.DocumentsSkipped).Msg("post-sync index rebuild complete")
		}
	}

	if config.ReloadSearchIndex != nil {
		if err := config.ReloadSearchIndex(); err != nil && config.Logger != nil {
			config.Logger.Warn().Err(err).Msg("post-sync search index reload failed")
		}
	}
}
