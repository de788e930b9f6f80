package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quaero/internal/docstore"
	"github.com/ternarybob/quaero/internal/statestore"
)

// CrawlOptions configures one Crawler.Crawl() invocation, per spec §4.6.
type CrawlOptions struct {
	StartURLs         []string
	SitemapURLs       []string
	MaxDepth          int
	WorkerCount       int
	OnURLDiscovered   func(url string)
}

// CrawlSummary reports what a crawl run accomplished.
type CrawlSummary struct {
	Collected map[string]bool
	Fetched   int
	Failed    int
}

// Crawler runs the frontier BFS and dual-path fetch/persist loop for one
// tenant, per spec §4.6.
type Crawler struct {
	DocsRoot    string
	Fetcher     *Fetcher
	Filter      *LinkFilter
	Concurrency *AdaptiveConcurrencyLimiter
	StateStore  *statestore.Store
	Logger      arbor.ILogger
}

// NewCrawler wires a Fetcher, LinkFilter, and AdaptiveConcurrencyLimiter
// for one tenant's crawl.
func NewCrawler(docsRoot string, fetcher *Fetcher, filter *LinkFilter, concurrency *AdaptiveConcurrencyLimiter, stateStore *statestore.Store, logger arbor.ILogger) *Crawler {
	return &Crawler{
		DocsRoot:    docsRoot,
		Fetcher:     fetcher,
		Filter:      filter,
		Concurrency: concurrency,
		StateStore:  stateStore,
		Logger:      logger,
	}
}

// Crawl runs the frontier BFS to completion (or ctx cancellation),
// persisting each fetched document via a single Unit of Work, and
// returns the set of collected URLs.
func (c *Crawler) Crawl(ctx context.Context, opts CrawlOptions) (CrawlSummary, error) {
	if len(opts.StartURLs) == 0 {
		return CrawlSummary{}, fmt.Errorf("crawl requires at least one start URL")
	}

	frontier := NewFrontier(opts.StartURLs[0])
	for _, seed := range append(append([]string{}, opts.StartURLs...), opts.SitemapURLs...) {
		frontier.Enqueue(seed, 0)
	}

	uow, err := docstore.Begin(c.DocsRoot, c.Logger)
	if err != nil {
		return CrawlSummary{}, fmt.Errorf("begin unit of work: %w", err)
	}

	var mu sync.Mutex
	collected := map[string]bool{}
	summary := CrawlSummary{}

	workerCount := opts.WorkerCount
	if workerCount <= 0 {
		workerCount = 5
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// inFlight counts workers currently processing a dequeued URL (as
	// opposed to blocked waiting in Pop). Once inFlight reaches zero with
	// an empty frontier, no worker can produce further links, so the
	// quiescence monitor closes the frontier to unblock every Pop call.
	var inFlightMu sync.Mutex
	inFlight := 0

	for i := 0; i < workerCount; i++ {
		group.Go(func() error {
			for {
				if err := c.Concurrency.Acquire(groupCtx); err != nil {
					return nil
				}

				item, popErr := frontier.Pop(groupCtx)
				if popErr != nil {
					c.Concurrency.Release()
					return nil
				}
				if item == nil {
					c.Concurrency.Release()
					return nil
				}

				inFlightMu.Lock()
				inFlight++
				inFlightMu.Unlock()

				c.processURL(groupCtx, item, frontier, uow, opts, &mu, collected, &summary)

				inFlightMu.Lock()
				inFlight--
				inFlightMu.Unlock()

				c.Concurrency.Release()
			}
		})
	}

	group.Go(func() error {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		quietStreak := 0
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				inFlightMu.Lock()
				quiescent := inFlight == 0 && frontier.Len() == 0
				inFlightMu.Unlock()
				if quiescent {
					quietStreak++
				} else {
					quietStreak = 0
				}
				if quietStreak >= 3 {
					frontier.Close()
					return nil
				}
			}
		}
	})

	err = group.Wait()
	frontier.Close()

	if err != nil {
		uow.Rollback()
		return summary, err
	}
	if commitErr := uow.Commit(); commitErr != nil {
		return summary, fmt.Errorf("commit crawl unit of work: %w", commitErr)
	}
	summary.Collected = collected
	return summary, nil
}

func (c *Crawler) processURL(ctx context.Context, item *FrontierItem, frontier *Frontier, uow *docstore.UnitOfWork, opts CrawlOptions, mu *sync.Mutex, collected map[string]bool, summary *CrawlSummary) {
	if c.Filter != nil {
		result := c.Filter.FilterURL(item.URL)
		if !result.ShouldEnqueue {
			return
		}
	}

	mu.Lock()
	collected[item.URL] = true
	mu.Unlock()
	if opts.OnURLDiscovered != nil {
		opts.OnURLDiscovered(item.URL)
	}

	doc, err := c.Fetcher.Fetch(ctx, item.URL)
	now := time.Now().UTC()

	if err != nil {
		mu.Lock()
		summary.Failed++
		mu.Unlock()
		if c.StateStore != nil {
			reason := err.Error()
			c.StateStore.UpsertURLMetadata(statestore.URLMetadata{
				URL: item.URL, Status: string(docstore.StatusFailed), FailureReason: reason,
			})
			c.StateStore.RecordEvent(statestore.Event{Type: "fetch_failure", URL: item.URL, Detail: reason, OccurredAt: now})
		}
		return
	}

	metaDoc := docstore.Document{
		URL:      item.URL,
		Title:    doc.Title,
		Markdown: doc.Markdown,
		Text:     doc.Text,
		Excerpt:  doc.Excerpt,
		Meta: docstore.Metadata{
			URL:               item.URL,
			Title:             doc.Title,
			Status:            docstore.StatusSuccess,
			LastFetchedAt:     now,
			ExtractionMethod:  doc.ExtractionMethod,
		},
	}
	if addErr := uow.Add(metaDoc); addErr != nil && c.Logger != nil {
		c.Logger.Warn().Err(addErr).Str("url", item.URL).Msg("failed to stage crawled document")
	}

	mu.Lock()
	summary.Fetched++
	mu.Unlock()

	if c.StateStore != nil {
		c.StateStore.UpsertURLMetadata(statestore.URLMetadata{
			URL: item.URL, Status: string(docstore.StatusSuccess), LastFetchedAt: now, ExtractionMethod: doc.ExtractionMethod,
		})
		c.StateStore.RecordEvent(statestore.Event{Type: "fetch_success", URL: item.URL, OccurredAt: now})
	}

	if opts.MaxDepth > 0 && item.Depth >= opts.MaxDepth {
		return
	}
	for _, link := range doc.Links {
		frontier.Enqueue(link, item.Depth+1)
	}
}
