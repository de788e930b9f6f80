package crawler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/ternarybob/quaero/internal/urlkey"
)

// FrontierItem is one URL waiting to be fetched.
type FrontierItem struct {
	URL     string
	Depth   int
	AddedAt time.Time
}

// Frontier is a FIFO of normalized URLs with visited/collected guards
// against re-visiting, per spec §4.6. Unlike a priority queue, order of
// discovery is preserved (plain breadth-first crawl).
type Frontier struct {
	queue     []*FrontierItem
	visited   map[string]bool
	collected map[string]bool
	mu        sync.Mutex
	cond      *sync.Cond
	closed    bool
	startHost string
}

// NewFrontier creates a frontier seeded with the host of startURL; only
// URLs whose host matches are ever enqueued (spec §4.6).
func NewFrontier(startURL string) *Frontier {
	f := &Frontier{
		visited:   make(map[string]bool),
		collected: make(map[string]bool),
	}
	f.cond = sync.NewCond(&f.mu)
	if u, err := url.Parse(startURL); err == nil {
		f.startHost = u.Host
	}
	return f
}

// Enqueue pushes a URL if its host matches the start host and it has not
// already been visited or queued. Returns true if it was accepted.
func (f *Frontier) Enqueue(rawURL string, depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil || (f.startHost != "" && u.Host != f.startHost) {
		return false
	}

	normalized, err := urlkey.Normalize(rawURL)
	if err != nil {
		return false
	}
	if f.visited[normalized] || f.collected[normalized] {
		return false
	}

	f.collected[normalized] = true
	f.queue = append(f.queue, &FrontierItem{URL: rawURL, Depth: depth, AddedAt: time.Now()})
	f.cond.Signal()
	return true
}

// Pop blocks until an item is available, the frontier is closed, or ctx is
// cancelled. Returns (nil, nil) once closed with an empty queue.
func (f *Frontier) Pop(ctx context.Context) (*FrontierItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stopWake := context.AfterFunc(ctx, func() {
		f.mu.Lock()
		f.cond.Broadcast()
		f.mu.Unlock()
	})
	defer stopWake()

	const maxWait = 10 * time.Second
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if len(f.queue) > 0 {
			item := f.queue[0]
			f.queue = f.queue[1:]
			if normalized, err := urlkey.Normalize(item.URL); err == nil {
				f.visited[normalized] = true
			}
			return item, nil
		}
		if f.closed {
			return nil, nil
		}

		timer := time.AfterFunc(maxWait, func() { f.cond.Broadcast() })
		f.cond.Wait()
		timer.Stop()
	}
}

// Close wakes any blocked Pop calls and marks the frontier done.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

// Len returns the number of items waiting.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Visited reports the set of normalized URLs the frontier has dispatched.
func (f *Frontier) Visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.visited))
	for u := range f.visited {
		out = append(out, u)
	}
	return out
}
