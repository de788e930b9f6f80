package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawler_CrawlFollowsLinksOnSameHostAndPersistsDocuments(t *testing.T) {
	var mux http.ServeMux
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Home</title></head><body><article><h1>Home</h1><p>Welcome.</p><a href="/guide">Guide</a></article></body></html>`))
	})
	mux.HandleFunc("/guide", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Guide</title></head><body><article><h1>Guide</h1><p>Details here.</p></article></body></html>`))
	})
	server := httptest.NewServer(&mux)
	defer server.Close()

	docsRoot := t.TempDir()
	fetcher := NewFetcher(FetcherConfig{}, nil, nil, nil)
	filter := NewLinkFilter(nil, nil, nil, nil, nil)
	concurrency := NewAdaptiveConcurrencyLimiter(2, 5)

	var discovered []string
	crawler := NewCrawler(docsRoot, fetcher, filter, concurrency, nil, nil)

	summary, err := crawler.Crawl(context.Background(), CrawlOptions{
		StartURLs:   []string{server.URL + "/"},
		WorkerCount: 2,
		OnURLDiscovered: func(url string) {
			discovered = append(discovered, url)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 0, summary.Failed)
	assert.Len(t, discovered, 2)
	assert.True(t, summary.Collected[server.URL+"/"])

	entries, err := os.ReadDir(docsRoot)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	foundMarkdown := false
	_ = filepath.Walk(docsRoot, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".md" {
			foundMarkdown = true
		}
		return nil
	})
	assert.True(t, foundMarkdown, "expected at least one committed markdown file")
}

func TestCrawler_CrawlRequiresAtLeastOneStartURL(t *testing.T) {
	crawler := NewCrawler(t.TempDir(), NewFetcher(FetcherConfig{}, nil, nil, nil), nil, NewAdaptiveConcurrencyLimiter(1, 1), nil, nil)
	_, err := crawler.Crawl(context.Background(), CrawlOptions{})
	require.Error(t, err)
}
