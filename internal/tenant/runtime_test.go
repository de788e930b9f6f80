package tenant

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/quaero/internal/docstore"
	"github.com/ternarybob/quaero/internal/search"
	"github.com/ternarybob/quaero/internal/search/segment"
	"github.com/ternarybob/quaero/internal/search/indexer"
)

const testDocURL = "https://example.com/install"

func newTestRuntime(t *testing.T) (*Runtime, string) {
	t.Helper()
	docsRoot := t.TempDir()

	uow, err := docstore.Begin(docsRoot, nil)
	require.NoError(t, err)
	require.NoError(t, uow.Add(docstore.Document{
		URL:      testDocURL,
		Title:    "Install Guide",
		Markdown: "# Install Guide\n\nRun the installer to set up the tool.\n",
		Meta:     docstore.Metadata{URL: testDocURL, Title: "Install Guide", Status: docstore.StatusSuccess},
	}))
	require.NoError(t, uow.Commit())

	store, err := segment.NewStore(filepath.Join(docsRoot, "__search_segments"), 0, nil)
	require.NoError(t, err)

	ix := indexer.New(indexer.TenantContext{DocsRoot: docsRoot, SourceType: "filesystem"}, search.DefaultSchema(), store, nil)
	_, err = ix.BuildSegment(indexer.BuildOptions{Persist: true})
	require.NoError(t, err)

	runtime := New(Config{Codename: "acme", DocsRoot: docsRoot, SourceType: "filesystem"}, nil, store, nil, nil)
	require.NoError(t, runtime.ReloadSearchIndex())
	return runtime, docsRoot
}

func TestRuntime_SearchReturnsRankedResultsWithMatchTrace(t *testing.T) {
	runtime, _ := newTestRuntime(t)
	resp, err := runtime.Search(context.Background(), "installer", 10, false)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "bm25f_ranking", resp.Results[0].MatchTrace.StageName)
	assert.Equal(t, "term_match", resp.Results[0].MatchTrace.MatchReason)
	assert.NotEmpty(t, resp.Results[0].MatchTrace.RankingFactors)
	assert.NotEmpty(t, resp.Results[0].Title)
}

func TestRuntime_SearchWithoutActiveSegmentErrors(t *testing.T) {
	runtime := New(Config{Codename: "acme", DocsRoot: t.TempDir()}, nil, nil, nil, nil)
	_, err := runtime.Search(context.Background(), "anything", 10, false)
	require.Error(t, err)
}

func TestRuntime_FetchFullReturnsWholeDocument(t *testing.T) {
	runtime, _ := newTestRuntime(t)

	resp, err := runtime.Fetch(testDocURL, FetchFull)
	require.NoError(t, err)
	assert.Equal(t, "Install Guide", resp.Title)
	assert.Contains(t, resp.Content, "Run the installer")
	assert.False(t, resp.Truncated)
}

func TestRuntime_FetchNoneReturnsNoContent(t *testing.T) {
	runtime, _ := newTestRuntime(t)
	resp, err := runtime.Fetch("https://example.com/missing", FetchNone)
	require.NoError(t, err)
	assert.Empty(t, resp.Content)
}

func TestRuntime_BrowseTreeSkipsInternalDirectories(t *testing.T) {
	runtime, _ := newTestRuntime(t)
	node, err := runtime.BrowseTree("", 3)
	require.NoError(t, err)
	for _, child := range node.Children {
		assert.NotEqual(t, "__search_segments", child.Name)
	}
}

func TestRuntime_HealthReportsNoIndexWithoutSegment(t *testing.T) {
	runtime := New(Config{Codename: "acme", DocsRoot: t.TempDir()}, nil, nil, nil, nil)
	health := runtime.Health()
	assert.Equal(t, "no_index", health.Status)
}

func TestRuntime_ShutdownClosesActiveSegment(t *testing.T) {
	runtime, _ := newTestRuntime(t)
	require.NoError(t, runtime.Shutdown())
}
