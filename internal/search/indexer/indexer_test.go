package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/quaero/internal/search"
	"github.com/ternarybob/quaero/internal/search/segment"
)

func writeFixture(t *testing.T, docsRoot, name, markdown string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(docsRoot, name), []byte(markdown), 0o644))
}

func TestIndexer_BuildSegment_IndexesDiscoveredDocs(t *testing.T) {
	docsRoot := t.TempDir()
	writeFixture(t, docsRoot, "a1.md", "# Install Guide\n\nHow to install the thing.\n")
	writeFixture(t, docsRoot, "a2.md", "# Configuration\n\nHow to configure settings.\n")

	store, err := segment.NewStore(filepath.Join(docsRoot, "__search_segments"), 0, nil)
	require.NoError(t, err)

	ix := New(TenantContext{DocsRoot: docsRoot, SourceType: "filesystem"}, search.DefaultSchema(), store, nil)

	result, err := ix.BuildSegment(BuildOptions{Persist: true})
	require.NoError(t, err)
	assert.Equal(t, 2, result.DocumentsIndexed)
	require.Len(t, result.SegmentPaths, 1)

	seg, err := store.Load(result.SegmentIDs[0])
	require.NoError(t, err)
	require.NotNil(t, seg)
	defer seg.Close()

	postings, err := seg.GetFieldPostings(context.Background(), "body")
	require.NoError(t, err)
	assert.Contains(t, postings, "install")
}

func TestIndexer_BuildSegment_IsNoOpWhenFingerprintUnchanged(t *testing.T) {
	docsRoot := t.TempDir()
	writeFixture(t, docsRoot, "a1.md", "# Install Guide\n\nHow to install the thing.\n")

	store, err := segment.NewStore(filepath.Join(docsRoot, "__search_segments"), 0, nil)
	require.NoError(t, err)
	ix := New(TenantContext{DocsRoot: docsRoot, SourceType: "filesystem"}, search.DefaultSchema(), store, nil)

	first, err := ix.BuildSegment(BuildOptions{Persist: true})
	require.NoError(t, err)

	second, err := ix.BuildSegment(BuildOptions{Persist: true})
	require.NoError(t, err)

	assert.Equal(t, first.SegmentIDs[0], second.SegmentIDs[0])

	segments, err := store.ListSegments()
	require.NoError(t, err)
	assert.Len(t, segments, 1)
}

func TestIndexer_FingerprintAudit_FlagsNeedsRebuild(t *testing.T) {
	docsRoot := t.TempDir()
	writeFixture(t, docsRoot, "a1.md", "# Install Guide\n\nHow to install the thing.\n")

	store, err := segment.NewStore(filepath.Join(docsRoot, "__search_segments"), 0, nil)
	require.NoError(t, err)
	ix := New(TenantContext{DocsRoot: docsRoot, SourceType: "filesystem"}, search.DefaultSchema(), store, nil)

	audit, err := ix.FingerprintAudit()
	require.NoError(t, err)
	assert.True(t, audit.NeedsRebuild)

	_, err = ix.BuildSegment(BuildOptions{Persist: true})
	require.NoError(t, err)

	audit, err = ix.FingerprintAudit()
	require.NoError(t, err)
	assert.False(t, audit.NeedsRebuild)
}

func TestIndexer_OnlineTenantAppliesURLFilters(t *testing.T) {
	docsRoot := t.TempDir()
	writeFixture(t, docsRoot, "a1.md", "# Allowed\n\nAllowed body text.\n")

	store, err := segment.NewStore(filepath.Join(docsRoot, "__search_segments"), 0, nil)
	require.NoError(t, err)
	ctx := TenantContext{
		DocsRoot:             docsRoot,
		SourceType:           "online",
		URLWhitelistPrefixes: []string{"https://allowed.example.com/"},
	}
	ix := New(ctx, search.DefaultSchema(), store, nil)

	result, err := ix.BuildSegment(BuildOptions{Persist: true})
	require.NoError(t, err)
	assert.Equal(t, 0, result.DocumentsIndexed)
	assert.Equal(t, 1, result.DocumentsSkipped)
}
