package docstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_CommitPromotesFiles(t *testing.T) {
	docsRoot := t.TempDir()

	uow, err := Begin(docsRoot, nil)
	require.NoError(t, err)

	doc := Document{
		URL:      "https://example.com/guide",
		Title:    "Guide",
		Markdown: "# Guide\n\nBody text.",
		Meta:     Metadata{URL: "https://example.com/guide", Status: StatusSuccess, LastFetchedAt: time.Now()},
	}
	require.NoError(t, uow.Add(doc))
	require.NoError(t, uow.Commit())

	repo := NewRepository(docsRoot)
	content, err := repo.ReadMarkdown(doc.URL)
	require.NoError(t, err)
	assert.Contains(t, content, "Body text.")

	meta, err := repo.ReadMetadata(doc.URL)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, StatusSuccess, meta.Status)

	_, err = os.Stat(uow.StagingDir())
	assert.True(t, os.IsNotExist(err))
}

func TestUnitOfWork_RollbackRemovesStaging(t *testing.T) {
	docsRoot := t.TempDir()
	uow, err := Begin(docsRoot, nil)
	require.NoError(t, err)

	require.NoError(t, uow.Add(Document{URL: "https://example.com/a", Title: "A", Markdown: "body"}))
	require.NoError(t, uow.Rollback())

	_, err = os.Stat(uow.StagingDir())
	assert.True(t, os.IsNotExist(err))
}

func TestUnitOfWork_ConcurrentUnitsUseDistinctStagingDirs(t *testing.T) {
	docsRoot := t.TempDir()
	a, err := Begin(docsRoot, nil)
	require.NoError(t, err)
	b, err := Begin(docsRoot, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.StagingDir(), b.StagingDir())
	require.NoError(t, a.Rollback())
	require.NoError(t, b.Rollback())
}

func TestSweepOrphans_RemovesOldStagingDirs(t *testing.T) {
	docsRoot := t.TempDir()
	stale := filepath.Join(docsRoot, ".staging-old")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	oldTime := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, oldTime, oldTime))

	fresh := filepath.Join(docsRoot, ".staging-fresh")
	require.NoError(t, os.MkdirAll(fresh, 0o755))

	swept, err := SweepOrphans(docsRoot, time.Hour, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}
