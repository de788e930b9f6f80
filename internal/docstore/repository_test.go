package docstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBrowseTree_SkipsInternalDirectories(t *testing.T) {
	docsRoot := t.TempDir()
	uow, err := Begin(docsRoot, nil)
	require.NoError(t, err)
	require.NoError(t, uow.Add(Document{
		URL:      "https://example.com/intro",
		Title:    "Intro",
		Markdown: "# Intro",
		Meta:     Metadata{URL: "https://example.com/intro", Title: "Intro"},
	}))
	require.NoError(t, uow.Commit())

	repo := NewRepository(docsRoot)
	tree, err := repo.BrowseTree(".", 3)
	require.NoError(t, err)

	for _, child := range tree.Children {
		require.NotEqual(t, "__docs_metadata", child.Name)
		require.NotEqual(t, "__search_segments", child.Name)
	}
	require.Len(t, tree.Children, 1)
	require.Equal(t, "Intro", tree.Children[0].Title)
}
