package urlkey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_TrailingSlashAndFragment(t *testing.T) {
	a, err := Normalize("https://ex.com/docs/")
	require.NoError(t, err)

	b, err := Normalize("https://ex.com/docs#intro")
	require.NoError(t, err)

	require.Equal(t, a, b)
}

func TestNormalize_StripsRGQueryParam(t *testing.T) {
	a, err := Normalize("https://ex.com/docs/page?rg=abc123")
	require.NoError(t, err)

	b, err := Normalize("https://ex.com/docs/page")
	require.NoError(t, err)

	require.Equal(t, a, b)
}

func TestNormalize_SortsRemainingQueryParams(t *testing.T) {
	a, err := Normalize("https://ex.com/p?b=2&a=1")
	require.NoError(t, err)

	b, err := Normalize("https://ex.com/p?a=1&b=2")
	require.NoError(t, err)

	require.Equal(t, a, b)
}

func TestNormalize_FileLikePathKeepsNoTrailingSlash(t *testing.T) {
	n, err := Normalize("https://ex.com/docs/page.html")
	require.NoError(t, err)
	require.Equal(t, "https://ex.com/docs/page.html", n)
}

func TestRelativePath_Deterministic(t *testing.T) {
	p1, err := RelativePath("https://ex.com/docs/")
	require.NoError(t, err)

	p2, err := RelativePath("https://ex.com/docs#intro")
	require.NoError(t, err)

	require.Equal(t, p1, p2)
	require.Regexp(t, `^[0-9a-f]{64}\.md$`, p1)
}

func TestMetadataPath(t *testing.T) {
	require.Equal(t, "__docs_metadata/abc.meta.json", MetadataPath("abc.md"))
}

func TestBuilder_Paths(t *testing.T) {
	b := NewBuilder("/tmp/tenant")
	md, err := b.MarkdownPath("https://ex.com/a")
	require.NoError(t, err)
	require.Contains(t, md, "/tmp/tenant/")
	require.Contains(t, md, ".md")

	meta, err := b.MetaPath("https://ex.com/a")
	require.NoError(t, err)
	require.Contains(t, meta, MetadataDir)
}
