package tenant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSnippet_HighlightsPlainStyle(t *testing.T) {
	body := "This is an introduction. The installer requires Go 1.21 or newer. Run the installer from the terminal."
	snippet := BuildSnippet(body, []string{"installer"}, SnippetPlain)
	assert.Contains(t, snippet, "[[installer]]")
}

func TestBuildSnippet_HighlightsHTMLStyle(t *testing.T) {
	body := "Background. The installer requires Go 1.21 or newer. More text follows after this sentence ends."
	snippet := BuildSnippet(body, []string{"installer"}, SnippetHTML)
	assert.Contains(t, snippet, "<mark>installer</mark>")
}

func TestBuildSnippet_ReturnsTruncatedBodyWhenNoMatch(t *testing.T) {
	body := strings.Repeat("no matching terms here. ", 20)
	snippet := BuildSnippet(body, []string{"zzzznotfound"}, SnippetPlain)
	assert.True(t, len(snippet) <= defaultMaxLength+len("…"))
}

func TestBuildSnippet_SkipsMarkdownLinkTargets(t *testing.T) {
	body := "See the [installer guide](https://example.com/installer) for setup details and configuration steps."
	snippet := BuildSnippet(body, []string{"installer"}, SnippetPlain)
	assert.NotContains(t, snippet, "[[installer]](")
}

func TestBuildSnippet_CapsAtThreeHighlights(t *testing.T) {
	body := "alpha alpha alpha alpha alpha alpha in one single sentence without any punctuation breaks at all here."
	snippet := BuildSnippet(body, []string{"alpha"}, SnippetPlain)
	assert.Equal(t, 3, strings.Count(snippet, "[[alpha]]"))
}

func TestBuildSnippet_EmptyInputsReturnEmpty(t *testing.T) {
	assert.Equal(t, "", BuildSnippet("", []string{"x"}, SnippetPlain))
	assert.Equal(t, "", BuildSnippet("body", nil, SnippetPlain))
}
