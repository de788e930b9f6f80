package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_PrimaryFetchExtractsTitleAndMarkdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Install Guide</title></head><body><article><h1>Install</h1><p>Run the installer.</p></article></body></html>`))
	}))
	defer server.Close()

	f := NewFetcher(FetcherConfig{}, nil, nil, nil)
	doc, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Install Guide", doc.Title)
	assert.Contains(t, doc.Markdown, "Run the installer")
	assert.Equal(t, "primary", doc.ExtractionMethod)
}

func TestFetcher_NonOKStatusReturnsTypedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewFetcher(FetcherConfig{}, nil, nil, nil)
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	var failure *FetchFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "status=500", failure.Reason)
}

func TestFetcher_MarkdownMirrorShortcutSkipsHTMLExtraction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page.md" {
			w.Write([]byte("# Mirrored\n\nContent from mirror.\n"))
			return
		}
		w.Write([]byte("<html><body>fallback html</body></html>"))
	}))
	defer server.Close()

	f := NewFetcher(FetcherConfig{MarkdownMirrorSuffix: ".md"}, nil, nil, nil)
	doc, err := f.Fetch(context.Background(), server.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "markdown_mirror", doc.ExtractionMethod)
	assert.Contains(t, doc.Markdown, "Mirrored")
}

func TestFetcher_StaticAssetSkipsFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewFetcher(FetcherConfig{FallbackEnabled: true, FallbackURL: "http://fallback.invalid"}, nil, nil, nil)
	_, err := f.Fetch(context.Background(), server.URL+"/assets/app.js")
	require.Error(t, err)
	var failure *FetchFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "fallback_skipped_asset", failure.Reason)
}
