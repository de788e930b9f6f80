// Package urlkey implements the deterministic URL <-> on-disk path mapping
// that every tenant component (crawler, fetcher, indexer, runtime) relies on
// for idempotency: two URLs that only differ by fragment or by the "rg" query
// parameter must translate to the same relative path.
package urlkey

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"sort"
	"strings"
)

const (
	// MetadataDir mirrors the markdown tree under docs_root.
	MetadataDir = "__docs_metadata"
	// SegmentsDir holds the on-disk search index.
	SegmentsDir = "__search_segments"
	// StagingPrefix names UnitOfWork staging directories under docs_root.
	StagingPrefix = ".staging"
)

// Normalize puts a URL into its canonical form: fragment stripped, the "rg"
// query parameter stripped, remaining query parameters sorted, and a
// trailing slash added to paths that don't look like a file (no extension
// segment at the end).
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		values := u.Query()
		values.Del("rg")
		if len(values) == 0 {
			u.RawQuery = ""
		} else {
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var b strings.Builder
			for i, k := range keys {
				vs := values[k]
				sort.Strings(vs)
				for j, v := range vs {
					if i > 0 || j > 0 {
						b.WriteByte('&')
					}
					b.WriteString(url.QueryEscape(k))
					b.WriteByte('=')
					b.WriteString(url.QueryEscape(v))
				}
			}
			u.RawQuery = b.String()
		}
	}

	if looksLikeDirectory(u.Path) && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	return u.String(), nil
}

// looksLikeDirectory reports whether the final path segment has no
// file-extension suffix, in which case it's treated as a directory.
func looksLikeDirectory(p string) bool {
	if p == "" {
		return true
	}
	last := path.Base(p)
	if last == "/" || last == "." {
		return true
	}
	ext := path.Ext(last)
	return ext == ""
}

// Equal reports whether two URLs normalize to the same canonical form.
func Equal(a, b string) bool {
	na, errA := Normalize(a)
	nb, errB := Normalize(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return na == nb
}

// RelativePath computes the sha256-hex based relative markdown path for a
// URL: deterministic, injective in practice, and portable across platforms.
func RelativePath(rawURL string) (string, error) {
	normalized, err := Normalize(rawURL)
	if err != nil {
		return "", err
	}
	return Hash(normalized) + ".md", nil
}

// Hash returns the lowercase hex sha256 digest of the normalized URL.
func Hash(normalizedURL string) string {
	sum := sha256.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(sum[:])
}

// MetadataPath returns the sibling .meta.json path under docs_root's
// __docs_metadata subtree for a given markdown relative path, e.g.
// "ab12....md" -> "__docs_metadata/ab12....meta.json".
func MetadataPath(markdownRelPath string) string {
	base := strings.TrimSuffix(markdownRelPath, ".md")
	return path.Join(MetadataDir, base+".meta.json")
}

// Builder resolves absolute on-disk paths rooted at a tenant's docs_root.
type Builder struct {
	DocsRoot string
}

// NewBuilder creates a path builder for the given docs_root.
func NewBuilder(docsRoot string) *Builder {
	return &Builder{DocsRoot: docsRoot}
}

// MarkdownPath returns the absolute markdown file path for a URL.
func (b *Builder) MarkdownPath(rawURL string) (string, error) {
	rel, err := RelativePath(rawURL)
	if err != nil {
		return "", err
	}
	return path.Join(b.DocsRoot, rel), nil
}

// MetaPath returns the absolute metadata file path for a URL.
func (b *Builder) MetaPath(rawURL string) (string, error) {
	rel, err := RelativePath(rawURL)
	if err != nil {
		return "", err
	}
	return path.Join(b.DocsRoot, MetadataPath(rel)), nil
}

// SegmentsPath returns the absolute search-segments directory.
func (b *Builder) SegmentsPath() string {
	return path.Join(b.DocsRoot, SegmentsDir)
}

// MetadataRoot returns the absolute metadata tree root.
func (b *Builder) MetadataRoot() string {
	return path.Join(b.DocsRoot, MetadataDir)
}
