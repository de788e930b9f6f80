// Package indexer implements the segment-building pipeline described in
// spec §4.5: discover Markdown + sidecar metadata under a tenant's
// docs_root, extract fields, fingerprint the input set, and hand the
// result to the segment store.
//
// Uses github.com/yuin/goldmark for the field-extraction AST walk (the
// ast.Walk idiom here is generalized to text extraction instead of HTML
// rendering).
package indexer

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/quaero/internal/docstore"
	"github.com/ternarybob/quaero/internal/urlkey"
)

// discoveredFile pairs a markdown file with its optional sidecar metadata.
type discoveredFile struct {
	mdPath   string
	mdRel    string
	metaPath string
	meta     *docstore.Metadata
}

// discover walks docsRoot for *.md files, excluding __docs_metadata/,
// __search_segments/, and any .staging* directories, pairing each with its
// mirrored *.meta.json sidecar when present.
func discover(docsRoot string) ([]discoveredFile, error) {
	var found []discoveredFile

	err := filepath.WalkDir(docsRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if name == urlkey.MetadataDir || name == urlkey.SegmentsDir || strings.HasPrefix(name, urlkey.StagingPrefix) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".md") {
			return nil
		}

		rel, err := filepath.Rel(docsRoot, path)
		if err != nil {
			return err
		}

		df := discoveredFile{mdPath: path, mdRel: rel}
		metaRel := urlkey.MetadataPath(filepath.ToSlash(rel))
		metaAbs := filepath.Join(docsRoot, filepath.FromSlash(metaRel))
		if data, err := os.ReadFile(metaAbs); err == nil {
			var meta docstore.Metadata
			if jsonErr := json.Unmarshal(data, &meta); jsonErr == nil {
				df.metaPath = metaAbs
				df.meta = &meta
			}
		}
		found = append(found, df)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
