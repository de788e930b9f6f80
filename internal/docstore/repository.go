package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/quaero/internal/urlkey"
)

// Repository is the read-side accessor over a tenant's committed docs_root:
// resolve a URL to its Markdown file, load the sidecar metadata, and walk
// the tree for browse_tree.
type Repository struct {
	DocsRoot string
	builder  *urlkey.Builder
}

// NewRepository builds a Repository rooted at docsRoot.
func NewRepository(docsRoot string) *Repository {
	return &Repository{DocsRoot: docsRoot, builder: urlkey.NewBuilder(docsRoot)}
}

// ReadMarkdown resolves a URL to its on-disk Markdown file and returns the
// contents, or an error if the document doesn't exist.
func (r *Repository) ReadMarkdown(rawURL string) (string, error) {
	path, err := r.builder.MarkdownPath(rawURL)
	if err != nil {
		return "", fmt.Errorf("resolve markdown path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read markdown for %s: %w", rawURL, err)
	}
	return string(data), nil
}

// ReadMetadata resolves a URL to its sidecar metadata file, if present.
func (r *Repository) ReadMetadata(rawURL string) (*Metadata, error) {
	path, err := r.builder.MetaPath(rawURL)
	if err != nil {
		return nil, fmt.Errorf("resolve metadata path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read metadata for %s: %w", rawURL, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata for %s: %w", rawURL, err)
	}
	return &meta, nil
}

// MarkdownPathFromRelative returns the absolute path for a relative
// markdown path already known to the caller (e.g. from a directory walk).
func (r *Repository) MarkdownPathFromRelative(rel string) string {
	return filepath.Join(r.DocsRoot, rel)
}

// TreeNode is one entry in a browse_tree response.
type TreeNode struct {
	Name        string      `json:"name"`
	Title       string      `json:"title,omitempty"`
	URL         string      `json:"url,omitempty"`
	HasChildren bool        `json:"has_children"`
	Children    []*TreeNode `json:"children,omitempty"`
}

// BrowseTree walks docs_root under relPath up to depth levels, skipping
// hashed files under __docs_metadata/, __search_segments/, and any
// .staging* siblings, and hiding directories with no visible children, per
// spec §4.12.
func (r *Repository) BrowseTree(relPath string, depth int) (*TreeNode, error) {
	if depth <= 0 {
		depth = 5
	}
	root := filepath.Join(r.DocsRoot, relPath)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat browse path %s: %w", relPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("browse path %s is not a directory", relPath)
	}

	node, err := r.walk(root, depth)
	if err != nil {
		return nil, err
	}
	if node == nil {
		node = &TreeNode{Name: filepath.Base(root)}
	}
	return node, nil
}

func (r *Repository) walk(dir string, depth int) (*TreeNode, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	node := &TreeNode{Name: filepath.Base(dir)}
	if depth <= 0 {
		node.HasChildren = len(entries) > 0
		return node, nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if shouldSkipBrowseEntry(name) {
			continue
		}
		full := filepath.Join(dir, name)

		if entry.IsDir() {
			child, err := r.walk(full, depth-1)
			if err != nil {
				return nil, err
			}
			if child == nil || (!child.HasChildren && len(child.Children) == 0) {
				continue
			}
			node.Children = append(node.Children, child)
			continue
		}

		if !strings.HasSuffix(name, ".md") {
			continue
		}
		child := &TreeNode{Name: name}
		rel, err := filepath.Rel(r.DocsRoot, full)
		if err == nil {
			if meta, err := r.metadataForMarkdown(rel); err == nil && meta != nil {
				child.Title = meta.Title
				child.URL = meta.URL
			}
		}
		node.Children = append(node.Children, child)
	}

	node.HasChildren = len(node.Children) > 0
	return node, nil
}

func (r *Repository) metadataForMarkdown(mdRelPath string) (*Metadata, error) {
	metaRel := urlkey.MetadataPath(mdRelPath)
	full := filepath.Join(r.DocsRoot, metaRel)
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func shouldSkipBrowseEntry(name string) bool {
	if name == urlkey.MetadataDir || name == urlkey.SegmentsDir {
		return true
	}
	if strings.HasPrefix(name, urlkey.StagingPrefix) {
		return true
	}
	return false
}
