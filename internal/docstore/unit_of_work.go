package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quaero/internal/urlkey"
)

const defaultStagingSweepAge = time.Hour

// UnitOfWork stages Markdown+metadata writes in an isolated directory and
// promotes them into docs_root only on Commit, per spec §4.9.
type UnitOfWork struct {
	docsRoot    string
	stagingDir  string
	builder     *urlkey.Builder
	stagedFiles []string
	logger      arbor.ILogger
	done        bool
	mu          sync.Mutex
}

// Begin creates a new UUID-suffixed staging directory under docsRoot,
// mirroring the __docs_metadata/ subtree.
func Begin(docsRoot string, logger arbor.ILogger) (*UnitOfWork, error) {
	stagingDir := filepath.Join(docsRoot, urlkey.StagingPrefix+uuid.New().String())
	if err := os.MkdirAll(filepath.Join(stagingDir, urlkey.MetadataDir), 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &UnitOfWork{
		docsRoot:   docsRoot,
		stagingDir: stagingDir,
		builder:    &urlkey.Builder{DocsRoot: stagingDir},
		logger:     logger,
	}, nil
}

// StagingDir returns the isolated directory this unit of work writes into.
func (u *UnitOfWork) StagingDir() string {
	return u.stagingDir
}

// Add writes doc's markdown + metadata beneath the staging directory, keyed
// by the deterministic relative path from §4.1. Safe for concurrent use by
// multiple crawler workers.
func (u *UnitOfWork) Add(doc Document) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return fmt.Errorf("unit of work already committed or rolled back")
	}
	mdPath, err := u.builder.MarkdownPath(doc.URL)
	if err != nil {
		return fmt.Errorf("derive markdown path for %s: %w", doc.URL, err)
	}
	metaPath, err := u.builder.MetaPath(doc.URL)
	if err != nil {
		return fmt.Errorf("derive metadata path for %s: %w", doc.URL, err)
	}

	if err := os.MkdirAll(filepath.Dir(mdPath), 0o755); err != nil {
		return fmt.Errorf("create markdown parent dir: %w", err)
	}
	if err := os.WriteFile(mdPath, []byte(doc.Markdown), 0o644); err != nil {
		return fmt.Errorf("write staged markdown: %w", err)
	}

	metaPayload, err := json.MarshalIndent(doc.Meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
		return fmt.Errorf("create metadata parent dir: %w", err)
	}
	if err := os.WriteFile(metaPath, metaPayload, 0o644); err != nil {
		return fmt.Errorf("write staged metadata: %w", err)
	}

	u.stagedFiles = append(u.stagedFiles, mdPath, metaPath)
	return nil
}

// Commit moves every staged file into docs_root, overwriting existing
// siblings of the same document, then removes the staging directory.
func (u *UnitOfWork) Commit() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return fmt.Errorf("unit of work already committed or rolled back")
	}
	u.done = true

	for _, stagedPath := range u.stagedFiles {
		rel, err := filepath.Rel(u.stagingDir, stagedPath)
		if err != nil {
			return fmt.Errorf("relativize staged path %s: %w", stagedPath, err)
		}
		target := filepath.Join(u.docsRoot, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create target dir for %s: %w", target, err)
		}
		if err := os.Rename(stagedPath, target); err != nil {
			return fmt.Errorf("promote %s: %w", rel, err)
		}
	}
	return os.RemoveAll(u.stagingDir)
}

// Rollback discards every staged file by removing the staging directory.
// Safe to call after a partial Add failure; idempotent.
func (u *UnitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return nil
	}
	u.done = true
	return os.RemoveAll(u.stagingDir)
}

// SweepOrphans removes staging directories under docsRoot whose mtime
// exceeds maxAge, enabling crash recovery per spec §4.9. maxAge <= 0 uses
// the default of one hour.
func SweepOrphans(docsRoot string, maxAge time.Duration, logger arbor.ILogger) (int, error) {
	if maxAge <= 0 {
		maxAge = defaultStagingSweepAge
	}
	entries, err := os.ReadDir(docsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read docs root: %w", err)
	}

	swept := 0
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) <= len(urlkey.StagingPrefix) {
			continue
		}
		if entry.Name()[:len(urlkey.StagingPrefix)] != urlkey.StagingPrefix {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		full := filepath.Join(docsRoot, entry.Name())
		if err := os.RemoveAll(full); err != nil {
			if logger != nil {
				logger.Warn().Str("dir", full).Err(err).Msg("failed to sweep orphan staging directory")
			}
			continue
		}
		swept++
		if logger != nil {
			logger.Info().Str("dir", full).Msg("swept orphan staging directory")
		}
	}
	return swept, nil
}
