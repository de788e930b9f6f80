package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
)

// docExtensions lists the file suffixes copied out of a sparse git
// checkout into docs_root, per spec §4.11.
var docExtensions = []string{".md", ".markdown", ".mdx", ".txt"}

// GitSyncResult is emitted at the end of one git sync cycle, per spec
// §4.11.
type GitSyncResult struct {
	CommitID     string
	FilesCopied  int
	DurationS    float64
	RepoUpdated  bool
	Warnings     []string
}

// GitSyncConfig describes a git tenant's repo, per spec §6's deployment
// shape for git-backed sources.
type GitSyncConfig struct {
	RepoURL      string
	Branch       string
	Subpaths     []string
	StripPrefix  string
	DocsRoot     string
	WorkDir      string
	GitBinary    string
}

// GitSyncer shells out to the system git binary to pull/clone a sparse
// checkout and move its documentation files into docs_root. Each staged file
// is renamed into place on its own, so the files are not swapped in as one
// unit, and files no longer in the repository are left in docs_root.
// Uses os/exec rather than a go-git binding — no pure-Go git library is
// present anywhere in this module's dependency set.
type GitSyncer struct {
	config GitSyncConfig
	logger arbor.ILogger
}

// NewGitSyncer builds a GitSyncer, defaulting GitBinary to "git" and
// Branch to "main" when unset.
func NewGitSyncer(config GitSyncConfig, logger arbor.ILogger) *GitSyncer {
	if config.GitBinary == "" {
		config.GitBinary = "git"
	}
	if config.Branch == "" {
		config.Branch = "main"
	}
	return &GitSyncer{config: config, logger: logger}
}

// Sync performs one pull-or-clone + sparse checkout + staged copy + per-file
// rename cycle.
func (g *GitSyncer) Sync(ctx context.Context) (GitSyncResult, error) {
	start := time.Now()
	result := GitSyncResult{}

	checkoutDir := filepath.Join(g.config.WorkDir, "checkout")
	repoExists := dirHasGit(checkoutDir)

	if !repoExists {
		if err := g.clone(ctx, checkoutDir); err != nil {
			return result, fmt.Errorf("clone %s: %w", g.config.RepoURL, err)
		}
		result.RepoUpdated = true
	} else {
		updated, err := g.pull(ctx, checkoutDir)
		if err != nil {
			return result, fmt.Errorf("pull %s: %w", g.config.RepoURL, err)
		}
		result.RepoUpdated = updated
	}

	commitID, err := g.runGit(ctx, checkoutDir, "rev-parse", "HEAD")
	if err != nil {
		return result, fmt.Errorf("resolve HEAD: %w", err)
	}
	result.CommitID = strings.TrimSpace(commitID)

	stagingDir := filepath.Join(g.config.DocsRoot, ".staging"+uuid.New().String())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return result, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	copied, warnings, err := g.copyDocs(checkoutDir, stagingDir)
	if err != nil {
		return result, fmt.Errorf("copy documentation files: %w", err)
	}
	result.FilesCopied = copied
	result.Warnings = warnings

	if err := g.swap(stagingDir); err != nil {
		return result, fmt.Errorf("swap staged docs into docs_root: %w", err)
	}

	result.DurationS = time.Since(start).Seconds()
	return result, nil
}

func dirHasGit(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info.IsDir()
}

func (g *GitSyncer) clone(ctx context.Context, checkoutDir string) error {
	if err := os.MkdirAll(filepath.Dir(checkoutDir), 0o755); err != nil {
		return err
	}
	args := []string{"clone", "--filter=blob:none", "--no-checkout", "--branch", g.config.Branch, g.config.RepoURL, checkoutDir}
	if _, err := g.runGitIn(ctx, "", args...); err != nil {
		return err
	}
	if len(g.config.Subpaths) > 0 {
		if _, err := g.runGit(ctx, checkoutDir, "sparse-checkout", append([]string{"set"}, g.config.Subpaths...)...); err != nil {
			return err
		}
	}
	_, err := g.runGit(ctx, checkoutDir, "checkout", g.config.Branch)
	return err
}

func (g *GitSyncer) pull(ctx context.Context, checkoutDir string) (bool, error) {
	before, err := g.runGit(ctx, checkoutDir, "rev-parse", "HEAD")
	if err != nil {
		return false, err
	}
	if _, err := g.runGit(ctx, checkoutDir, "fetch", "origin", g.config.Branch); err != nil {
		return false, err
	}
	if _, err := g.runGit(ctx, checkoutDir, "checkout", g.config.Branch); err != nil {
		return false, err
	}
	if _, err := g.runGit(ctx, checkoutDir, "reset", "--hard", "origin/"+g.config.Branch); err != nil {
		return false, err
	}
	after, err := g.runGit(ctx, checkoutDir, "rev-parse", "HEAD")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(before) != strings.TrimSpace(after), nil
}

func (g *GitSyncer) runGit(ctx context.Context, dir string, args ...string) (string, error) {
	return g.runGitIn(ctx, dir, args...)
}

func (g *GitSyncer) runGitIn(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.config.GitBinary, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// copyDocs walks checkoutDir for files matching docExtensions, optionally
// stripping StripPrefix from their relative path, and copies them into
// stagingDir.
func (g *GitSyncer) copyDocs(checkoutDir, stagingDir string) (int, []string, error) {
	copied := 0
	var warnings []string

	err := filepath.Walk(checkoutDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			warnings = append(warnings, walkErr.Error())
			return nil
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasDocExtension(path) {
			return nil
		}

		rel, err := filepath.Rel(checkoutDir, path)
		if err != nil {
			warnings = append(warnings, err.Error())
			return nil
		}
		rel = filepath.ToSlash(rel)
		if g.config.StripPrefix != "" {
			rel = strings.TrimPrefix(rel, g.config.StripPrefix)
			rel = strings.TrimPrefix(rel, "/")
		}
		if rel == "" {
			return nil
		}

		target := filepath.Join(stagingDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			warnings = append(warnings, err.Error())
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			warnings = append(warnings, err.Error())
			return nil
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			warnings = append(warnings, err.Error())
			return nil
		}
		copied++
		return nil
	})
	return copied, warnings, err
}

func hasDocExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range docExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// swap moves every file from stagingDir into docs_root, overwriting
// siblings, per the same staged-commit idiom docstore.UnitOfWork uses.
func (g *GitSyncer) swap(stagingDir string) error {
	return filepath.Walk(stagingDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info.IsDir() {
			return walkErr
		}
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(g.config.DocsRoot, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.Rename(path, target)
	})
}
