// Package statestore implements the per-tenant Crawl State Store described
// in spec §4.10: a single SQLite database holding URL metadata, the
// pending queue, the event log, checkpoints, and lock leases.
//
// Opens modernc.org/sqlite with the same driver-open + PRAGMA configuration
// idiom used elsewhere in this module, generalized into the self-healing
// connect with bounded retries spec §4.10 requires.
package statestore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"
)

const (
	maxConnectRetries = 5
	connectRetryDelay = 200 * time.Millisecond
)

var transientErrorSubstrings = []string{
	"disk i/o error",
	"unable to open database file",
	"database is locked",
	"database is busy",
}

// Connect opens (creating parent directories as needed) the tenant's crawl
// state database, retrying transient SQLite errors a bounded number of
// times before giving up with a DatabaseCriticalError.
func Connect(path string, logger arbor.ILogger) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state store directory: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxConnectRetries; attempt++ {
		db, err := tryConnect(path)
		if err == nil {
			return db, nil
		}
		lastErr = err
		if !isTransient(err) {
			return nil, NewDatabaseCriticalError(fmt.Errorf("non-transient connect failure: %w", err))
		}
		if logger != nil {
			logger.Warn().Int("attempt", attempt).Err(err).Msg("transient crawl state store connect failure, retrying")
		}
		time.Sleep(connectRetryDelay * time.Duration(attempt))
	}
	return nil, NewDatabaseCriticalError(fmt.Errorf("exhausted %d connect attempts: %w", maxConnectRetries, lastErr))
}

func tryConnect(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, substr := range transientErrorSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}
