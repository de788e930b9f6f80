package statestore

import "database/sql"

// ensureSchema creates the crawl state store's tables if they do not yet
// exist. Table shapes follow spec §4.10 directly, applied as one
// idempotent multi-statement Exec call.
func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS url_metadata (
	url              TEXT PRIMARY KEY,
	status           TEXT NOT NULL DEFAULT 'pending',
	retry_count      INTEGER NOT NULL DEFAULT 0,
	last_fetched_at  TEXT,
	content_hash     TEXT,
	failure_reason   TEXT,
	extraction_method TEXT,
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_queue (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	url           TEXT NOT NULL UNIQUE,
	reason        TEXT,
	priority      INTEGER NOT NULL DEFAULT 0,
	enqueued_at   TEXT NOT NULL,
	dequeued_at   TEXT
);
CREATE INDEX IF NOT EXISTS idx_crawl_queue_dequeue
	ON crawl_queue (priority DESC, enqueued_at ASC)
	WHERE dequeued_at IS NULL;

CREATE TABLE IF NOT EXISTS crawl_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type  TEXT NOT NULL,
	url         TEXT,
	detail      TEXT,
	occurred_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_crawl_events_occurred_at ON crawl_events (occurred_at);

CREATE TABLE IF NOT EXISTS crawl_checkpoints (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_checkpoint_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	value       TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_locks (
	name       TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	expires_at TEXT NOT NULL
);
`)
	return err
}
