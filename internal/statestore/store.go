package statestore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
)

// URLMetadata mirrors the url_metadata table, per spec §4.10.
type URLMetadata struct {
	URL              string
	Status           string
	RetryCount       int
	LastFetchedAt    time.Time
	ContentHash      string
	FailureReason    string
	ExtractionMethod string
}

// QueueItem is one row dequeued from crawl_queue.
type QueueItem struct {
	ID         int64
	URL        string
	Reason     string
	Priority   int
	EnqueuedAt time.Time
}

// Event is one row recorded into crawl_events.
type Event struct {
	Type       string
	URL        string
	Detail     string
	OccurredAt time.Time
}

// StatusSnapshot summarizes queue/url_metadata state for get_status_snapshot.
type StatusSnapshot struct {
	QueueDepth     int
	PendingCount   int
	SuccessCount   int
	FailedCount    int
	LastEventAt    time.Time
}

// Lease is the result of a successful try_acquire_lock.
type Lease struct {
	Name      string
	Owner     string
	ExpiresAt time.Time
}

const timeLayout = time.RFC3339Nano

// Store wraps one tenant's crawl state database.
type Store struct {
	db     *sql.DB
	path   string
	logger arbor.ILogger
}

// Open connects to (and, if absent, creates) the tenant's crawl state
// database at path, via the self-healing Connect helper.
func Open(path string, logger arbor.ILogger) (*Store, error) {
	db, err := Connect(path, logger)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnqueueURLs inserts urls into crawl_queue, skipping ones already pending
// unless force is set (in which case the existing row's priority/reason are
// refreshed). Per spec §4.10 enqueue_urls.
func (s *Store) EnqueueURLs(urls []string, reason string, priority int, force bool) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin enqueue tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeLayout)
	enqueued := 0
	for _, u := range urls {
		var res sql.Result
		if force {
			res, err = tx.Exec(`
INSERT INTO crawl_queue (url, reason, priority, enqueued_at, dequeued_at)
VALUES (?, ?, ?, ?, NULL)
ON CONFLICT(url) DO UPDATE SET reason=excluded.reason, priority=excluded.priority,
	enqueued_at=excluded.enqueued_at, dequeued_at=NULL`, u, reason, priority, now)
		} else {
			res, err = tx.Exec(`
INSERT INTO crawl_queue (url, reason, priority, enqueued_at, dequeued_at)
VALUES (?, ?, ?, ?, NULL)
ON CONFLICT(url) DO NOTHING`, u, reason, priority, now)
		}
		if err != nil {
			return enqueued, fmt.Errorf("enqueue %q: %w", u, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			enqueued++
		}
	}

	if err := tx.Commit(); err != nil {
		return enqueued, fmt.Errorf("commit enqueue tx: %w", err)
	}
	return enqueued, nil
}

// DequeueBatch pops up to n rows ordered by priority DESC, enqueued_at ASC,
// marking them dequeued so a subsequent call does not repeat them.
func (s *Store) DequeueBatch(n int) ([]QueueItem, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin dequeue tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
SELECT id, url, reason, priority, enqueued_at
FROM crawl_queue
WHERE dequeued_at IS NULL
ORDER BY priority DESC, enqueued_at ASC
LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query crawl_queue: %w", err)
	}

	var items []QueueItem
	var ids []int64
	for rows.Next() {
		var item QueueItem
		var enqueuedAt string
		var reason sql.NullString
		if err := rows.Scan(&item.ID, &item.URL, &reason, &item.Priority, &enqueuedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan crawl_queue row: %w", err)
		}
		item.Reason = reason.String
		item.EnqueuedAt, _ = time.Parse(timeLayout, enqueuedAt)
		items = append(items, item)
		ids = append(ids, item.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	now := time.Now().UTC().Format(timeLayout)
	for _, id := range ids {
		if _, err := tx.Exec(`UPDATE crawl_queue SET dequeued_at = ? WHERE id = ?`, now, id); err != nil {
			return nil, fmt.Errorf("mark dequeued: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit dequeue tx: %w", err)
	}
	return items, nil
}

// ClearQueue deletes all un-dequeued rows, recording a crawl_events entry
// with the given reason.
func (s *Store) ClearQueue(reason string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM crawl_queue WHERE dequeued_at IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := s.RecordEvent(Event{Type: "queue_cleared", Detail: reason, OccurredAt: time.Now().UTC()}); err != nil {
		return int(n), err
	}
	return int(n), nil
}

// RequeueFailedURLs re-enqueues every url_metadata row with status=failed,
// resetting retry_count, per §4.10 requeue_failed_urls.
func (s *Store) RequeueFailedURLs() (int, error) {
	rows, err := s.db.Query(`SELECT url FROM url_metadata WHERE status = 'failed'`)
	if err != nil {
		return 0, fmt.Errorf("query failed urls: %w", err)
	}
	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			rows.Close()
			return 0, err
		}
		urls = append(urls, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	n, err := s.EnqueueURLs(urls, "requeue_failed", 0, true)
	if err != nil {
		return n, err
	}
	if _, err := s.db.Exec(`UPDATE url_metadata SET retry_count = 0 WHERE status = 'failed'`); err != nil {
		return n, fmt.Errorf("reset retry_count: %w", err)
	}
	return n, nil
}

// UpsertURLMetadata writes or updates a url_metadata row.
func (s *Store) UpsertURLMetadata(rec URLMetadata) error {
	lastFetched := ""
	if !rec.LastFetchedAt.IsZero() {
		lastFetched = rec.LastFetchedAt.UTC().Format(timeLayout)
	}
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.Exec(`
INSERT INTO url_metadata (url, status, retry_count, last_fetched_at, content_hash, failure_reason, extraction_method, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
	status=excluded.status, retry_count=excluded.retry_count,
	last_fetched_at=excluded.last_fetched_at, content_hash=excluded.content_hash,
	failure_reason=excluded.failure_reason, extraction_method=excluded.extraction_method,
	updated_at=excluded.updated_at`,
		rec.URL, rec.Status, rec.RetryCount, lastFetched, rec.ContentHash,
		rec.FailureReason, rec.ExtractionMethod, now)
	if err != nil {
		return fmt.Errorf("upsert url_metadata: %w", err)
	}
	return nil
}

// LoadURLMetadata fetches one url_metadata row, returning (nil, nil) if
// absent.
func (s *Store) LoadURLMetadata(url string) (*URLMetadata, error) {
	row := s.db.QueryRow(`
SELECT url, status, retry_count, last_fetched_at, content_hash, failure_reason, extraction_method
FROM url_metadata WHERE url = ?`, url)

	var rec URLMetadata
	var lastFetched, hash, reason, method sql.NullString
	if err := row.Scan(&rec.URL, &rec.Status, &rec.RetryCount, &lastFetched, &hash, &reason, &method); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load url_metadata: %w", err)
	}
	if lastFetched.Valid && lastFetched.String != "" {
		rec.LastFetchedAt, _ = time.Parse(timeLayout, lastFetched.String)
	}
	rec.ContentHash = hash.String
	rec.FailureReason = reason.String
	rec.ExtractionMethod = method.String
	return &rec, nil
}

// WasRecentlyFetched reports whether url's last_fetched_at falls within
// intervalHours of now.
func (s *Store) WasRecentlyFetched(url string, intervalHours float64) (bool, error) {
	rec, err := s.LoadURLMetadata(url)
	if err != nil || rec == nil || rec.LastFetchedAt.IsZero() {
		return false, err
	}
	cutoff := time.Duration(intervalHours * float64(time.Hour))
	return time.Since(rec.LastFetchedAt) < cutoff, nil
}

// RecordEvent appends one row to crawl_events.
func (s *Store) RecordEvent(e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
INSERT INTO crawl_events (event_type, url, detail, occurred_at) VALUES (?, ?, ?, ?)`,
		e.Type, e.URL, e.Detail, e.OccurredAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// EventHistoryBucket is one time-bucketed aggregate point.
type EventHistoryBucket struct {
	BucketStart time.Time
	Count       int
}

// GetEventHistory buckets crawl_events within the last `minutes` minutes
// into bucketSeconds-wide windows, per §4.10 get_event_history.
func (s *Store) GetEventHistory(minutes int, bucketSeconds int) ([]EventHistoryBucket, error) {
	since := time.Now().UTC().Add(-time.Duration(minutes) * time.Minute)
	rows, err := s.db.Query(`
SELECT occurred_at FROM crawl_events WHERE occurred_at >= ? ORDER BY occurred_at ASC`,
		since.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("query crawl_events: %w", err)
	}
	defer rows.Close()

	buckets := map[int64]int{}
	bucketWidth := time.Duration(bucketSeconds) * time.Second
	for rows.Next() {
		var occurredAt string
		if err := rows.Scan(&occurredAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, occurredAt)
		if err != nil {
			continue
		}
		bucketKey := t.Unix() / int64(bucketWidth.Seconds())
		buckets[bucketKey]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]EventHistoryBucket, 0, len(buckets))
	for key, count := range buckets {
		out = append(out, EventHistoryBucket{
			BucketStart: time.Unix(key*int64(bucketWidth.Seconds()), 0).UTC(),
			Count:       count,
		})
	}
	return out, nil
}

// EventFilter narrows get_event_log results.
type EventFilter struct {
	Type  string
	Since time.Time
	Limit int
}

// GetEventLog returns crawl_events rows matching filter, most recent first.
func (s *Store) GetEventLog(filter EventFilter) ([]Event, error) {
	query := `SELECT event_type, url, detail, occurred_at FROM crawl_events WHERE 1=1`
	var args []any
	if filter.Type != "" {
		query += ` AND event_type = ?`
		args = append(args, filter.Type)
	}
	if !filter.Since.IsZero() {
		query += ` AND occurred_at >= ?`
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	query += ` ORDER BY occurred_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query event log: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var url, detail sql.NullString
		var occurredAt string
		if err := rows.Scan(&e.Type, &url, &detail, &occurredAt); err != nil {
			return nil, err
		}
		e.URL = url.String
		e.Detail = detail.String
		e.OccurredAt, _ = time.Parse(timeLayout, occurredAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetStatusSnapshot summarizes queue depth and url_metadata status counts.
func (s *Store) GetStatusSnapshot() (StatusSnapshot, error) {
	var snap StatusSnapshot

	row := s.db.QueryRow(`SELECT COUNT(*) FROM crawl_queue WHERE dequeued_at IS NULL`)
	if err := row.Scan(&snap.QueueDepth); err != nil {
		return snap, fmt.Errorf("count queue depth: %w", err)
	}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM url_metadata GROUP BY status`)
	if err != nil {
		return snap, fmt.Errorf("count url_metadata status: %w", err)
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return snap, err
		}
		switch status {
		case "pending":
			snap.PendingCount = count
		case "success":
			snap.SuccessCount = count
		case "failed":
			snap.FailedCount = count
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	row = s.db.QueryRow(`SELECT occurred_at FROM crawl_events ORDER BY occurred_at DESC LIMIT 1`)
	var lastEventAt sql.NullString
	if err := row.Scan(&lastEventAt); err == nil && lastEventAt.Valid {
		snap.LastEventAt, _ = time.Parse(timeLayout, lastEventAt.String)
	}

	return snap, nil
}

// SetCheckpoint records name=value, keeping history when withHistory.
func (s *Store) SetCheckpoint(name, value string, withHistory bool) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.Exec(`
INSERT INTO crawl_checkpoints (name, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`, name, value, now)
	if err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	if withHistory {
		if _, err := s.db.Exec(`
INSERT INTO crawl_checkpoint_history (name, value, recorded_at) VALUES (?, ?, ?)`, name, value, now); err != nil {
			return fmt.Errorf("record checkpoint history: %w", err)
		}
	}
	return nil
}

// GetCheckpoint returns the current value for name, or "" if unset.
func (s *Store) GetCheckpoint(name string) (string, error) {
	row := s.db.QueryRow(`SELECT value FROM crawl_checkpoints WHERE name = ?`, name)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get checkpoint: %w", err)
	}
	return value, nil
}

// Maintenance deletes crawl_events older than retentionDays, per §4.10.
func (s *Store) Maintenance(retentionDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(timeLayout)
	res, err := s.db.Exec(`DELETE FROM crawl_events WHERE occurred_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune crawl_events: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// TryAcquireLock grants a TTL-based lease on name to owner, unless another
// owner already holds an unexpired lease.
func (s *Store) TryAcquireLock(name, owner string, ttl time.Duration) (*Lease, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin lock tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT owner, expires_at FROM crawl_locks WHERE name = ?`, name)
	var currentOwner, currentExpires string
	err = row.Scan(&currentOwner, &currentExpires)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("query lock: %w", err)
	}
	if err == nil {
		expires, _ := time.Parse(timeLayout, currentExpires)
		if currentOwner != owner && now.Before(expires) {
			return nil, &LockContentionError{Name: name, CurrentOwner: currentOwner}
		}
	}

	if _, err := tx.Exec(`
INSERT INTO crawl_locks (name, owner, expires_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET owner=excluded.owner, expires_at=excluded.expires_at`,
		name, owner, expiresAt.Format(timeLayout)); err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lock tx: %w", err)
	}
	return &Lease{Name: name, Owner: owner, ExpiresAt: expiresAt}, nil
}

// BreakLock forcibly removes any existing lease on name.
func (s *Store) BreakLock(name string) error {
	_, err := s.db.Exec(`DELETE FROM crawl_locks WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("break lock: %w", err)
	}
	return nil
}

// ReleaseLock removes lease's row only if it is still the current holder.
func (s *Store) ReleaseLock(lease *Lease) error {
	if lease == nil {
		return nil
	}
	_, err := s.db.Exec(`DELETE FROM crawl_locks WHERE name = ? AND owner = ?`, lease.Name, lease.Owner)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
