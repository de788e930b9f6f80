// Package segment implements the on-disk, SQLite-backed inverted index
// segment store described in spec §4.4: immutable segments, an atomically
// rewritten manifest pointing at the active one, and retention pruning.
//
// Schema and PRAGMA tuning follow the original Python implementation's
// SqliteSegmentStore (search/sqlite_storage.py); the connection style
// (modernc.org/sqlite, WAL) is this module's standard way of
// opening and pooling a SQLite handle.
package segment

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"github.com/ternarybob/quaero/internal/search"
)

const (
	manifestFilename  = "manifest.json"
	dbSuffix          = ".db"
	DefaultMaxRetain  = 32
	segmentTimeLayout = time.RFC3339Nano
)

// Manifest is the small JSON index next to segment databases.
type Manifest struct {
	UpdatedAt        time.Time `json:"updated_at"`
	LatestSegmentID  string    `json:"latest_segment_id,omitempty"`
	Segments         []Entry   `json:"segments"`
}

// Entry describes one saved segment in the manifest.
type Entry struct {
	SegmentID string    `json:"segment_id"`
	CreatedAt time.Time `json:"created_at"`
	DocCount  int       `json:"doc_count"`
	Files     []string  `json:"files"`
}

// Data is the raw material handed to Save: a built segment awaiting
// persistence.
type Data struct {
	SegmentID    string
	Schema       search.Schema
	CreatedAt    time.Time
	DocCount     int
	Postings     map[string]map[string][]search.Posting // field -> term -> postings
	StoredFields map[string]map[string]any               // doc_id -> field bag
	FieldLengths map[string]map[string]int                // field -> doc_id -> length
}

// Segment is a loaded, read-only handle on a sealed segment database.
type Segment struct {
	Schema    search.Schema
	DBPath    string
	SegmentID string
	CreatedAt time.Time
	DocCount  int

	db               *sql.DB
	fieldLengthStats map[string]search.FieldLengthStats
}

// FieldLengthStats returns the field's precomputed average-length stats,
// built once when the segment was loaded. Unknown fields report a zero
// DocCount.
func (s *Segment) FieldLengthStats(field string) search.FieldLengthStats {
	return s.fieldLengthStats[field]
}

// Close releases the underlying SQLite handle.
func (s *Segment) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Store manages segment persistence under one tenant's segments directory.
type Store struct {
	Directory  string
	MaxRetain  int
	logger     arbor.ILogger
	manifestAt string
}

// NewStore creates (if needed) the segments directory and returns a Store.
func NewStore(directory string, maxRetain int, logger arbor.ILogger) (*Store, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("create segments directory: %w", err)
	}
	if maxRetain <= 0 {
		maxRetain = DefaultMaxRetain
	}
	return &Store{
		Directory:  directory,
		MaxRetain:  maxRetain,
		logger:     logger,
		manifestAt: filepath.Join(directory, manifestFilename),
	}, nil
}

func (s *Store) dbPath(segmentID string) string {
	return filepath.Join(s.Directory, segmentID+dbSuffix)
}

// SegmentPath returns the path to a segment's database file if it exists.
func (s *Store) SegmentPath(segmentID string) (string, bool) {
	p := s.dbPath(segmentID)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

func (s *Store) readManifest() (Manifest, error) {
	raw, err := os.ReadFile(s.manifestAt)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{Segments: []Entry{}}, nil
		}
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

func (s *Store) writeManifest(m Manifest) error {
	m.UpdatedAt = time.Now().UTC()
	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return atomic.WriteFile(s.manifestAt, bytes.NewReader(payload))
}

// Save writes a segment database and appends (or reuses) its manifest
// entry. Saving the same segment_id twice is a no-op: the existing entry is
// reused rather than duplicated.
func (s *Store) Save(data Data) (string, error) {
	if data.SegmentID == "" {
		return "", fmt.Errorf("segment id is required")
	}

	manifest, err := s.readManifest()
	if err != nil {
		return "", err
	}

	for _, entry := range manifest.Segments {
		if entry.SegmentID == data.SegmentID {
			manifest.LatestSegmentID = data.SegmentID
			if err := s.writeManifest(manifest); err != nil {
				return "", err
			}
			return s.dbPath(data.SegmentID), nil
		}
	}

	dbPath := s.dbPath(data.SegmentID)
	if err := s.writeSegmentDB(dbPath, data); err != nil {
		return "", err
	}

	manifest.Segments = append(manifest.Segments, Entry{
		SegmentID: data.SegmentID,
		CreatedAt: data.CreatedAt,
		DocCount:  data.DocCount,
		Files:     []string{filepath.Base(dbPath)},
	})
	manifest.LatestSegmentID = data.SegmentID

	if err := s.pruneLocked(&manifest); err != nil {
		s.logf().Warn().Err(err).Msg("segment prune failed")
	}

	if err := s.writeManifest(manifest); err != nil {
		return "", err
	}
	return dbPath, nil
}

func (s *Store) logf() arbor.ILogger {
	if s.logger != nil {
		return s.logger
	}
	return arbor.NewLogger()
}

func (s *Store) writeSegmentDB(dbPath string, data Data) error {
	_ = os.Remove(dbPath)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open segment db: %w", err)
	}
	defer db.Close()

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA mmap_size=268435456",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA page_size=4096",
		"PRAGMA cache_spill=OFF",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT)`,
		`CREATE TABLE IF NOT EXISTS postings (
			field TEXT NOT NULL, term TEXT NOT NULL, doc_id TEXT NOT NULL,
			positions_blob BLOB, frequency INTEGER NOT NULL,
			PRIMARY KEY (field, term, doc_id)
		) WITHOUT ROWID`,
		`CREATE TABLE IF NOT EXISTS documents (doc_id TEXT PRIMARY KEY, field_data TEXT)`,
		`CREATE TABLE IF NOT EXISTS field_lengths (
			field TEXT NOT NULL, doc_id TEXT NOT NULL, length INTEGER NOT NULL,
			PRIMARY KEY (field, doc_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_postings_field_term ON postings(field, term)`,
		`CREATE INDEX IF NOT EXISTS idx_field_lengths_field ON field_lengths(field)`,
	}
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	schemaJSON, err := json.Marshal(data.Schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	meta := map[string]string{
		"segment_id": data.SegmentID,
		"schema":     string(schemaJSON),
		"created_at": data.CreatedAt.Format(segmentTimeLayout),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
	}

	for field, terms := range data.Postings {
		for term, postings := range terms {
			for _, p := range postings {
				blob := search.EncodePositions(p.Positions)
				if _, err := tx.Exec(
					`INSERT OR REPLACE INTO postings (field, term, doc_id, positions_blob, frequency) VALUES (?, ?, ?, ?, ?)`,
					field, term, p.DocID, blob, p.Frequency,
				); err != nil {
					return fmt.Errorf("write posting: %w", err)
				}
			}
		}
	}

	for docID, fields := range data.StoredFields {
		payload, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal stored fields for %s: %w", docID, err)
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO documents (doc_id, field_data) VALUES (?, ?)`, docID, payload); err != nil {
			return fmt.Errorf("write document: %w", err)
		}
	}

	for field, lengths := range data.FieldLengths {
		for docID, length := range lengths {
			if _, err := tx.Exec(`INSERT OR REPLACE INTO field_lengths (field, doc_id, length) VALUES (?, ?, ?)`, field, docID, length); err != nil {
				return fmt.Errorf("write field length: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit segment: %w", err)
	}

	if _, err := db.Exec("ANALYZE"); err != nil {
		s.logf().Warn().Err(err).Msg("ANALYZE failed on new segment")
	}
	return nil
}

// Load opens a segment database by id, or returns (nil, nil) if absent.
func (s *Store) Load(segmentID string) (*Segment, error) {
	dbPath := s.dbPath(segmentID)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, nil
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open segment db: %w", err)
	}
	for _, p := range []string{
		"PRAGMA cache_size=-64000",
		"PRAGMA mmap_size=268435456",
		"PRAGMA temp_store=MEMORY",
	} {
		_, _ = db.Exec(p)
	}

	rows, err := db.Query(`SELECT key, value FROM metadata`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			db.Close()
			return nil, err
		}
		meta[k] = v
	}
	rows.Close()

	var schema search.Schema
	if raw, ok := meta["schema"]; ok {
		if err := json.Unmarshal([]byte(raw), &schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("parse segment schema: %w", err)
		}
	}

	createdAt, _ := time.Parse(segmentTimeLayout, meta["created_at"])

	var docCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&docCount); err != nil {
		db.Close()
		return nil, fmt.Errorf("count documents: %w", err)
	}

	seg := &Segment{
		Schema:    schema,
		DBPath:    dbPath,
		SegmentID: segmentID,
		CreatedAt: createdAt,
		DocCount:  docCount,
		db:        db,
	}

	rawLengths := map[string]map[string]int{}
	for _, field := range schema.TextFields() {
		lengths, err := seg.FieldLengths(context.Background(), field.Name)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("load field lengths for %s: %w", field.Name, err)
		}
		rawLengths[field.Name] = lengths
	}
	seg.fieldLengthStats = search.ComputeFieldLengthStats(rawLengths)

	return seg, nil
}

// Latest opens the manifest's active segment, or (nil, nil) if none.
func (s *Store) Latest() (*Segment, error) {
	id, err := s.LatestSegmentID()
	if err != nil || id == "" {
		return nil, err
	}
	return s.Load(id)
}

// LatestSegmentID returns the manifest's active segment id, if any.
func (s *Store) LatestSegmentID() (string, error) {
	manifest, err := s.readManifest()
	if err != nil {
		return "", err
	}
	return manifest.LatestSegmentID, nil
}

// ListSegments returns manifest entries in the order they were saved.
func (s *Store) ListSegments() ([]Entry, error) {
	manifest, err := s.readManifest()
	if err != nil {
		return nil, err
	}
	return manifest.Segments, nil
}

// PruneToSegmentIDs deletes on-disk segment files and manifest entries not
// present in keep.
func (s *Store) PruneToSegmentIDs(keep []string) error {
	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	manifest, err := s.readManifest()
	if err != nil {
		return err
	}

	retained := manifest.Segments[:0]
	for _, entry := range manifest.Segments {
		if _, ok := keepSet[entry.SegmentID]; ok {
			retained = append(retained, entry)
			continue
		}
		s.removeSegmentFiles(entry.SegmentID)
	}
	manifest.Segments = retained
	return s.writeManifest(manifest)
}

func (s *Store) removeSegmentFiles(segmentID string) {
	_ = os.Remove(s.dbPath(segmentID))
	matches, _ := filepath.Glob(filepath.Join(s.Directory, segmentID+"*.meta.json"))
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

// pruneLocked trims the manifest to the most recent MaxRetain entries,
// deleting the files backing anything older. Caller holds the manifest
// already read and about to be rewritten.
func (s *Store) pruneLocked(manifest *Manifest) error {
	if len(manifest.Segments) <= s.MaxRetain {
		return nil
	}
	sort.SliceStable(manifest.Segments, func(i, j int) bool {
		return manifest.Segments[i].CreatedAt.Before(manifest.Segments[j].CreatedAt)
	})
	excess := len(manifest.Segments) - s.MaxRetain
	for _, entry := range manifest.Segments[:excess] {
		s.removeSegmentFiles(entry.SegmentID)
	}
	manifest.Segments = manifest.Segments[excess:]
	return nil
}

// GetFieldPostings returns every (term -> postings) pair indexed for one
// field, used by the BM25 engine to avoid a per-term round trip.
func (seg *Segment) GetFieldPostings(ctx context.Context, field string) (map[string][]search.Posting, error) {
	rows, err := seg.db.QueryContext(ctx, `SELECT term, doc_id, positions_blob, frequency FROM postings WHERE field = ?`, field)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	defer rows.Close()

	out := map[string][]search.Posting{}
	for rows.Next() {
		var term, docID string
		var blob []byte
		var freq int
		if err := rows.Scan(&term, &docID, &blob, &freq); err != nil {
			return nil, err
		}
		out[term] = append(out[term], search.Posting{
			DocID:     docID,
			Frequency: freq,
			Positions: search.DecodePositions(blob),
		})
	}
	return out, rows.Err()
}

// GetPostings returns the postings for one (field, term) pair.
func (seg *Segment) GetPostings(ctx context.Context, field, term string) ([]search.Posting, error) {
	rows, err := seg.db.QueryContext(ctx, `SELECT doc_id, positions_blob, frequency FROM postings WHERE field = ? AND term = ?`, field, term)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	defer rows.Close()

	var out []search.Posting
	for rows.Next() {
		var docID string
		var blob []byte
		var freq int
		if err := rows.Scan(&docID, &blob, &freq); err != nil {
			return nil, err
		}
		out = append(out, search.Posting{DocID: docID, Frequency: freq, Positions: search.DecodePositions(blob)})
	}
	return out, rows.Err()
}

// Vocabulary returns every distinct term indexed for a field.
func (seg *Segment) Vocabulary(ctx context.Context, field string) ([]string, error) {
	rows, err := seg.db.QueryContext(ctx, `SELECT DISTINCT term FROM postings WHERE field = ?`, field)
	if err != nil {
		return nil, fmt.Errorf("query vocabulary: %w", err)
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

// FieldLengths returns doc_id -> length for a field.
func (seg *Segment) FieldLengths(ctx context.Context, field string) (map[string]int, error) {
	rows, err := seg.db.QueryContext(ctx, `SELECT doc_id, length FROM field_lengths WHERE field = ?`, field)
	if err != nil {
		return nil, fmt.Errorf("query field lengths: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var docID string
		var length int
		if err := rows.Scan(&docID, &length); err != nil {
			return nil, err
		}
		out[docID] = length
	}
	return out, rows.Err()
}

// StoredFields returns the stored field bag for a document, or nil if absent.
func (seg *Segment) StoredFields(ctx context.Context, docID string) (map[string]any, error) {
	var raw string
	err := seg.db.QueryRowContext(ctx, `SELECT field_data FROM documents WHERE doc_id = ?`, docID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("parse document fields: %w", err)
	}
	return fields, nil
}

// AllStoredFields returns the doc_id -> field bag for each of docIDs (used by the
// language-boost and proximity-in-text passes which need to scan all
// candidates already scored by term lookups).
func (seg *Segment) AllStoredFields(ctx context.Context, docIDs []string) (map[string]map[string]any, error) {
	if len(docIDs) == 0 {
		return map[string]map[string]any{}, nil
	}
	placeholders := make([]string, len(docIDs))
	args := make([]any, len(docIDs))
	for i, id := range docIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT doc_id, field_data FROM documents WHERE doc_id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := seg.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	out := map[string]map[string]any{}
	for rows.Next() {
		var docID, raw string
		if err := rows.Scan(&docID, &raw); err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, fmt.Errorf("parse document %s fields: %w", docID, err)
		}
		out[docID] = fields
	}
	return out, rows.Err()
}
