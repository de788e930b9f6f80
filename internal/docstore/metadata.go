// Package docstore implements the transactional Markdown+metadata writer
// described in spec §4.9: a Unit of Work stages files in a UUID-isolated
// directory and promotes them into docs_root atomically.
//
// Uses github.com/google/uuid for staging-directory correlation ids;
// atomic promotion follows the same write-temp+rename idiom used by the
// segment store's manifest writes.
package docstore

import "time"

// Status is the lifecycle state of a document's fetch.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Metadata is the sidecar persisted at
// <docs_root>/__docs_metadata/<hash>.meta.json next to a document's
// Markdown file.
type Metadata struct {
	URL            string    `json:"url"`
	Title          string    `json:"title,omitempty"`
	Status         Status    `json:"status"`
	RetryCount     int       `json:"retry_count"`
	LastFetchedAt  time.Time `json:"last_fetched_at"`
	ContentHash    string    `json:"content_hash,omitempty"`
	Language       string    `json:"language,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	FailureReason     string `json:"failure_reason,omitempty"`
	ExtractionMethod  string `json:"extraction_method,omitempty"`
}

// Document is the Fetcher's output, handed to the repository for staging.
type Document struct {
	URL      string
	Title    string
	Markdown string
	Text     string
	Excerpt  string
	Meta     Metadata
}

// Valid reports the §3 invariants: non-empty title, and at least one of
// markdown/text non-whitespace.
func (d Document) Valid() bool {
	if d.Title == "" {
		return false
	}
	return nonBlank(d.Markdown) || nonBlank(d.Text)
}

func nonBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
	}
	return false
}
