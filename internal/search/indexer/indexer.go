package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quaero/internal/search"
	"github.com/ternarybob/quaero/internal/search/analyzer"
	"github.com/ternarybob/quaero/internal/search/segment"
)

// TenantContext is the indexer's view of a tenant, per spec §4.5.
type TenantContext struct {
	Codename              string
	DocsRoot              string
	SegmentsDir           string
	SourceType            string
	URLWhitelistPrefixes  []string
	URLBlacklistPrefixes  []string
	AnalyzerProfile       string
}

// FingerprintResult is the outcome of fingerprint_audit().
type FingerprintResult struct {
	Fingerprint       string
	CurrentSegmentID  string
	NeedsRebuild      bool
}

// BuildOptions customizes build_segment().
type BuildOptions struct {
	ChangedPaths []string
	ChangedOnly  bool
	Limit        int
	Persist      bool
}

// BuildResult is the outcome of build_segment().
type BuildResult struct {
	DocumentsIndexed int
	DocumentsSkipped int
	Errors           []string
	SegmentIDs       []string
	SegmentPaths     []string
}

// Indexer builds segments for one tenant.
type Indexer struct {
	Context TenantContext
	Schema  search.Schema
	Store   *segment.Store
	Logger  arbor.ILogger
}

// New builds an Indexer for a tenant, defaulting to the documentation
// schema when none is supplied.
func New(ctx TenantContext, schema search.Schema, store *segment.Store, logger arbor.ILogger) *Indexer {
	if len(schema.Fields) == 0 {
		schema = search.DefaultSchema()
	}
	return &Indexer{Context: ctx, Schema: schema, Store: store, Logger: logger}
}

func (ix *Indexer) logf() arbor.ILogger {
	if ix.Logger != nil {
		return ix.Logger
	}
	return arbor.NewLogger()
}

// FingerprintAudit computes the current fingerprint over docs_root and
// compares it against the manifest's active segment id.
func (ix *Indexer) FingerprintAudit() (FingerprintResult, error) {
	files, err := discover(ix.Context.DocsRoot)
	if err != nil {
		return FingerprintResult{}, fmt.Errorf("discover documents: %w", err)
	}

	tuples := make([]fingerprintTuple, 0, len(files))
	for _, f := range files {
		content, err := os.ReadFile(f.mdPath)
		if err != nil {
			continue
		}
		tuple := fingerprintTuple{ContentHash: contentHash(content)}
		if f.meta != nil {
			tuple.URL = f.meta.URL
			tuple.LastFetchedAt = f.meta.LastFetchedAt.UTC().Format(time.RFC3339Nano)
		} else {
			tuple.URL = f.mdRel
		}
		tuples = append(tuples, tuple)
	}

	fingerprint, err := computeFingerprint(ix.Schema, tuples)
	if err != nil {
		return FingerprintResult{}, fmt.Errorf("compute fingerprint: %w", err)
	}

	currentID, err := ix.Store.LatestSegmentID()
	if err != nil {
		return FingerprintResult{}, fmt.Errorf("read latest segment id: %w", err)
	}

	return FingerprintResult{
		Fingerprint:      fingerprint,
		CurrentSegmentID: currentID,
		NeedsRebuild:     fingerprint != currentID,
	}, nil
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// BuildSegment discovers docs_root, extracts fields, and persists a new
// segment when opts.Persist is set (it is false unless the caller sets it). When the computed
// fingerprint matches the manifest's active segment, the build is a no-op
// and the existing segment id is returned.
func (ix *Indexer) BuildSegment(opts BuildOptions) (BuildResult, error) {
	files, err := discover(ix.Context.DocsRoot)
	if err != nil {
		return BuildResult{}, fmt.Errorf("discover documents: %w", err)
	}

	changedSet := map[string]struct{}{}
	for _, p := range opts.ChangedPaths {
		changedSet[p] = struct{}{}
	}

	result := BuildResult{}
	tuples := make([]fingerprintTuple, 0, len(files))
	postings := map[string]map[string][]search.Posting{}
	storedFields := map[string]map[string]any{}
	fieldLengths := map[string]map[string]int{}

	for _, f := range files {
		if opts.Limit > 0 && result.DocumentsIndexed >= opts.Limit {
			break
		}
		if opts.ChangedOnly && len(changedSet) > 0 {
			if _, ok := changedSet[f.mdRel]; !ok {
				result.DocumentsSkipped++
				continue
			}
		}

		content, err := os.ReadFile(f.mdPath)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.mdRel, err))
			continue
		}

		rawURL := f.mdRel
		if f.meta != nil && f.meta.URL != "" {
			rawURL = f.meta.URL
		}

		if ix.Context.SourceType == "online" && !passesURLFilters(rawURL, ix.Context.URLWhitelistPrefixes, ix.Context.URLBlacklistPrefixes) {
			result.DocumentsSkipped++
			continue
		}

		extracted := extractFields(rawURL, f.mdRel, string(content), f.meta)
		docID := rawURL

		ix.indexDocument(docID, extracted, postings, fieldLengths)
		lastFetched := time.Now().UTC()
		if f.meta != nil && !f.meta.LastFetchedAt.IsZero() {
			lastFetched = f.meta.LastFetchedAt.UTC()
		}
		storedFields[docID] = ix.storedBag(extracted, lastFetched)

		tuple := fingerprintTuple{URL: rawURL, ContentHash: contentHash(content)}
		if f.meta != nil {
			tuple.LastFetchedAt = f.meta.LastFetchedAt.UTC().Format(time.RFC3339Nano)
		}
		tuples = append(tuples, tuple)

		result.DocumentsIndexed++
	}

	fingerprint, err := computeFingerprint(ix.Schema, tuples)
	if err != nil {
		return result, fmt.Errorf("compute fingerprint: %w", err)
	}
	result.SegmentIDs = append(result.SegmentIDs, fingerprint)

	if !opts.Persist {
		return result, nil
	}

	currentID, err := ix.Store.LatestSegmentID()
	if err == nil && currentID == fingerprint {
		if path, ok := ix.Store.SegmentPath(fingerprint); ok {
			result.SegmentPaths = append(result.SegmentPaths, path)
		}
		return result, nil
	}

	path, err := ix.Store.Save(segment.Data{
		SegmentID:    fingerprint,
		Schema:       ix.Schema,
		CreatedAt:    time.Now().UTC(),
		DocCount:     result.DocumentsIndexed,
		Postings:     postings,
		StoredFields: storedFields,
		FieldLengths: fieldLengths,
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("save segment: %v", err))
		return result, fmt.Errorf("save segment: %w", err)
	}
	result.SegmentPaths = append(result.SegmentPaths, path)
	return result, nil
}

func (ix *Indexer) storedBag(f extractedFields, lastFetched time.Time) map[string]any {
	bag := map[string]any{}
	for _, field := range ix.Schema.Fields {
		if !field.Stored {
			continue
		}
		switch field.Name {
		case "url":
			bag["url"] = f.URL
		case "title":
			bag["title"] = f.Title
		case "body":
			bag["body"] = f.Body
		case "path":
			bag["path"] = f.Path
		case "language":
			bag["language"] = f.Language
		case "excerpt":
			bag["excerpt"] = f.Excerpt
		case "timestamp":
			bag["timestamp"] = lastFetched.Unix()
		}
	}
	return bag
}

func (ix *Indexer) indexDocument(docID string, f extractedFields, postings map[string]map[string][]search.Posting, fieldLengths map[string]map[string]int) {
	rawByField := map[string]string{
		"url":          f.URL,
		"url_path":     f.URLPath,
		"title":        f.Title,
		"headings_h1":  f.HeadingsH1,
		"headings_h2":  f.HeadingsH2,
		"headings":     f.HeadingsRest,
		"body":         f.Body,
		"path":         f.Path,
		"tags":         strings.Join(f.Tags, ","),
	}

	for _, field := range ix.Schema.Fields {
		if !field.Indexed {
			continue
		}
		raw, ok := rawByField[field.Name]
		if !ok || raw == "" {
			continue
		}

		tokens := ix.tokenize(field, raw)
		if len(tokens) == 0 {
			continue
		}

		positionsByTerm := map[string][]uint32{}
		for idx, tok := range tokens {
			positionsByTerm[tok] = append(positionsByTerm[tok], uint32(idx))
		}

		if postings[field.Name] == nil {
			postings[field.Name] = map[string][]search.Posting{}
		}
		for term, positions := range positionsByTerm {
			postings[field.Name][term] = append(postings[field.Name][term], search.Posting{
				DocID:     docID,
				Frequency: len(positions),
				Positions: positions,
			})
		}

		if fieldLengths[field.Name] == nil {
			fieldLengths[field.Name] = map[string]int{}
		}
		fieldLengths[field.Name][docID] = len(tokens)
	}
}

// tokenize runs a field's configured analyzer over raw text, with a
// special case for keyword fields (url/path index as one exact token; tags
// splits on commas into individually matchable tags).
func (ix *Indexer) tokenize(field search.Field, raw string) []string {
	if field.Name == "tags" {
		var out []string
		for _, tag := range strings.Split(raw, ",") {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag != "" {
				out = append(out, tag)
			}
		}
		return out
	}
	if field.Type == search.FieldKeyword {
		return []string{raw}
	}

	analyze, err := analyzer.Get(field.AnalyzerName)
	if err != nil {
		analyze = analyzer.MustGet(analyzer.ProfileDefault)
	}
	var out []string
	for _, tok := range analyze(raw) {
		if tok.Text != "" {
			out = append(out, tok.Text)
		}
	}
	return out
}

func passesURLFilters(rawURL string, whitelist, blacklist []string) bool {
	for _, prefix := range blacklist {
		if strings.HasPrefix(rawURL, prefix) {
			return false
		}
	}
	if len(whitelist) == 0 {
		return true
	}
	for _, prefix := range whitelist {
		if strings.HasPrefix(rawURL, prefix) {
			return true
		}
	}
	return false
}
