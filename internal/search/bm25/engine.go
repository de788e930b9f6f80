// Package bm25 implements the BM25F scoring engine described in spec
// §4.3: field-weighted term scoring, synonym expansion, fuzzy fallback,
// phrase proximity, language boost, and an in-text proximity nudge.
//
// Grounded on the original implementation's BM25SearchEngine
// (search/bm25_engine.py), translated term-for-term into idiomatic Go,
// with the segment access layer swapped for the SQLite-backed segment.Segment.
package bm25

import (
	"container/heap"
	"context"
	"sort"
	"strings"

	"github.com/ternarybob/quaero/internal/search"
	"github.com/ternarybob/quaero/internal/search/analyzer"
	"github.com/ternarybob/quaero/internal/search/segment"
)

// fuzzyDiscount multiplies a fuzzy-matched term's contribution, per spec §4.3.
const fuzzyDiscount = 0.8

// proximityInTextBonus is added when the raw query string appears verbatim
// (case-insensitive) in the body.
const proximityInTextBonus = 0.05

// Match reason labels describing why a result matched, attached to the
// runtime's match_trace per spec §4.12/§6.
const (
	ReasonTermMatch    = "term_match"
	ReasonSynonymMatch = "synonym_match"
	ReasonFuzzyMatch   = "fuzzy_match"
)

var reasonPriority = map[string]int{
	ReasonTermMatch:    3,
	ReasonSynonymMatch: 2,
	ReasonFuzzyMatch:   1,
}

// RankedDocument is one scored result, along with the dominant match reason
// and a per-field breakdown of its score contribution.
type RankedDocument struct {
	DocID          string
	Score          float64
	MatchReason    string
	RankingFactors map[string]float64
}

// QueryTokens is the aligned, per-field tokenization of a query, along with
// enough bookkeeping to drive fuzzy fallback and phrase bonus.
type QueryTokens struct {
	PerField      map[string][]string
	OrderedTerms  []string
	BaseTermCount int
	SeedText      string
}

// IsEmpty reports whether tokenization produced nothing scoreable.
func (q QueryTokens) IsEmpty() bool {
	return len(q.PerField) == 0
}

// Engine computes BM25F scores for documents stored in a segment.
type Engine struct {
	Schema             search.Schema
	FieldBoosts        map[string]float64
	K1                 float64
	B                  float64
	EnableSynonyms     bool
	EnablePhraseBonus  bool
	EnableFuzzy        bool
}

// NewEngine builds an Engine with spec-default k1/b and all modifiers on.
func NewEngine(schema search.Schema, fieldBoosts map[string]float64) *Engine {
	return &Engine{
		Schema:            schema,
		FieldBoosts:       fieldBoosts,
		K1:                1.2,
		B:                 0.75,
		EnableSynonyms:    true,
		EnablePhraseBonus: true,
		EnableFuzzy:       true,
	}
}

// TokenizeQuery runs every indexed text field's analyzer over seedText and
// aligns the result per field, expanding base terms with synonyms.
func (e *Engine) TokenizeQuery(seedText string) QueryTokens {
	normalized := strings.TrimSpace(seedText)
	if normalized == "" {
		return QueryTokens{}
	}

	perField := map[string][]string{}
	var orderedTerms []string
	orderedSeen := map[string]struct{}{}
	baseTermCount := 0

	for _, field := range e.Schema.TextFields() {
		analyze, err := analyzer.Get(field.AnalyzerName)
		if err != nil {
			continue
		}
		seenInField := map[string]struct{}{}
		var baseTerms []string
		for _, tok := range analyze(normalized) {
			if tok.Text == "" {
				continue
			}
			if _, ok := seenInField[tok.Text]; ok {
				continue
			}
			seenInField[tok.Text] = struct{}{}
			baseTerms = append(baseTerms, tok.Text)
		}

		if field.Name == "body" && baseTermCount == 0 {
			baseTermCount = len(baseTerms)
		}

		terms := append([]string(nil), baseTerms...)
		if e.EnableSynonyms && len(baseTerms) > 0 {
			expanded := ExpandQueryTerms(baseTerms)
			for _, syn := range expanded {
				if _, ok := seenInField[syn]; ok {
					continue
				}
				seenInField[syn] = struct{}{}
				terms = append(terms, syn)
			}
		}

		if len(terms) == 0 {
			continue
		}
		perField[field.Name] = terms
		for _, term := range terms {
			if _, ok := orderedSeen[term]; ok {
				continue
			}
			orderedSeen[term] = struct{}{}
			orderedTerms = append(orderedTerms, term)
		}
	}

	if len(perField) == 0 {
		return QueryTokens{}
	}
	return QueryTokens{
		PerField:      perField,
		OrderedTerms:  orderedTerms,
		BaseTermCount: baseTermCount,
		SeedText:      normalized,
	}
}

type fuzzyCacheKey struct {
	term  string
	field string
}

type fuzzyCacheEntry struct {
	term     string
	distance int
	found    bool
}

// Score ranks every document in segment seg against tokens, returning up to
// limit results in descending score order.
func (e *Engine) Score(ctx context.Context, seg *segment.Segment, tokens QueryTokens, limit int) ([]RankedDocument, error) {
	if tokens.IsEmpty() || limit <= 0 {
		return nil, nil
	}

	docScores := map[string]float64{}
	docReasons := map[string]string{}
	docFactors := map[string]map[string]float64{}
	totalDocs := seg.DocCount
	if totalDocs <= 0 {
		totalDocs = 1
	}

	fuzzyCache := map[fuzzyCacheKey]fuzzyCacheEntry{}
	vocabularyCache := map[string][]string{}

	for fieldName, terms := range tokens.PerField {
		if len(terms) == 0 {
			continue
		}
		fieldLengths, err := seg.FieldLengths(ctx, fieldName)
		if err != nil {
			return nil, err
		}
		if len(fieldLengths) == 0 {
			continue
		}
		stats := seg.FieldLengthStats(fieldName)
		avgLength := stats.AverageLength
		if avgLength <= 0 {
			avgLength = 1e-9
		}

		postingsByTerm, err := seg.GetFieldPostings(ctx, fieldName)
		if err != nil {
			return nil, err
		}
		if len(postingsByTerm) == 0 {
			continue
		}

		fieldBoost := e.FieldBoosts[fieldName]
		if fieldBoost == 0 {
			fieldBoost = e.Schema.Boost(fieldName)
		}

		for idx, term := range terms {
			postings, discount := e.resolvePostings(term, fieldName, postingsByTerm, idx < tokens.BaseTermCount, fuzzyCache, vocabularyCache)
			if len(postings) == 0 {
				continue
			}
			reason := ReasonTermMatch
			if discount != 1.0 {
				reason = ReasonFuzzyMatch
			} else if idx >= tokens.BaseTermCount {
				reason = ReasonSynonymMatch
			}

			idf := CalculateIDF(len(postings), totalDocs)
			for _, p := range postings {
				docLength, ok := fieldLengths[p.DocID]
				if !ok {
					docLength = p.Frequency
				}
				weight := BM25(p.Frequency, docLength, avgLength, e.K1, e.B)
				if weight <= 0 {
					continue
				}
				contribution := idf * weight * fieldBoost * discount
				docScores[p.DocID] += contribution

				if docFactors[p.DocID] == nil {
					docFactors[p.DocID] = map[string]float64{}
				}
				docFactors[p.DocID][fieldName] += contribution

				if reasonPriority[reason] > reasonPriority[docReasons[p.DocID]] {
					docReasons[p.DocID] = reason
				}
			}
		}
	}

	if len(docScores) == 0 {
		return nil, nil
	}

	if err := e.applyLanguageBoost(ctx, seg, docScores); err != nil {
		return nil, err
	}
	if e.EnablePhraseBonus && tokens.SeedText != "" {
		if err := e.applyPhraseBonus(ctx, seg, tokens.SeedText, docScores); err != nil {
			return nil, err
		}
	}
	e.applyProximityInTextBonus(ctx, seg, tokens.SeedText, docScores)

	ranked := topK(docScores, limit)
	for i := range ranked {
		ranked[i].MatchReason = docReasons[ranked[i].DocID]
		ranked[i].RankingFactors = docFactors[ranked[i].DocID]
	}
	return ranked, nil
}

func (e *Engine) resolvePostings(
	term, fieldName string,
	postingsByTerm map[string][]search.Posting,
	isBaseTerm bool,
	fuzzyCache map[fuzzyCacheKey]fuzzyCacheEntry,
	vocabularyCache map[string][]string,
) ([]search.Posting, float64) {
	if postings, ok := postingsByTerm[term]; ok {
		return postings, 1.0
	}
	if !e.EnableFuzzy || !isBaseTerm {
		return nil, 1.0
	}

	key := fuzzyCacheKey{term: term, field: fieldName}
	if cached, ok := fuzzyCache[key]; ok {
		if !cached.found {
			return nil, 1.0
		}
		return postingsByTerm[cached.term], fuzzyDiscount
	}

	vocabulary, ok := vocabularyCache[fieldName]
	if !ok {
		vocabulary = make([]string, 0, len(postingsByTerm))
		for t := range postingsByTerm {
			vocabulary = append(vocabulary, t)
		}
		vocabularyCache[fieldName] = vocabulary
	}
	if len(vocabulary) == 0 {
		fuzzyCache[key] = fuzzyCacheEntry{}
		return nil, 1.0
	}

	matches := FindFuzzyMatches(term, vocabulary, -1)
	if len(matches) == 0 {
		fuzzyCache[key] = fuzzyCacheEntry{}
		return nil, 1.0
	}
	best := matches[0]
	matched, ok := postingsByTerm[best.Term]
	if !ok {
		fuzzyCache[key] = fuzzyCacheEntry{}
		return nil, 1.0
	}
	fuzzyCache[key] = fuzzyCacheEntry{term: best.Term, distance: best.Distance, found: true}
	return matched, fuzzyDiscount
}

func (e *Engine) applyLanguageBoost(ctx context.Context, seg *segment.Segment, docScores map[string]float64) error {
	docIDs := make([]string, 0, len(docScores))
	for id := range docScores {
		docIDs = append(docIDs, id)
	}
	stored, err := seg.AllStoredFields(ctx, docIDs)
	if err != nil {
		return err
	}
	for docID := range docScores {
		fields := stored[docID]
		lang, _ := fields["language"].(string)
		if lang == "" || lang == "en" {
			docScores[docID] *= 1.1
		}
	}
	return nil
}

func (e *Engine) applyPhraseBonus(ctx context.Context, seg *segment.Segment, queryText string, docScores map[string]float64) error {
	bodyField, ok := e.Schema.Field("body")
	if !ok {
		return nil
	}
	analyze, err := analyzer.Get(bodyField.AnalyzerName)
	if err != nil {
		return nil
	}
	var queryTokens []string
	for _, tok := range analyze(queryText) {
		if tok.Text != "" {
			queryTokens = append(queryTokens, tok.Text)
		}
	}
	if len(queryTokens) < 2 {
		return nil
	}

	bodyPostings, err := seg.GetFieldPostings(ctx, "body")
	if err != nil {
		return err
	}
	if len(bodyPostings) == 0 {
		return nil
	}

	for docID := range docScores {
		termPositions := map[string][]uint32{}
		for _, token := range queryTokens {
			for _, p := range bodyPostings[token] {
				if p.DocID == docID {
					termPositions[token] = p.Positions
					break
				}
			}
		}
		if len(termPositions) < len(queryTokens) {
			continue
		}
		span := getMinSpanOrInf(termPositions)
		bonus := PhraseBonus(span, len(queryTokens))
		if bonus > 1.0 {
			docScores[docID] *= bonus
		}
	}
	return nil
}

func getMinSpanOrInf(termPositions map[string][]uint32) float64 {
	return GetMinSpan(termPositions)
}

func (e *Engine) applyProximityInTextBonus(ctx context.Context, seg *segment.Segment, queryText string, docScores map[string]float64) {
	if queryText == "" {
		return
	}
	needle := strings.ToLower(queryText)
	docIDs := make([]string, 0, len(docScores))
	for id := range docScores {
		docIDs = append(docIDs, id)
	}
	stored, err := seg.AllStoredFields(ctx, docIDs)
	if err != nil {
		return
	}
	for docID, score := range docScores {
		body, _ := stored[docID]["body"].(string)
		if body == "" {
			continue
		}
		if strings.Contains(strings.ToLower(body), needle) {
			docScores[docID] = score + proximityInTextBonus
		}
	}
}

type scoredItem struct {
	docID string
	score float64
}

type scoreHeap []scoredItem

func (h scoreHeap) Len() int            { return len(h) }
func (h scoreHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h scoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x interface{}) { *h = append(*h, x.(scoredItem)) }
func (h *scoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topK returns the highest-scoring limit documents in descending order,
// using a min-heap when limit is much smaller than the candidate set and a
// full sort otherwise, per spec §4.3.
func topK(docScores map[string]float64, limit int) []RankedDocument {
	if limit >= len(docScores) {
		ranked := make([]RankedDocument, 0, len(docScores))
		for docID, score := range docScores {
			ranked = append(ranked, RankedDocument{DocID: docID, Score: score})
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].Score != ranked[j].Score {
				return ranked[i].Score > ranked[j].Score
			}
			return ranked[i].DocID < ranked[j].DocID
		})
		return ranked
	}

	h := &scoreHeap{}
	heap.Init(h)
	for docID, score := range docScores {
		heap.Push(h, scoredItem{docID: docID, score: score})
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]RankedDocument, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		item := heap.Pop(h).(scoredItem)
		result[i] = RankedDocument{DocID: item.docID, Score: item.score}
	}
	return result
}
