package tenant

import (
	"sort"
	"strings"
)

// SnippetStyle selects how highlighted terms are marked up, per spec §4.12.
type SnippetStyle string

const (
	SnippetPlain SnippetStyle = "plain"
	SnippetHTML  SnippetStyle = "html"
)

const (
	defaultLookback  = 100
	defaultLookahead = 100
	defaultMaxLength = 300
	maxHighlights    = 3
)

// BuildSnippet finds the first term match in body, expands outward to the
// enclosing sentence using "[.!?] " boundaries within fixed lookback/
// lookahead budgets, clamps to maxLength, then highlights up to 3
// occurrences — skipping markdown link targets and avoiding overlapping
// highlights (longer terms win), per spec §4.12.
func BuildSnippet(body string, terms []string, style SnippetStyle) string {
	if strings.TrimSpace(body) == "" || len(terms) == 0 {
		return ""
	}

	lowerBody := strings.ToLower(body)
	firstIdx := -1
	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		if idx := strings.Index(lowerBody, t); idx >= 0 && (firstIdx == -1 || idx < firstIdx) {
			firstIdx = idx
		}
	}
	if firstIdx == -1 {
		return truncate(body, defaultMaxLength)
	}

	start := expandToSentenceStart(body, firstIdx)
	end := expandToSentenceEnd(body, firstIdx)
	excerpt := body[start:end]
	excerpt = truncate(excerpt, defaultMaxLength)

	return highlight(excerpt, terms, style)
}

func expandToSentenceStart(body string, from int) int {
	lower := from - defaultLookback
	if lower < 0 {
		lower = 0
	}
	window := body[lower:from]
	bestIdx := -1
	for i := 0; i+1 < len(window); i++ {
		c := window[i]
		if (c == '.' || c == '!' || c == '?') && window[i+1] == ' ' {
			bestIdx = i + 2
		}
	}
	if bestIdx == -1 {
		return lower
	}
	return lower + bestIdx
}

func expandToSentenceEnd(body string, from int) int {
	upper := from + defaultLookahead
	if upper > len(body) {
		upper = len(body)
	}
	window := body[from:upper]
	for i := 0; i+1 < len(window); i++ {
		c := window[i]
		if (c == '.' || c == '!' || c == '?') && window[i+1] == ' ' {
			return from + i + 1
		}
	}
	return upper
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return strings.TrimSpace(s[:maxLen]) + "…"
}

type markdownLinkSpan struct{ start, end int }

// markdownLinkSpans returns byte ranges of "(url)" targets in [text](url)
// links, so highlighting never rewrites a link destination.
func markdownLinkSpans(s string) []markdownLinkSpan {
	var spans []markdownLinkSpan
	i := 0
	for i < len(s) {
		closeBracket := strings.Index(s[i:], "](")
		if closeBracket == -1 {
			break
		}
		parenStart := i + closeBracket + 1
		parenEnd := strings.IndexByte(s[parenStart:], ')')
		if parenEnd == -1 {
			break
		}
		spans = append(spans, markdownLinkSpan{start: parenStart, end: parenStart + parenEnd + 1})
		i = parenStart + parenEnd + 1
	}
	return spans
}

func insideAnySpan(spans []markdownLinkSpan, idx int) bool {
	for _, sp := range spans {
		if idx >= sp.start && idx < sp.end {
			return true
		}
	}
	return false
}

type matchSpan struct{ start, end int }

// highlight marks up to maxHighlights non-overlapping, longest-first term
// matches in s, skipping matches inside markdown link targets.
func highlight(s string, terms []string, style SnippetStyle) string {
	lowerS := strings.ToLower(s)
	linkSpans := markdownLinkSpans(s)

	sortedTerms := append([]string{}, terms...)
	sort.Slice(sortedTerms, func(i, j int) bool { return len(sortedTerms[i]) > len(sortedTerms[j]) })

	var matches []matchSpan
	for _, term := range sortedTerms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		searchFrom := 0
		for {
			idx := strings.Index(lowerS[searchFrom:], t)
			if idx == -1 {
				break
			}
			absIdx := searchFrom + idx
			end := absIdx + len(t)
			searchFrom = end

			if insideAnySpan(linkSpans, absIdx) {
				continue
			}
			if overlaps(matches, absIdx, end) {
				continue
			}
			matches = append(matches, matchSpan{start: absIdx, end: end})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	if len(matches) > maxHighlights {
		matches = matches[:maxHighlights]
	}

	var b strings.Builder
	cursor := 0
	for _, m := range matches {
		b.WriteString(s[cursor:m.start])
		b.WriteString(wrapHighlight(s[m.start:m.end], style))
		cursor = m.end
	}
	b.WriteString(s[cursor:])
	return b.String()
}

func overlaps(matches []matchSpan, start, end int) bool {
	for _, m := range matches {
		if start < m.end && end > m.start {
			return true
		}
	}
	return false
}

func wrapHighlight(term string, style SnippetStyle) string {
	if style == SnippetHTML {
		return "<mark>" + term + "</mark>"
	}
	return "[[" + term + "]]"
}
