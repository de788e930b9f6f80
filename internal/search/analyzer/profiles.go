package analyzer

import (
	"fmt"
	"sort"
	"strings"
)

// NewStandardAnalyzer builds the default/english profile: regex word
// tokenizer, lowercase, stopword removal, and (optionally) Porter stemming.
func NewStandardAnalyzer(applyStemming bool) Analyzer {
	filters := []Filter{LowercaseFilter, StopFilter(nil)}
	if applyStemming {
		filters = append(filters, PorterStemFilter)
	}
	pipeline := Pipeline{Tokenizer: RegexTokenizer, Filters: filters}
	return pipeline.Run
}

// NewCodeFriendlyAnalyzer preserves underscores/dots/CamelCase, lowercases
// and drops stopwords, but never stems (stemming would merge distinct
// identifiers like "optimization"/"optim").
func NewCodeFriendlyAnalyzer() Analyzer {
	pipeline := Pipeline{Tokenizer: CodeTokenizer, Filters: []Filter{LowercaseFilter, StopFilter(nil)}}
	return pipeline.Run
}

// NewKeywordAnalyzer treats the whole input as a single token.
func NewKeywordAnalyzer() Analyzer {
	return func(text string) []Token {
		if text == "" {
			return nil
		}
		return []Token{{Text: text, Position: 0, StartChar: 0, EndChar: len(text)}}
	}
}

// NewPathAnalyzer lowercases and splits on '/' when the input looks like a
// path; falls through to the standard analyzer otherwise (so queries without
// slashes still tokenize sensibly).
func NewPathAnalyzer() Analyzer {
	fallback := NewStandardAnalyzer(true)
	return func(text string) []Token {
		if text == "" {
			return nil
		}
		if !strings.Contains(text, "/") {
			return fallback(text)
		}
		segments := strings.Split(text, "/")
		tokens := make([]Token, 0, len(segments))
		position := 0
		charPos := 0
		for _, seg := range segments {
			lowered := strings.ToLower(seg)
			if lowered == "" {
				charPos++
				continue
			}
			tokens = append(tokens, Token{
				Text:      lowered,
				Position:  position,
				StartChar: charPos,
				EndChar:   charPos + len(seg),
			})
			position++
			charPos += len(seg) + 1
		}
		return tokens
	}
}

// Names of the built-in analyzer profiles.
const (
	ProfileDefault       = "default"
	ProfileEnglish       = "english"
	ProfileEnglishNoStem = "english-nostem"
	ProfileCodeFriendly  = "code-friendly"
	ProfileKeyword       = "keyword"
	ProfilePath          = "path"
)

// Get returns the named analyzer profile, defaulting to "default" when name
// is empty. Unknown names are a caller error.
func Get(name string) (Analyzer, error) {
	if name == "" {
		name = ProfileDefault
	}
	switch strings.ToLower(name) {
	case ProfileDefault, ProfileEnglish:
		return NewStandardAnalyzer(true), nil
	case ProfileEnglishNoStem:
		return NewStandardAnalyzer(false), nil
	case ProfileCodeFriendly:
		return NewCodeFriendlyAnalyzer(), nil
	case ProfileKeyword:
		return NewKeywordAnalyzer(), nil
	case ProfilePath:
		return NewPathAnalyzer(), nil
	default:
		return nil, fmt.Errorf("unknown analyzer profile %q (available: %s)", name, strings.Join(knownProfiles(), ", "))
	}
}

// MustGet panics on an unknown profile name; used for schema defaults that
// are constructed from constants known to be valid.
func MustGet(name string) Analyzer {
	a, err := Get(name)
	if err != nil {
		panic(err)
	}
	return a
}

func knownProfiles() []string {
	names := []string{ProfileDefault, ProfileEnglish, ProfileEnglishNoStem, ProfileCodeFriendly, ProfileKeyword, ProfilePath}
	sort.Strings(names)
	return names
}
