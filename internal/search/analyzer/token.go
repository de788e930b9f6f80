// Package analyzer implements the tokenizer/filter pipelines used to turn
// raw field text into the token streams the BM25 engine and indexer share.
// Ported from the schema's analyzer profiles (default/english, english-nostem,
// code-friendly, keyword, path), keeping the Porter-rule table stable so
// ranking doesn't drift between reimplementations.
package analyzer

// Token is a single analyzed unit of text. Positions are re-indexed after
// filtering so callers always see a dense, zero-based sequence.
type Token struct {
	Text      string
	Position  int
	StartChar int
	EndChar   int
}

// Analyzer turns raw text into an ordered token list.
type Analyzer func(text string) []Token

// Tokenizer yields the raw token stream before filters run.
type Tokenizer func(text string) []Token

// Filter transforms a token stream.
type Filter func(tokens []Token) []Token

// Pipeline composes a tokenizer with a sequence of filters and re-indexes
// positions once filtering is complete.
type Pipeline struct {
	Tokenizer Tokenizer
	Filters   []Filter
}

func (p Pipeline) Run(text string) []Token {
	tokens := p.Tokenizer(text)
	for _, f := range p.Filters {
		tokens = f(tokens)
	}
	for i := range tokens {
		tokens[i].Position = i
	}
	return tokens
}
