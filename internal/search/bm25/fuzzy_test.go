package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, LevenshteinDistance("hello", "hello"))
	assert.Equal(t, 0, LevenshteinDistance("", ""))
	assert.Equal(t, 3, LevenshteinDistance("abc", ""))
	assert.Equal(t, 3, LevenshteinDistance("", "abc"))
	assert.Equal(t, 1, LevenshteinDistance("cat", "cats"))
	assert.Equal(t, 1, LevenshteinDistance("cats", "cat"))
	assert.Equal(t, 1, LevenshteinDistance("cat", "bat"))
	assert.Equal(t, 3, LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 1, LevenshteinDistance("Hello", "hello"))
	assert.Equal(t, 1, LevenshteinDistance("configuration", "configration"))
}

func TestMaxEditDistance(t *testing.T) {
	assert.Equal(t, 0, MaxEditDistance(1))
	assert.Equal(t, 0, MaxEditDistance(2))
	assert.Equal(t, 1, MaxEditDistance(3))
	assert.Equal(t, 1, MaxEditDistance(5))
	assert.Equal(t, 2, MaxEditDistance(6))
	assert.Equal(t, 2, MaxEditDistance(20))
}

func TestFindFuzzyMatches_ExactMatchFirst(t *testing.T) {
	vocabulary := []string{"config", "configure", "configuration"}
	matches := FindFuzzyMatches("config", vocabulary, -1)
	assert.NotEmpty(t, matches)
	assert.Equal(t, Match{Term: "config", Distance: 0}, matches[0])
}

func TestFindFuzzyMatches_RespectsMaxDistance(t *testing.T) {
	vocabulary := []string{"hello", "world", "help", "hold"}
	matches := FindFuzzyMatches("helo", vocabulary, 1)
	var terms []string
	for _, m := range matches {
		terms = append(terms, m.Term)
	}
	assert.Contains(t, terms, "hello")
	assert.Contains(t, terms, "help")
	assert.NotContains(t, terms, "hold")
}

func TestFindFuzzyMatches_EmptyInputs(t *testing.T) {
	assert.Empty(t, FindFuzzyMatches("", []string{"a", "b"}, -1))
	assert.Empty(t, FindFuzzyMatches("test", nil, -1))
}

func TestFindFuzzyMatches_SortedByDistance(t *testing.T) {
	vocabulary := []string{"test", "tests", "testing", "tast", "toast"}
	matches := FindFuzzyMatches("test", vocabulary, -1)
	assert.Equal(t, "test", matches[0].Term)
	assert.Equal(t, 0, matches[0].Distance)
	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i-1].Distance, matches[i].Distance)
	}
}
