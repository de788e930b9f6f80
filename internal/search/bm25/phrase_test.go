package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetMinSpan_AdjacentTerms(t *testing.T) {
	span := GetMinSpan(map[string][]uint32{
		"settings":      {0, 10},
		"configuration": {1, 20},
	})
	assert.Equal(t, float64(2), span)
}

func TestGetMinSpan_MissingTermIsInfinite(t *testing.T) {
	span := GetMinSpan(map[string][]uint32{
		"settings": {0},
		"missing":  {},
	})
	assert.True(t, span > 1e300)
}

func TestPhraseBonus_PerfectPhrase(t *testing.T) {
	assert.Equal(t, 1.5, PhraseBonus(2, 2))
}

func TestPhraseBonus_Scatter(t *testing.T) {
	bonus := PhraseBonus(4, 2)
	assert.True(t, bonus > 1.0 && bonus < 1.5)
}

func TestPhraseBonus_NoBonusBeyondScatter(t *testing.T) {
	assert.Equal(t, 1.0, PhraseBonus(6, 2))
}
