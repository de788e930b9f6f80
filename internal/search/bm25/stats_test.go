package bm25

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateIDF_CommonTermScoresLower(t *testing.T) {
	common := CalculateIDF(90, 100)
	rare := CalculateIDF(2, 100)
	assert.True(t, rare > common)
}

func TestBM25_LongerDocumentsPenalized(t *testing.T) {
	short := BM25(3, 50, 100, 1.2, 0.75)
	long := BM25(3, 400, 100, 1.2, 0.75)
	assert.True(t, short > long)
}

func TestBM25_ZeroAvgLengthDoesNotPanic(t *testing.T) {
	v := BM25(1, 10, 0, 1.2, 0.75)
	assert.False(t, math.IsNaN(v))
}
