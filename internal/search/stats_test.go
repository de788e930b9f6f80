package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeFieldLengthStats(t *testing.T) {
	stats := ComputeFieldLengthStats(map[string]map[string]int{
		"body": {"a": 10, "b": 20, "c": 30},
	})
	assert.InDelta(t, 20.0, stats["body"].AverageLength, 1e-9)
	assert.Equal(t, 3, stats["body"].DocCount)
}

func TestComputeFieldLengthStats_EmptyField(t *testing.T) {
	stats := ComputeFieldLengthStats(map[string]map[string]int{
		"body": {},
	})
	assert.Equal(t, 0, stats["body"].DocCount)
}
