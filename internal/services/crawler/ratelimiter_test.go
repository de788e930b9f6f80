package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptiveRateLimiter_OnRateLimitedHalvesLimit(t *testing.T) {
	rl := NewAdaptiveRateLimiter(4, nil)
	hl := rl.limiterFor("a.example.com")
	before := hl.limiter.Limit()

	rl.OnRateLimited("https://a.example.com/page")
	assert.Less(t, float64(hl.limiter.Limit()), float64(before))
}

func TestAdaptiveRateLimiter_OnSuccessDecaysConsecutive429(t *testing.T) {
	rl := NewAdaptiveRateLimiter(4, nil)
	rl.OnRateLimited("https://a.example.com/page")
	hl := rl.limiterFor("a.example.com")
	assert.Equal(t, 1, hl.consecutive429)

	rl.OnSuccess("https://a.example.com/page")
	assert.Equal(t, 0, hl.consecutive429)
	assert.Equal(t, rl.baseLimit, hl.limiter.Limit())
}

func TestAdaptiveConcurrencyLimiter_AcquireRespectsCurrentLimit(t *testing.T) {
	limiter := NewAdaptiveConcurrencyLimiter(2, 10)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))
	require.NoError(t, limiter.Acquire(ctx))

	acquired := make(chan struct{})
	go func() {
		_ = limiter.Acquire(ctx)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("third Acquire should have blocked at limit 2")
	case <-time.After(50 * time.Millisecond):
	}

	limiter.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Acquire did not unblock after Release")
	}
}

func TestAdaptiveConcurrencyLimiter_OnRateLimitedHalvesAndNeverGoesBelowMin(t *testing.T) {
	limiter := NewAdaptiveConcurrencyLimiter(5, 20)
	limiter.current = 6
	limiter.OnRateLimited()
	assert.Equal(t, 5, limiter.current)

	limiter.OnRateLimited()
	assert.Equal(t, 5, limiter.current)
}

func TestAdaptiveConcurrencyLimiter_OnSuccessGrowsAfterStreakAndCooldown(t *testing.T) {
	limiter := NewAdaptiveConcurrencyLimiter(5, 20)
	limiter.lastRateLimitEvent = time.Now().Add(-2 * time.Minute)

	for i := 0; i < 24; i++ {
		limiter.OnSuccess()
	}
	assert.Equal(t, 5, limiter.current)

	limiter.OnSuccess()
	assert.Equal(t, 6, limiter.current)
}

func TestAdaptiveConcurrencyLimiter_SnapshotReportsState(t *testing.T) {
	limiter := NewAdaptiveConcurrencyLimiter(3, 10)
	require.NoError(t, limiter.Acquire(context.Background()))

	snap := limiter.Snapshot()
	assert.Equal(t, 3, snap.CurrentLimit)
	assert.Equal(t, 1, snap.ActiveWorkers)
	assert.Equal(t, 1, snap.PeakActive)
}
