package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_NewRejectsInvalidCron(t *testing.T) {
	_, err := New(Config{Enabled: true, RefreshSchedule: "not a cron"}, nil)
	require.Error(t, err)
}

func TestScheduler_InitializeReturnsFalseWhenDisabled(t *testing.T) {
	s, err := New(Config{Enabled: false}, nil)
	require.NoError(t, err)
	started, err := s.Initialize(context.Background())
	require.NoError(t, err)
	assert.False(t, started)
}

func TestScheduler_InitializeReturnsFalseWithoutSyncFunc(t *testing.T) {
	s, err := New(Config{Enabled: true}, nil)
	require.NoError(t, err)
	started, err := s.Initialize(context.Background())
	require.NoError(t, err)
	assert.False(t, started)
}

func TestScheduler_ManualOnlyInitializesWithoutBackgroundLoop(t *testing.T) {
	var calls int32
	s, err := New(Config{
		Enabled: true,
		Sync: func(ctx context.Context, forceCrawler, forceFullSync bool) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	}, nil)
	require.NoError(t, err)

	started, err := s.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, started)
	assert.True(t, s.Stats().IsInitialized)

	require.NoError(t, s.TriggerSync(false, false))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestScheduler_TriggerSyncRejectsConcurrentRun(t *testing.T) {
	release := make(chan struct{})
	s, err := New(Config{
		Enabled: true,
		Sync: func(ctx context.Context, forceCrawler, forceFullSync bool) error {
			<-release
			return nil
		},
	}, nil)
	require.NoError(t, err)
	_, err = s.Initialize(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.TriggerSync(false, false))
	time.Sleep(10 * time.Millisecond)
	assert.True(t, s.Stats().Running)

	err = s.TriggerSync(false, false)
	require.Error(t, err)

	close(release)
	time.Sleep(10 * time.Millisecond)
	assert.False(t, s.Stats().Running)
}

func TestScheduler_OnSyncCompleteCallbackPanicDoesNotPropagate(t *testing.T) {
	s, err := New(Config{
		Enabled: true,
		Sync: func(ctx context.Context, forceCrawler, forceFullSync bool) error {
			return nil
		},
		OnSyncComplete: func() {
			panic("boom")
		},
	}, nil)
	require.NoError(t, err)
	_, err = s.Initialize(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.TriggerSync(false, false))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, s.Stats().LastError)
}

func TestScheduler_RunCycleRecordsSyncError(t *testing.T) {
	s, err := New(Config{
		Enabled: true,
		Sync: func(ctx context.Context, forceCrawler, forceFullSync bool) error {
			return assert.AnError
		},
	}, nil)
	require.NoError(t, err)
	_, err = s.Initialize(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.TriggerSync(false, false))
	time.Sleep(20 * time.Millisecond)
	assert.NotEmpty(t, s.Stats().LastError)
}

func TestScheduler_StopIsIdempotentBeforeInitialize(t *testing.T) {
	s, err := New(Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Stop())
}

func TestScheduler_StopHaltsBackgroundLoop(t *testing.T) {
	var calls int32
	s, err := New(Config{
		Enabled:         true,
		RefreshSchedule: "* * * * *",
		Sync: func(ctx context.Context, forceCrawler, forceFullSync bool) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	}, nil)
	require.NoError(t, err)
	started, err := s.Initialize(context.Background())
	require.NoError(t, err)
	require.True(t, started)

	require.NoError(t, s.Stop())
	assert.Equal(t, StateStopped, s.Stats().State)
}
