package statestore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "state.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_EnqueueAndDequeueRespectsPriorityOrder(t *testing.T) {
	store := newTestStore(t)

	n, err := store.EnqueueURLs([]string{"https://a.example.com/"}, "seed", 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.EnqueueURLs([]string{"https://b.example.com/"}, "seed", 5, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	items, err := store.DequeueBatch(2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "https://b.example.com/", items[0].URL)
	assert.Equal(t, "https://a.example.com/", items[1].URL)
}

func TestStore_EnqueueURLsSkipsDuplicatesUnlessForced(t *testing.T) {
	store := newTestStore(t)

	_, err := store.EnqueueURLs([]string{"https://a.example.com/"}, "seed", 0, false)
	require.NoError(t, err)

	n, err := store.EnqueueURLs([]string{"https://a.example.com/"}, "seed-again", 1, false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = store.EnqueueURLs([]string{"https://a.example.com/"}, "forced", 9, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_DequeueBatchDoesNotRepeatDequeuedRows(t *testing.T) {
	store := newTestStore(t)
	_, err := store.EnqueueURLs([]string{"https://a.example.com/"}, "seed", 0, false)
	require.NoError(t, err)

	first, err := store.DequeueBatch(10)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := store.DequeueBatch(10)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestStore_UpsertAndLoadURLMetadata(t *testing.T) {
	store := newTestStore(t)
	rec := URLMetadata{
		URL:           "https://a.example.com/",
		Status:        "success",
		LastFetchedAt: time.Now().UTC(),
		ContentHash:   "abc123",
	}
	require.NoError(t, store.UpsertURLMetadata(rec))

	loaded, err := store.LoadURLMetadata(rec.URL)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "success", loaded.Status)
	assert.Equal(t, "abc123", loaded.ContentHash)
}

func TestStore_LoadURLMetadataReturnsNilForUnknownURL(t *testing.T) {
	store := newTestStore(t)
	loaded, err := store.LoadURLMetadata("https://missing.example.com/")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_WasRecentlyFetched(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpsertURLMetadata(URLMetadata{
		URL:           "https://a.example.com/",
		Status:        "success",
		LastFetchedAt: time.Now().UTC(),
	}))

	recent, err := store.WasRecentlyFetched("https://a.example.com/", 24)
	require.NoError(t, err)
	assert.True(t, recent)

	recent, err = store.WasRecentlyFetched("https://a.example.com/", 0)
	require.NoError(t, err)
	assert.False(t, recent)
}

func TestStore_RequeueFailedURLsResetsRetryCount(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpsertURLMetadata(URLMetadata{
		URL:        "https://a.example.com/",
		Status:     "failed",
		RetryCount: 3,
	}))

	n, err := store.RequeueFailedURLs()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	items, err := store.DequeueBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	loaded, err := store.LoadURLMetadata("https://a.example.com/")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.RetryCount)
}

func TestStore_ClearQueueRemovesPendingRowsAndRecordsEvent(t *testing.T) {
	store := newTestStore(t)
	_, err := store.EnqueueURLs([]string{"https://a.example.com/"}, "seed", 0, false)
	require.NoError(t, err)

	n, err := store.ClearQueue("manual reset")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	items, err := store.DequeueBatch(10)
	require.NoError(t, err)
	assert.Empty(t, items)

	log, err := store.GetEventLog(EventFilter{Type: "queue_cleared"})
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "manual reset", log[0].Detail)
}

func TestStore_RecordEventAndGetEventLog(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.RecordEvent(Event{Type: "fetch_success", URL: "https://a.example.com/"}))
	require.NoError(t, store.RecordEvent(Event{Type: "fetch_failure", URL: "https://b.example.com/"}))

	log, err := store.GetEventLog(EventFilter{})
	require.NoError(t, err)
	require.Len(t, log, 2)

	filtered, err := store.GetEventLog(EventFilter{Type: "fetch_success"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "https://a.example.com/", filtered[0].URL)
}

func TestStore_GetStatusSnapshotCountsByStatus(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpsertURLMetadata(URLMetadata{URL: "https://a.example.com/", Status: "success"}))
	require.NoError(t, store.UpsertURLMetadata(URLMetadata{URL: "https://b.example.com/", Status: "failed"}))
	_, err := store.EnqueueURLs([]string{"https://c.example.com/"}, "seed", 0, false)
	require.NoError(t, err)

	snap, err := store.GetStatusSnapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.QueueDepth)
	assert.Equal(t, 1, snap.SuccessCount)
	assert.Equal(t, 1, snap.FailedCount)
}

func TestStore_SetAndGetCheckpoint(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetCheckpoint("sync_cursor", "abc", true))

	value, err := store.GetCheckpoint("sync_cursor")
	require.NoError(t, err)
	assert.Equal(t, "abc", value)

	require.NoError(t, store.SetCheckpoint("sync_cursor", "def", true))
	value, err = store.GetCheckpoint("sync_cursor")
	require.NoError(t, err)
	assert.Equal(t, "def", value)
}

func TestStore_MaintenancePrunesOldEvents(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.RecordEvent(Event{Type: "fetch_success", OccurredAt: time.Now().UTC().AddDate(0, 0, -40)}))
	require.NoError(t, store.RecordEvent(Event{Type: "fetch_success", OccurredAt: time.Now().UTC()}))

	n, err := store.Maintenance(30)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	log, err := store.GetEventLog(EventFilter{})
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestStore_TryAcquireLockPreventsConcurrentOwner(t *testing.T) {
	store := newTestStore(t)

	lease, err := store.TryAcquireLock("sync:tenant-a", "worker-1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, lease)

	_, err = store.TryAcquireLock("sync:tenant-a", "worker-2", time.Minute)
	require.Error(t, err)
	var contention *LockContentionError
	assert.ErrorAs(t, err, &contention)
}

func TestStore_TryAcquireLockSucceedsAfterRelease(t *testing.T) {
	store := newTestStore(t)

	lease, err := store.TryAcquireLock("sync:tenant-a", "worker-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.ReleaseLock(lease))

	lease2, err := store.TryAcquireLock("sync:tenant-a", "worker-2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "worker-2", lease2.Owner)
}

func TestStore_BreakLockForciblyRemovesLease(t *testing.T) {
	store := newTestStore(t)

	_, err := store.TryAcquireLock("sync:tenant-a", "worker-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.BreakLock("sync:tenant-a"))

	lease, err := store.TryAcquireLock("sync:tenant-a", "worker-2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "worker-2", lease.Owner)
}

func TestStore_GetEventHistoryBucketsCounts(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.RecordEvent(Event{Type: "fetch_success"}))
	require.NoError(t, store.RecordEvent(Event{Type: "fetch_success"}))

	buckets, err := store.GetEventHistory(60, 300)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, 2, buckets[0].Count)
}
