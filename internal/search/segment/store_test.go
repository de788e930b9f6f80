package segment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/quaero/internal/search"
)

func sampleData(id string, createdAt time.Time) Data {
	return Data{
		SegmentID: id,
		Schema:    search.DefaultSchema(),
		CreatedAt: createdAt,
		DocCount:  1,
		Postings: map[string]map[string][]search.Posting{
			"body": {
				"install": {{DocID: "doc-1", Frequency: 2, Positions: []uint32{0, 5}}},
			},
		},
		StoredFields: map[string]map[string]any{
			"doc-1": {"title": "Install guide", "language": "en", "body": "how to install the thing"},
		},
		FieldLengths: map[string]map[string]int{
			"body": {"doc-1": 5},
		},
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 0, nil)
	require.NoError(t, err)

	path, err := store.Save(sampleData("seg-1", time.Unix(1000, 0).UTC()))
	require.NoError(t, err)
	assert.FileExists(t, path)

	seg, err := store.Load("seg-1")
	require.NoError(t, err)
	require.NotNil(t, seg)
	defer seg.Close()

	assert.Equal(t, "seg-1", seg.SegmentID)
	assert.Equal(t, 1, seg.DocCount)

	postings, err := seg.GetFieldPostings(context.Background(), "body")
	require.NoError(t, err)
	require.Contains(t, postings, "install")
	assert.Equal(t, "doc-1", postings["install"][0].DocID)
	assert.Equal(t, []uint32{0, 5}, postings["install"][0].Positions)

	stored, err := seg.StoredFields(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Install guide", stored["title"])
}

func TestStore_Load_PrecomputesFieldLengthStats(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 0, nil)
	require.NoError(t, err)

	_, err = store.Save(sampleData("seg-1", time.Unix(1000, 0).UTC()))
	require.NoError(t, err)

	seg, err := store.Load("seg-1")
	require.NoError(t, err)
	defer seg.Close()

	stats := seg.FieldLengthStats("body")
	assert.Equal(t, 1, stats.DocCount)
	assert.InDelta(t, 5.0, stats.AverageLength, 1e-9)

	assert.Equal(t, search.FieldLengthStats{}, seg.FieldLengthStats("no_such_field"))
}

func TestStore_SaveIsIdempotentForDuplicateID(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 0, nil)
	require.NoError(t, err)

	_, err = store.Save(sampleData("seg-1", time.Unix(1000, 0).UTC()))
	require.NoError(t, err)
	_, err = store.Save(sampleData("seg-1", time.Unix(2000, 0).UTC()))
	require.NoError(t, err)

	segments, err := store.ListSegments()
	require.NoError(t, err)
	assert.Len(t, segments, 1)
}

func TestStore_LatestTracksMostRecentSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 0, nil)
	require.NoError(t, err)

	_, err = store.Save(sampleData("seg-1", time.Unix(1000, 0).UTC()))
	require.NoError(t, err)
	_, err = store.Save(sampleData("seg-2", time.Unix(2000, 0).UTC()))
	require.NoError(t, err)

	id, err := store.LatestSegmentID()
	require.NoError(t, err)
	assert.Equal(t, "seg-2", id)
}

func TestStore_PruneRetainsOnlyCappedCount(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 2, nil)
	require.NoError(t, err)

	for i, id := range []string{"seg-1", "seg-2", "seg-3"} {
		_, err := store.Save(sampleData(id, time.Unix(int64(1000+i*1000), 0).UTC()))
		require.NoError(t, err)
	}

	segments, err := store.ListSegments()
	require.NoError(t, err)
	assert.Len(t, segments, 2)

	var ids []string
	for _, e := range segments {
		ids = append(ids, e.SegmentID)
	}
	assert.NotContains(t, ids, "seg-1")
}

func TestStore_PruneToSegmentIDsRemovesOthers(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 0, nil)
	require.NoError(t, err)

	_, err = store.Save(sampleData("seg-1", time.Unix(1000, 0).UTC()))
	require.NoError(t, err)
	_, err = store.Save(sampleData("seg-2", time.Unix(2000, 0).UTC()))
	require.NoError(t, err)

	require.NoError(t, store.PruneToSegmentIDs([]string{"seg-2"}))

	_, ok := store.SegmentPath("seg-1")
	assert.False(t, ok)
	_, ok = store.SegmentPath("seg-2")
	assert.True(t, ok)
}
