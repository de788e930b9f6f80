package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontier_EnqueueRejectsOffHostURLs(t *testing.T) {
	f := NewFrontier("https://docs.example.com/start")
	assert.True(t, f.Enqueue("https://docs.example.com/page", 1))
	assert.False(t, f.Enqueue("https://other.example.com/page", 1))
}

func TestFrontier_EnqueueDeduplicatesNormalizedURLs(t *testing.T) {
	f := NewFrontier("https://docs.example.com/start")
	assert.True(t, f.Enqueue("https://docs.example.com/page#section", 1))
	assert.False(t, f.Enqueue("https://docs.example.com/page", 1))
}

func TestFrontier_PopReturnsInFIFOOrder(t *testing.T) {
	f := NewFrontier("https://docs.example.com/start")
	require.True(t, f.Enqueue("https://docs.example.com/a", 1))
	require.True(t, f.Enqueue("https://docs.example.com/b", 1))

	ctx := context.Background()
	first, err := f.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com/a", first.URL)

	second, err := f.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com/b", second.URL)
}

func TestFrontier_PopReturnsNilAfterClose(t *testing.T) {
	f := NewFrontier("https://docs.example.com/start")
	f.Close()

	item, err := f.Pop(context.Background())
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestFrontier_PopRespectsContextCancellation(t *testing.T) {
	f := NewFrontier("https://docs.example.com/start")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		_, err := f.Pop(ctx)
		assert.Error(t, err)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not return after context cancellation")
	}
}
