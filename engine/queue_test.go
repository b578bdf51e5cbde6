package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueuePreservesOrderPerSession(t *testing.T) {
	q := newTaskQueue(discardLogger())
	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		q.Enqueue("s1", func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	q.Wait()
	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestQueueSessionsRunIndependently(t *testing.T) {
	q := newTaskQueue(discardLogger())
	release := make(chan struct{})
	q.Enqueue("slow", func(context.Context) { <-release })

	done := make(chan struct{})
	q.Enqueue("fast", func(context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fast session blocked behind slow session")
	}
	close(release)
	q.Wait()
}

func TestQueueTaskMayEnqueueFollowUp(t *testing.T) {
	q := newTaskQueue(discardLogger())
	var mu sync.Mutex
	var got []string
	q.Enqueue("s1", func(context.Context) {
		mu.Lock()
		got = append(got, "first")
		mu.Unlock()
		q.Enqueue("s1", func(context.Context) {
			mu.Lock()
			got = append(got, "second")
			mu.Unlock()
		})
	})
	q.Wait()
	assert.Equal(t, []string{"first", "second"}, got)
}
