package engine

import (
	"context"
	"log/slog"
	"sync"
)

// taskQueue serializes delivery-side work per session: one worker per
// session drains tasks strictly in order, so network calls for a
// session never interleave, while different sessions proceed
// concurrently. Task failures are the task's own problem; the queue
// just keeps draining.
type taskQueue struct {
	ctx context.Context
	log *slog.Logger

	mu      sync.Mutex
	pending map[string][]func(context.Context)
	running map[string]bool
	wg      sync.WaitGroup
}

func newTaskQueue(log *slog.Logger) *taskQueue {
	return &taskQueue{
		ctx:     context.Background(),
		log:     log,
		pending: make(map[string][]func(context.Context)),
		running: make(map[string]bool),
	}
}

// Enqueue appends a task to the session's queue and starts the
// session's worker when idle.
func (q *taskQueue) Enqueue(sessionID string, task func(context.Context)) {
	q.mu.Lock()
	q.pending[sessionID] = append(q.pending[sessionID], task)
	if q.running[sessionID] {
		q.mu.Unlock()
		return
	}
	q.running[sessionID] = true
	q.wg.Add(1)
	q.mu.Unlock()

	go q.drain(sessionID)
}

func (q *taskQueue) drain(sessionID string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		tasks := q.pending[sessionID]
		if len(tasks) == 0 {
			delete(q.pending, sessionID)
			q.running[sessionID] = false
			q.mu.Unlock()
			return
		}
		task := tasks[0]
		q.pending[sessionID] = tasks[1:]
		q.mu.Unlock()

		task(q.ctx)
	}
}

// Wait blocks until every queued task has finished.
func (q *taskQueue) Wait() {
	q.wg.Wait()
}
