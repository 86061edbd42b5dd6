// Package queue provides a bounded FIFO of download jobs with a counting join
// barrier: Join returns once every job that was Put has been marked done.
package queue

import (
	"context"
	"sync"

	"parallel-ytdl/internal/model"
)

type Queue struct {
	items chan model.Job

	mu         sync.Mutex
	unfinished int
	drained    chan struct{}
	closeOnce  sync.Once
}

// New returns a queue holding at most capacity jobs. A capacity below one is
// raised to one.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	drained := make(chan struct{})
	close(drained)
	return &Queue{
		items:   make(chan model.Job, capacity),
		drained: drained,
	}
}

// Put enqueues job, blocking while the queue is full.
func (q *Queue) Put(ctx context.Context, job model.Job) error {
	q.mu.Lock()
	if q.unfinished == 0 {
		q.drained = make(chan struct{})
	}
	q.unfinished++
	q.mu.Unlock()

	select {
	case q.items <- job:
		return nil
	case <-ctx.Done():
		q.TaskDone()
		return ctx.Err()
	}
}

// Get dequeues the next job. It returns false once the queue is closed and
// empty, or when ctx is done.
func (q *Queue) Get(ctx context.Context) (model.Job, bool) {
	select {
	case job, ok := <-q.items:
		return job, ok
	case <-ctx.Done():
		return model.Job{}, false
	}
}

// TaskDone marks one dequeued job as fully processed.
func (q *Queue) TaskDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished <= 0 {
		panic("queue: TaskDone called more times than Put")
	}
	q.unfinished--
	if q.unfinished == 0 {
		close(q.drained)
	}
}

// Join blocks until every job put so far has been marked done.
func (q *Queue) Join(ctx context.Context) error {
	q.mu.Lock()
	drained := q.drained
	q.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops consumers once the remaining jobs are taken. Put must not be
// called after Close.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.items)
	})
}

// Unfinished reports jobs put but not yet marked done.
func (q *Queue) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

func (q *Queue) Len() int {
	return len(q.items)
}
