package executor

import (
	"context"
	"sync"
)

type workQueue struct {
	tasks chan *Future

	closing   chan struct{}
	closeOnce sync.Once
}

func newWorkQueue(size int) *workQueue {
	if size < 0 {
		size = 0
	}

	return &workQueue{
		tasks:   make(chan *Future, size),
		closing: make(chan struct{}),
	}
}

// add blocks until the task is accepted, ctx is done, or the queue starts closing.
func (w *workQueue) add(ctx context.Context, task *Future) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.closing:
		return ErrShutdown
	case w.tasks <- task:
		return nil
	}
}

// beginClose unblocks pending adds. The caller closes tasks once no add can be in flight.
func (w *workQueue) beginClose() {
	w.closeOnce.Do(func() {
		close(w.closing)
	})
}
