package executor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

type State int32

const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Future is the handle to a submitted task.
type Future struct {
	id   uuid.UUID
	task Task

	state *atomic.Int32
	done  chan struct{}

	result any
	err    error

	queuedAt time.Time

	mu sync.Mutex
	// interrupt cancels the context of the running task
	interrupt context.CancelFunc
	// onCancel is invoked when a pending task is canceled
	onCancel func()
}

func newFuture(task Task) *Future {
	return &Future{
		id:    uuid.New(),
		task:  task,
		state: atomic.NewInt32(int32(StatePending)),
		done:  make(chan struct{}),
	}
}

func (f *Future) ID() uuid.UUID {
	return f.id
}

func (f *Future) State() State {
	return State(f.state.Load())
}

// Done is closed once the task has completed, failed, or was canceled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Get waits for the task to finish and returns its result and error exactly as the task
// returned them.
func (f *Future) Get(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.result, f.err
	}
}

// Cancel prevents a pending task from running and interrupts a running task by canceling its
// context. It reports whether the task was prevented from starting.
func (f *Future) Cancel() bool {
	if f.state.CAS(int32(StatePending), int32(StateCanceled)) {
		f.mu.Lock()
		onCancel := f.onCancel
		f.mu.Unlock()

		if onCancel != nil {
			onCancel()
		}

		f.err = ErrCanceled
		close(f.done)

		return true
	}

	f.mu.Lock()
	if f.interrupt != nil {
		f.interrupt()
	}
	f.mu.Unlock()

	return false
}

// start transitions the future to running. It fails if the future was canceled, which keeps
// a task from ever running more than once.
func (f *Future) start(interrupt context.CancelFunc) bool {
	// Hold the lock across the transition so a concurrent Cancel observes the interrupt func
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.state.CAS(int32(StatePending), int32(StateRunning)) {
		return false
	}

	f.interrupt = interrupt

	return true
}

func (f *Future) complete(result any, err error) {
	f.mu.Lock()
	f.interrupt = nil
	f.mu.Unlock()

	f.result = result
	f.err = err

	if err != nil {
		f.state.Store(int32(StateFailed))
	} else {
		f.state.Store(int32(StateCompleted))
	}

	close(f.done)
}

// fail settles a pending future without running it.
func (f *Future) fail(err error) bool {
	if !f.state.CAS(int32(StatePending), int32(StateFailed)) {
		return false
	}

	f.err = err
	close(f.done)

	return true
}

func (f *Future) setOnCancel(fn func()) {
	f.mu.Lock()
	f.onCancel = fn
	f.mu.Unlock()
}
