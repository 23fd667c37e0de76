// Package future provides typed futures whose work runs on an executor.Executor.
//
// The executor is a dependency of the future, passed at construction. To have the work see the
// trace context of the goroutine calling Execute, construct the future with a propagating
// executor, see propagation.NewFuture.
package future

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cschleiden/go-tracepool/executor"
	"github.com/cschleiden/go-tracepool/internal/log"
)

type State int

const (
	// StateUnscheduled means Execute has not been called yet
	StateUnscheduled State = iota
	StatePending
	StateProcessing
	StateFulfilled
	StateRejected
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateUnscheduled:
		return "unscheduled"
	case StatePending:
		return "pending"
	case StateProcessing:
		return "processing"
	case StateFulfilled:
		return "fulfilled"
	case StateRejected:
		return "rejected"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

type Options struct {
	// Name identifies the future in logs
	Name string

	Logger *slog.Logger
}

var DefaultOptions = Options{
	Logger: slog.Default(),
}

type Option func(*Options)

func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Future is a value of type T produced by running a function on an executor.
type Future[T any] struct {
	executor executor.Executor
	fn       func(ctx context.Context) (T, error)

	logger *slog.Logger

	once      sync.Once
	submitted chan struct{}

	// set before submitted is closed
	handle    *executor.Future
	submitErr error
}

// New creates an unscheduled future. fn runs on exec once Execute is called.
func New[T any](exec executor.Executor, fn func(ctx context.Context) (T, error), opts ...Option) *Future[T] {
	if exec == nil {
		panic("future: nil executor")
	}

	if fn == nil {
		panic("future: nil function")
	}

	options := DefaultOptions
	for _, opt := range opts {
		opt(&options)
	}

	logger := options.Logger
	if options.Name != "" {
		logger = logger.With("future", options.Name)
	}

	return &Future[T]{
		executor:  exec,
		fn:        fn,
		logger:    logger,
		submitted: make(chan struct{}),
	}
}

// Execute submits the future's function to its executor. Only the first call submits; later
// calls return the result of the first submission. ctx is the submission context.
func (f *Future[T]) Execute(ctx context.Context) error {
	f.once.Do(func() {
		defer close(f.submitted)

		f.handle, f.submitErr = f.executor.Submit(ctx, func(ctx context.Context) (any, error) {
			return f.fn(ctx)
		})

		if f.submitErr != nil {
			f.logger.DebugContext(ctx, "could not submit future", "error", f.submitErr)
			return
		}

		f.logger.DebugContext(ctx, "submitted future", log.TaskIDKey, f.handle.ID())
	})

	<-f.submitted

	return f.submitErr
}

// Get waits until the future is executed and settled, or ctx is done. The error is the error
// returned by the function, the submission error if the executor rejected the function, or
// executor.ErrCanceled if it was canceled before it started.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	var zero T

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-f.submitted:
	}

	if f.submitErr != nil {
		return zero, f.submitErr
	}

	r, err := f.handle.Get(ctx)
	if v, ok := r.(T); ok {
		return v, err
	}

	return zero, err
}

// Wait blocks until the future is settled or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.submitted:
	}

	if f.submitErr != nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.handle.Done():
		return nil
	}
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Done returns a channel that is closed once the future is settled. Before Execute is called
// it returns nil, which blocks forever in a select.
func (f *Future[T]) Done() <-chan struct{} {
	select {
	case <-f.submitted:
	default:
		return nil
	}

	if f.submitErr != nil {
		return closedChan
	}

	return f.handle.Done()
}

// Cancel prevents a pending future from running. See executor.Future.Cancel.
func (f *Future[T]) Cancel() bool {
	select {
	case <-f.submitted:
	default:
		return false
	}

	if f.handle == nil {
		return false
	}

	return f.handle.Cancel()
}

func (f *Future[T]) State() State {
	select {
	case <-f.submitted:
	default:
		return StateUnscheduled
	}

	if f.submitErr != nil {
		return StateRejected
	}

	switch f.handle.State() {
	case executor.StatePending:
		return StatePending
	case executor.StateRunning:
		return StateProcessing
	case executor.StateCompleted:
		return StateFulfilled
	case executor.StateCanceled:
		return StateCanceled
	default:
		return StateRejected
	}
}
