// Package propagation carries the active trace context from the goroutine submitting a task
// to the worker goroutine running it.
//
// Wrap decorates any executor.Executor. Every submission captures the submitter's trace
// context on the calling goroutine; the worker installs it for the duration of the task and
// restores its own context afterwards, so nothing leaks into later tasks on the same worker.
//
//	pool := executor.NewPool(executor.WithWorkerContext(tracectx.Bind))
//	exec := propagation.Wrap(pool)
//
//	ctx, span := tracer.Start(ctx, "handler")
//	f, err := exec.Submit(ctx, func(ctx context.Context) (any, error) {
//		// tracectx.Current(ctx) is the "handler" span
//	})
package propagation

import (
	"context"
	"time"

	"github.com/cschleiden/go-tracepool/executor"
	"github.com/cschleiden/go-tracepool/tracectx"
)

type propagating interface {
	executor.Executor

	Unwrap() executor.Executor

	isPropagating()
}

// Wrap returns an executor that propagates the trace context of each submission to the task.
//
// The returned executor has the same capabilities as inner: it implements
// executor.ScheduledExecutor and executor.Inspector exactly when inner does. All operations
// other than submission are forwarded to inner unchanged. Wrapping an executor returned by
// Wrap returns it as is.
func Wrap(inner executor.Executor) executor.Executor {
	if inner == nil {
		panic("propagation: nil executor")
	}

	if _, ok := inner.(propagating); ok {
		return inner
	}

	pe := &propagatingExecutor{inner: inner}

	scheduler, schedules := inner.(executor.ScheduledExecutor)
	inspector, inspects := inner.(executor.Inspector)

	switch {
	case schedules && inspects:
		return &inspectingScheduledExecutor{&propagatingScheduledExecutor{pe, scheduler}, inspector}
	case schedules:
		return &propagatingScheduledExecutor{pe, scheduler}
	case inspects:
		return &inspectingExecutor{pe, inspector}
	default:
		return pe
	}
}

// Unwrap returns the executor decorated by Wrap, or e itself if it was not returned by Wrap.
func Unwrap(e executor.Executor) executor.Executor {
	if p, ok := e.(propagating); ok {
		return p.Unwrap()
	}

	return e
}

type propagatingExecutor struct {
	inner executor.Executor
}

var _ propagating = (*propagatingExecutor)(nil)

func (e *propagatingExecutor) Submit(ctx context.Context, task executor.Task) (*executor.Future, error) {
	return e.inner.Submit(ctx, WrapTask(task, tracectx.Capture(ctx)))
}

func (e *propagatingExecutor) Shutdown() {
	e.inner.Shutdown()
}

func (e *propagatingExecutor) ShutdownNow() []*executor.Future {
	return e.inner.ShutdownNow()
}

func (e *propagatingExecutor) AwaitTermination(ctx context.Context) error {
	return e.inner.AwaitTermination(ctx)
}

func (e *propagatingExecutor) IsShutdown() bool {
	return e.inner.IsShutdown()
}

func (e *propagatingExecutor) IsTerminated() bool {
	return e.inner.IsTerminated()
}

func (e *propagatingExecutor) Unwrap() executor.Executor {
	return e.inner
}

func (*propagatingExecutor) isPropagating() {}

type propagatingScheduledExecutor struct {
	*propagatingExecutor

	scheduler executor.ScheduledExecutor
}

var _ executor.ScheduledExecutor = (*propagatingScheduledExecutor)(nil)

// Schedule captures the trace context when the task is scheduled, not when it becomes due.
func (e *propagatingScheduledExecutor) Schedule(
	ctx context.Context, task executor.Task, delay time.Duration,
) (*executor.Future, error) {
	return e.scheduler.Schedule(ctx, WrapTask(task, tracectx.Capture(ctx)), delay)
}

type inspectingExecutor struct {
	*propagatingExecutor
	executor.Inspector
}

type inspectingScheduledExecutor struct {
	*propagatingScheduledExecutor
	executor.Inspector
}

var (
	_ executor.Inspector = (*inspectingExecutor)(nil)
	_ executor.Inspector = (*inspectingScheduledExecutor)(nil)
	_ propagating        = (*inspectingScheduledExecutor)(nil)
)
