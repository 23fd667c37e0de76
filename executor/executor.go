// Package executor defines the contract of task executors and provides Pool, a bounded
// goroutine pool implementing it.
package executor

import (
	"context"
	"time"
)

// Task is a unit of work. The context passed to a task belongs to the goroutine executing it;
// it is canceled when the task is canceled while running or when the executor is shut down
// with ShutdownNow.
type Task func(ctx context.Context) (any, error)

type Executor interface {
	// Submit hands a task to the executor. ctx bounds how long submission may block; it is not
	// passed to the task.
	Submit(ctx context.Context, task Task) (*Future, error)

	// Shutdown stops accepting new tasks. Tasks that were already accepted still run.
	Shutdown()

	// ShutdownNow stops accepting new tasks, cancels tasks that have not started yet and
	// returns their futures, and cancels the context of running tasks.
	ShutdownNow() []*Future

	// AwaitTermination blocks until all tasks have finished after a shutdown, or until ctx is
	// done.
	AwaitTermination(ctx context.Context) error

	IsShutdown() bool

	IsTerminated() bool
}

type ScheduledExecutor interface {
	Executor

	// Schedule runs a task once the delay has passed.
	Schedule(ctx context.Context, task Task, delay time.Duration) (*Future, error)
}

// Inspector is implemented by executors that expose their utilization.
type Inspector interface {
	Stats() Stats
}

type Stats struct {
	Workers int

	// Active is the number of tasks currently running
	Active int64

	// Queued is the number of tasks accepted but not yet started
	Queued int64

	// Scheduled is the number of delayed tasks that have not become due yet
	Scheduled int64

	Completed int64

	Failed int64
}
