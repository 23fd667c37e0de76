package propagation

import (
	"context"

	"github.com/cschleiden/go-tracepool/executor"
	"github.com/cschleiden/go-tracepool/tracectx"
)

// WrapTask returns a task that runs task with the snapshot as its active trace context.
//
// Every run gets a cell of its own holding the snapshot, bound to the context passed to task.
// The cell of the executing worker is never reachable from the task, so goroutines the task
// starts keep observing the snapshot after the worker has moved on. The results and errors of
// task pass through unchanged, and so do its panics.
func WrapTask(task executor.Task, snapshot tracectx.Snapshot) executor.Task {
	if task == nil {
		return nil
	}

	return func(ctx context.Context) (any, error) {
		return task(snapshot.Apply(tracectx.BindWith(ctx, snapshot.Context())))
	}
}
