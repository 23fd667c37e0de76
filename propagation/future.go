package propagation

import (
	"context"

	"github.com/cschleiden/go-tracepool/executor"
	"github.com/cschleiden/go-tracepool/future"
)

// NewFuture creates a future that runs fn on exec with the trace context of the goroutine that
// calls Execute. It is equivalent to future.New(Wrap(exec), fn, opts...).
func NewFuture[T any](
	exec executor.Executor, fn func(ctx context.Context) (T, error), opts ...future.Option,
) *future.Future[T] {
	return future.New(Wrap(exec), fn, opts...)
}
