package executor

import (
	"context"
	"log/slog"

	"github.com/benbjohnson/clock"
	mi "github.com/cschleiden/go-tracepool/internal/metrics"
	"github.com/cschleiden/go-tracepool/metrics"
)

type Options struct {
	// Name identifies the pool in logs and metrics.
	Name string

	// Workers is the number of worker goroutines. If not set, runtime.GOMAXPROCS(0) is used.
	Workers int

	// QueueSize is the number of accepted tasks that may wait for a worker. With 0, Submit
	// blocks until a worker picks up the task.
	QueueSize int

	Logger *slog.Logger

	Metrics metrics.Client

	// Clock is used for delayed tasks and timing metrics.
	Clock clock.Clock

	// WorkerContext is called once by every worker goroutine when it starts. The returned
	// context is the parent of the context of every task the worker runs. Use it to attach
	// worker-local state, for example tracectx.Bind.
	WorkerContext func(context.Context) context.Context
}

var DefaultOptions = Options{
	Name: "default",

	Logger:  slog.Default(),
	Metrics: mi.NewNoopMetricsClient(),
	Clock:   clock.New(),
}

type PoolOption func(*Options)

func WithName(name string) PoolOption {
	return func(o *Options) {
		o.Name = name
	}
}

func WithWorkers(workers int) PoolOption {
	return func(o *Options) {
		o.Workers = workers
	}
}

func WithQueueSize(size int) PoolOption {
	return func(o *Options) {
		o.QueueSize = size
	}
}

func WithLogger(logger *slog.Logger) PoolOption {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithMetrics(client metrics.Client) PoolOption {
	return func(o *Options) {
		o.Metrics = client
	}
}

func WithClock(clock clock.Clock) PoolOption {
	return func(o *Options) {
		o.Clock = clock
	}
}

func WithWorkerContext(fn func(context.Context) context.Context) PoolOption {
	return func(o *Options) {
		o.WorkerContext = fn
	}
}
