package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cschleiden/go-tracepool/executor"
	"github.com/cschleiden/go-tracepool/propagation"
	"github.com/cschleiden/go-tracepool/tracectx"
)

var mode = flag.String("mode", "propagating", "Executor to use. Supported modes are:\n- raw\n- propagating\n")
var timeout = flag.Duration("timeout", time.Second*30, "Timeout for the benchmark run")
var workers = flag.Int("workers", 8, "Number of pool workers")
var queueSize = flag.Int("queuesize", 128, "Capacity of the pool queue")
var producers = flag.Int("producers", 16, "Number of goroutines submitting tasks")
var tasks = flag.Int("tasks", 10000, "Number of tasks submitted per producer")
var work = flag.Duration("work", 0, "Time every task sleeps")
var childSpans = flag.Bool("childspans", true, "Start a child span in every task")
var format = flag.String("format", "text", "Output format. Supported formats are:\n- text\n- csv\n")

func main() {
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	defer tp.Shutdown(context.Background())

	tracer := tp.Tracer("bench")

	mm := newMemMetrics()
	pool := executor.NewPool(
		executor.WithName(*mode),
		executor.WithWorkers(*workers),
		executor.WithQueueSize(*queueSize),
		executor.WithLogger(slog.New(&nullHandler{})),
		executor.WithMetrics(mm),
		executor.WithWorkerContext(tracectx.Bind),
	)

	exec := getExecutor(*mode, pool)

	task := func(ctx context.Context) (any, error) {
		if *childSpans {
			_, span := tracer.Start(ctx, "task")
			defer span.End()
		}

		if *work > 0 {
			time.Sleep(*work)
		}

		return nil, nil
	}

	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *producers; i++ {
		i := i
		g.Go(func() error {
			pctx, span := tracer.Start(gctx, fmt.Sprintf("producer-%d", i), trace.WithSpanKind(trace.SpanKindProducer))
			defer span.End()

			futures := make([]*executor.Future, 0, *tasks)
			for j := 0; j < *tasks; j++ {
				f, err := exec.Submit(pctx, task)
				if err != nil {
					return fmt.Errorf("submitting task: %w", err)
				}

				futures = append(futures, f)
			}

			for _, f := range futures {
				if _, err := f.Get(gctx); err != nil {
					return err
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		panic(err)
	}

	end := time.Now()

	exec.Shutdown()
	if err := exec.AwaitTermination(ctx); err != nil {
		panic(err)
	}

	total := *producers * *tasks

	switch *format {
	case "text":
		log.Println("Ran", total, "tasks in", end.Sub(start).Seconds(), "seconds using the", *mode, "executor")
		mm.Print()

	case "csv":
		fmt.Printf(
			"%s,%v,%d,%d,%d,%v,%v\n",
			*mode, end.Sub(start).Seconds(), *workers, *producers, *tasks, *work, *childSpans)
	}
}

func getExecutor(mode string, pool *executor.Pool) executor.Executor {
	switch mode {
	case "raw":
		return pool

	case "propagating":
		return propagation.Wrap(pool)

	default:
		panic("unknown mode " + mode)
	}
}
