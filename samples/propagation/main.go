package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/go-tracepool/executor"
	"github.com/cschleiden/go-tracepool/propagation"
	"github.com/cschleiden/go-tracepool/tracectx"
)

var exporter = flag.String("exporter", "stdout", "Span exporter. Supported exporters are:\n- stdout\n- otlp\n")
var endpoint = flag.String("endpoint", "localhost:4318", "OTLP/HTTP endpoint")
var requests = flag.Int("requests", 3, "Number of simulated requests")

var errOutOfStock = errors.New("item out of stock")

func main() {
	flag.Parse()

	ctx := context.Background()

	tp, err := newTracerProvider(ctx)
	if err != nil {
		panic(err)
	}
	otel.SetTracerProvider(tp)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pool := executor.NewPool(
		executor.WithName("orders"),
		executor.WithWorkers(2),
		executor.WithQueueSize(16),
		executor.WithLogger(logger),
		executor.WithWorkerContext(tracectx.Bind),
	)

	exec := propagation.Wrap(pool)

	for i := 0; i < *requests; i++ {
		handleRequest(ctx, exec, i)
	}

	exec.Shutdown()
	if err := exec.AwaitTermination(ctx); err != nil {
		panic(err)
	}

	if err := tp.Shutdown(ctx); err != nil {
		log.Println("could not flush spans:", err)
	}
}

func newTracerProvider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	r := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("go-tracepool sample"),
		semconv.ServiceVersionKey.String("v0.1.0"),
		attribute.String("environment", "sample"),
	)

	switch *exporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}

		return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp), sdktrace.WithResource(r)), nil

	case "otlp":
		client := otlptracehttp.NewClient(otlptracehttp.WithEndpoint(*endpoint), otlptracehttp.WithInsecure())
		exp, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, err
		}

		return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(r)), nil

	default:
		return nil, fmt.Errorf("unknown exporter %q", *exporter)
	}
}

// handleRequest simulates an incoming request fanning out work to the pool.
func handleRequest(ctx context.Context, exec executor.Executor, n int) {
	tracer := otel.Tracer("orders")

	member, _ := baggage.NewMember("request.id", uuid.NewString())
	bag, _ := baggage.New(member)
	ctx = baggage.ContextWithBaggage(ctx, bag)

	ctx, span := tracer.Start(ctx, "handle-order", trace.WithAttributes(attribute.Int("order", n)))
	defer span.End()

	stock := propagation.NewFuture(exec, func(ctx context.Context) (int, error) {
		ctx, span, end := tracectx.StartSpan(ctx, tracer, "check-stock")
		defer end()

		requestID := baggage.FromContext(ctx).Member("request.id").Value()
		span.SetAttributes(attribute.String("request.id", requestID))

		time.Sleep(10 * time.Millisecond)

		if n%3 == 2 {
			span.RecordError(errOutOfStock)
			span.SetStatus(codes.Error, errOutOfStock.Error())
			return 0, errOutOfStock
		}

		return 10 - n, nil
	})

	if err := stock.Execute(ctx); err != nil {
		log.Println("could not check stock:", err)
		return
	}

	// Runs in parallel with the stock check
	pricing, err := exec.Submit(ctx, func(ctx context.Context) (any, error) {
		_, span := tracer.Start(ctx, "compute-price")
		defer span.End()

		price := 9.99 * float64(n+1)
		span.SetAttributes(attribute.Float64("price", price))

		return price, nil
	})
	if err != nil {
		log.Println("could not compute price:", err)
		return
	}

	available, err := stock.Get(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Printf("order %d: %v", n, err)
		return
	}

	price, err := pricing.Get(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return
	}

	// Delayed follow-up keeps the trace of the order
	if scheduler, ok := exec.(executor.ScheduledExecutor); ok {
		reminder, err := scheduler.Schedule(ctx, func(ctx context.Context) (any, error) {
			tc := tracectx.Current(ctx)
			log.Printf("order %d: reminder in trace %v", n, tc)
			return nil, nil
		}, 50*time.Millisecond)
		if err != nil {
			log.Println("could not schedule reminder:", err)
		} else if _, err := reminder.Get(ctx); err != nil {
			log.Println("reminder failed:", err)
		}
	}

	span.SetStatus(codes.Ok, "")
	log.Printf("order %d: %d available at %.2f", n, available, price)
}
