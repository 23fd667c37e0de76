package tracectx

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Activate makes tc the active context of the cell bound to ctx and returns a function that
// restores the previous value. Without a bound cell Activate does nothing.
//
//	restore := tracectx.Activate(ctx, tc)
//	defer restore()
func Activate(ctx context.Context, tc Context) (restore func()) {
	cell, ok := CellFromContext(ctx)
	if !ok {
		return func() {}
	}

	previous, base := cell.load()
	cell.set(tc, trace.SpanContextFromContext(ctx))

	return func() {
		cell.set(previous, base)
	}
}

// StartSpan starts a span as a child of the active context and makes it active until the
// returned end function is called. end ends the span and restores the previous context.
func StartSpan(
	ctx context.Context, tracer trace.Tracer, name string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span, func()) {
	parent := Current(ctx)
	ctx, span := tracer.Start(trace.ContextWithSpan(ctx, parent.Span()), name, opts...)

	restore := Activate(ctx, FromSpan(span))

	return ctx, span, func() {
		span.End()
		restore()
	}
}
