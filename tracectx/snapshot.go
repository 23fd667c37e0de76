package tracectx

import (
	"context"

	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/trace"
)

// Snapshot is the trace context that was active when a task was submitted. It is read on the
// goroutine that executes the task and never changes after Capture returns.
type Snapshot struct {
	tc      Context
	baggage baggage.Baggage
}

// Capture records the trace context and baggage active for ctx. It never fails: a nil ctx or a
// ctx without an active span captures Absent, which is propagated like any other value.
func Capture(ctx context.Context) Snapshot {
	if ctx == nil {
		return Snapshot{}
	}

	return Snapshot{
		tc:      Current(ctx),
		baggage: baggage.FromContext(ctx),
	}
}

func (s Snapshot) Context() Context {
	return s.tc
}

func (s Snapshot) Baggage() baggage.Baggage {
	return s.baggage
}

// Apply returns a child of ctx that carries the captured span and baggage. Any span or baggage
// ctx already carried is replaced, including when the snapshot is absent.
func (s Snapshot) Apply(ctx context.Context) context.Context {
	if s.tc.IsAbsent() {
		ctx = trace.ContextWithSpanContext(ctx, trace.SpanContext{})
	} else {
		ctx = trace.ContextWithSpan(ctx, s.tc.span)
	}

	return baggage.ContextWithBaggage(ctx, s.baggage)
}
