package tracectx

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Context identifies the span logically in progress. The zero value is Absent.
type Context struct {
	span trace.Span
}

// Absent is the context used when no span is in progress.
var Absent = Context{}

// FromSpan returns the context for the given span. Spans without a valid span context map to
// Absent.
func FromSpan(span trace.Span) Context {
	if span == nil || !span.SpanContext().IsValid() {
		return Absent
	}

	return Context{span: span}
}

func (c Context) IsAbsent() bool {
	return c.span == nil
}

// Span returns the span in progress, or a non-recording span with an invalid span context if
// the context is absent.
func (c Context) Span() trace.Span {
	if c.span == nil {
		return trace.SpanFromContext(context.Background())
	}

	return c.span
}

func (c Context) SpanContext() trace.SpanContext {
	if c.span == nil {
		return trace.SpanContext{}
	}

	return c.span.SpanContext()
}

// Equal reports whether both contexts identify the same span. Two absent contexts are equal.
func (c Context) Equal(other Context) bool {
	if c.IsAbsent() || other.IsAbsent() {
		return c.IsAbsent() == other.IsAbsent()
	}

	return c.SpanContext().Equal(other.SpanContext())
}

func (c Context) String() string {
	if c.IsAbsent() {
		return "<absent>"
	}

	sc := c.SpanContext()
	return sc.TraceID().String() + "/" + sc.SpanID().String()
}
