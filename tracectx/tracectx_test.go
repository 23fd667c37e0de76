package tracectx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/baggage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTracer() (trace.Tracer, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	return provider.Tracer("tracectx-test"), recorder
}

func TestContext(t *testing.T) {
	tracer, _ := newTracer()
	_, span := tracer.Start(context.Background(), "span")
	defer span.End()

	_, other := tracer.Start(context.Background(), "other")
	defer other.End()

	t.Run("zero value is absent", func(t *testing.T) {
		var c Context
		require.True(t, c.IsAbsent())
		require.True(t, c.Equal(Absent))
		require.False(t, c.SpanContext().IsValid())
		require.NotNil(t, c.Span())
		require.Equal(t, "<absent>", c.String())
	})

	t.Run("invalid span maps to absent", func(t *testing.T) {
		require.True(t, FromSpan(nil).IsAbsent())
		require.True(t, FromSpan(trace.SpanFromContext(context.Background())).IsAbsent())
	})

	t.Run("equality follows span identity", func(t *testing.T) {
		c := FromSpan(span)
		require.False(t, c.IsAbsent())
		require.True(t, c.Equal(FromSpan(span)))
		require.False(t, c.Equal(FromSpan(other)))
		require.False(t, c.Equal(Absent))
		require.False(t, Absent.Equal(c))
		require.Equal(t, span, c.Span())
	})
}

func TestCell(t *testing.T) {
	tracer, _ := newTracer()
	_, span := tracer.Start(context.Background(), "span")
	defer span.End()

	t.Run("bind starts absent", func(t *testing.T) {
		ctx := Bind(context.Background())

		cell, ok := CellFromContext(ctx)
		require.True(t, ok)
		require.True(t, cell.Current().IsAbsent())
		require.True(t, Current(ctx).IsAbsent())
	})

	t.Run("set and clear", func(t *testing.T) {
		ctx := Bind(context.Background())

		require.NoError(t, Set(ctx, FromSpan(span)))
		require.True(t, Current(ctx).Equal(FromSpan(span)))

		require.NoError(t, Clear(ctx))
		require.True(t, Current(ctx).IsAbsent())
	})

	t.Run("writes override the span ctx carried at the time", func(t *testing.T) {
		ctx := Bind(trace.ContextWithSpan(context.Background(), span))
		require.True(t, Current(ctx).Equal(FromSpan(span)))

		require.NoError(t, Clear(ctx))
		require.True(t, Current(ctx).IsAbsent())
	})

	t.Run("spans started after a write take precedence", func(t *testing.T) {
		ctx := Bind(context.Background())
		require.NoError(t, Set(ctx, FromSpan(span)))

		childCtx, child := tracer.Start(trace.ContextWithSpan(ctx, span), "child")
		defer child.End()

		require.True(t, Current(childCtx).Equal(FromSpan(child)))
		require.True(t, Capture(childCtx).Context().Equal(FromSpan(child)))
		require.True(t, Current(ctx).Equal(FromSpan(span)))
	})

	t.Run("bind with a value", func(t *testing.T) {
		outer := Bind(context.Background())
		outerCell, _ := CellFromContext(outer)

		ctx := BindWith(outer, FromSpan(span))
		cell, ok := CellFromContext(ctx)
		require.True(t, ok)
		require.NotSame(t, outerCell, cell)
		require.True(t, Current(ctx).Equal(FromSpan(span)))

		require.NoError(t, Clear(ctx))
		require.True(t, Current(ctx).IsAbsent())
		require.True(t, outerCell.Current().IsAbsent())
	})

	t.Run("concurrent readers", func(t *testing.T) {
		ctx := BindWith(context.Background(), FromSpan(span))

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 100; i++ {
				_ = Current(ctx)
			}
		}()

		for i := 0; i < 100; i++ {
			require.NoError(t, Set(ctx, FromSpan(span)))
		}
		<-done
	})

	t.Run("each bind gets its own cell", func(t *testing.T) {
		ctx1 := Bind(context.Background())
		ctx2 := Bind(context.Background())

		require.NoError(t, Set(ctx1, FromSpan(span)))
		require.True(t, Current(ctx2).IsAbsent())
	})

	t.Run("without cell", func(t *testing.T) {
		require.ErrorIs(t, Set(context.Background(), FromSpan(span)), ErrNoCell)
		require.ErrorIs(t, Clear(context.Background()), ErrNoCell)

		_, ok := CellFromContext(nil) //nolint:staticcheck
		require.False(t, ok)

		require.True(t, Current(context.Background()).IsAbsent())
		require.True(t, Current(trace.ContextWithSpan(context.Background(), span)).Equal(FromSpan(span)))
	})
}

func TestCapture(t *testing.T) {
	tracer, _ := newTracer()
	_, span := tracer.Start(context.Background(), "span")
	defer span.End()

	member, err := baggage.NewMember("tenant", "acme")
	require.NoError(t, err)
	bag, err := baggage.New(member)
	require.NoError(t, err)

	t.Run("captures span and baggage", func(t *testing.T) {
		ctx := baggage.ContextWithBaggage(trace.ContextWithSpan(context.Background(), span), bag)

		s := Capture(ctx)
		require.True(t, s.Context().Equal(FromSpan(span)))
		require.Equal(t, "acme", s.Baggage().Member("tenant").Value())
	})

	t.Run("captures from cell", func(t *testing.T) {
		ctx := Bind(context.Background())
		require.NoError(t, Set(ctx, FromSpan(span)))

		s := Capture(ctx)
		require.True(t, s.Context().Equal(FromSpan(span)))
	})

	t.Run("snapshot is not affected by later writes", func(t *testing.T) {
		ctx := Bind(context.Background())
		require.NoError(t, Set(ctx, FromSpan(span)))

		s := Capture(ctx)
		require.NoError(t, Clear(ctx))

		require.True(t, s.Context().Equal(FromSpan(span)))
	})

	t.Run("nil and empty contexts capture absent", func(t *testing.T) {
		require.True(t, Capture(nil).Context().IsAbsent()) //nolint:staticcheck
		require.True(t, Capture(context.Background()).Context().IsAbsent())
	})

	t.Run("apply replaces span and baggage", func(t *testing.T) {
		target := baggage.ContextWithBaggage(trace.ContextWithSpan(context.Background(), span), bag)

		ctx := Snapshot{}.Apply(target)
		require.False(t, trace.SpanContextFromContext(ctx).IsValid())
		require.Equal(t, 0, baggage.FromContext(ctx).Len())

		s := Capture(baggage.ContextWithBaggage(trace.ContextWithSpan(context.Background(), span), bag))
		ctx = s.Apply(context.Background())
		require.Equal(t, span, trace.SpanFromContext(ctx))
		require.Equal(t, "acme", baggage.FromContext(ctx).Member("tenant").Value())
	})
}

func TestActivate(t *testing.T) {
	tracer, recorder := newTracer()
	_, span := tracer.Start(context.Background(), "span")
	defer span.End()

	t.Run("restores previous value", func(t *testing.T) {
		ctx := Bind(context.Background())

		restore := Activate(ctx, FromSpan(span))
		require.True(t, Current(ctx).Equal(FromSpan(span)))

		restore()
		require.True(t, Current(ctx).IsAbsent())
	})

	t.Run("no cell is a no-op", func(t *testing.T) {
		restore := Activate(context.Background(), FromSpan(span))
		require.NotPanics(t, restore)
	})

	t.Run("start span parents on the active context", func(t *testing.T) {
		ctx := Bind(context.Background())
		require.NoError(t, Set(ctx, FromSpan(span)))

		childCtx, child, end := StartSpan(ctx, tracer, "child")
		require.True(t, Current(ctx).Equal(FromSpan(child)))
		require.Equal(t, child, trace.SpanFromContext(childCtx))

		end()
		require.True(t, Current(ctx).Equal(FromSpan(span)))

		ended := recorder.Ended()
		require.NotEmpty(t, ended)
		last := ended[len(ended)-1]
		require.Equal(t, "child", last.Name())
		require.Equal(t, span.SpanContext().SpanID(), last.Parent().SpanID())
	})

	t.Run("start span without active context creates a root", func(t *testing.T) {
		ctx := Bind(context.Background())

		_, _, end := StartSpan(ctx, tracer, "root")
		end()

		ended := recorder.Ended()
		last := ended[len(ended)-1]
		require.Equal(t, "root", last.Name())
		require.False(t, last.Parent().IsValid())
	})
}
