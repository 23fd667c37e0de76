package tracectx

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// ErrNoCell is returned when writing the active context through a context.Context that has no
// cell bound to it.
var ErrNoCell = errors.New("no context cell bound")

// Cell holds the trace context active for the code that was handed the context it is bound to.
//
// A cell is bound to a worker goroutine or to a single task (see Bind and BindWith). Goroutines
// started by that code may read it; values travel to unrelated goroutines only through a
// Snapshot.
type Cell struct {
	mu sync.RWMutex

	current Context

	// base is the span carried by the context the value was written through. A different
	// valid span in a context means it was started after the write and takes precedence.
	base trace.SpanContext
}

// Current returns the value stored in the cell.
func (c *Cell) Current() Context {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.current
}

// Set stores tc in the cell.
func (c *Cell) Set(tc Context) {
	c.set(tc, trace.SpanContext{})
}

// Clear stores Absent in the cell.
func (c *Cell) Clear() {
	c.Set(Absent)
}

func (c *Cell) set(tc Context, base trace.SpanContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = tc
	c.base = base
}

func (c *Cell) load() (Context, trace.SpanContext) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.current, c.base
}

type cellContextKeyType int

const cellKey cellContextKeyType = iota

// Bind returns a context carrying a fresh cell, initialized to Absent. A worker goroutine calls
// Bind once when it starts and hands the returned context (or children of it) to the tasks it
// runs.
func Bind(ctx context.Context) context.Context {
	return context.WithValue(ctx, cellKey, &Cell{})
}

// BindWith returns a context carrying a fresh cell holding tc. The cell shadows any cell bound
// to ctx.
func BindWith(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, cellKey, &Cell{
		current: tc,
		base:    trace.SpanContextFromContext(ctx),
	})
}

// CellFromContext returns the cell bound to ctx, if any.
func CellFromContext(ctx context.Context) (*Cell, bool) {
	if ctx == nil {
		return nil, false
	}

	cell, ok := ctx.Value(cellKey).(*Cell)
	return cell, ok && cell != nil
}

// Current returns the trace context active for ctx.
//
// A span carried by ctx that was started after the cell was last written wins over the cell,
// so spans started with a plain tracer.Start are observed. Otherwise the bound cell is
// authoritative, and without a cell the span carried by ctx is used.
func Current(ctx context.Context) Context {
	if ctx == nil {
		return Absent
	}

	span := trace.SpanFromContext(ctx)

	cell, ok := CellFromContext(ctx)
	if !ok {
		return FromSpan(span)
	}

	current, base := cell.load()

	sc := span.SpanContext()
	if sc.IsValid() && !sc.Equal(base) && !sc.Equal(current.SpanContext()) {
		return FromSpan(span)
	}

	return current
}

// Set writes tc to the cell bound to ctx.
func Set(ctx context.Context, tc Context) error {
	cell, ok := CellFromContext(ctx)
	if !ok {
		return ErrNoCell
	}

	cell.set(tc, trace.SpanContextFromContext(ctx))

	return nil
}

// Clear writes Absent to the cell bound to ctx.
func Clear(ctx context.Context) error {
	return Set(ctx, Absent)
}
