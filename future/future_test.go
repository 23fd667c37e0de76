package future

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cschleiden/go-tracepool/executor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestPool(t *testing.T, workers int) *executor.Pool {
	t.Helper()

	p := executor.NewPool(
		executor.WithWorkers(workers),
		executor.WithQueueSize(4),
		executor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	t.Cleanup(func() {
		p.ShutdownNow()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, p.AwaitTermination(ctx))
	})

	return p
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func TestFuture_Get(t *testing.T) {
	p := newTestPool(t, 1)
	ctx := testContext(t)

	f := New(p, func(ctx context.Context) (int, error) {
		return 42, nil
	}, WithName("answer"))
	require.Equal(t, StateUnscheduled, f.State())

	require.NoError(t, f.Execute(ctx))

	select {
	case <-f.Done():
	case <-ctx.Done():
		require.Fail(t, "timeout waiting for future")
	}

	r, err := f.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 42, r)
	require.Equal(t, StateFulfilled, f.State())
}

func TestFuture_GetError(t *testing.T) {
	p := newTestPool(t, 1)
	ctx := testContext(t)

	sentinel := errors.New("lookup failed")

	f := New(p, func(ctx context.Context) (string, error) {
		return "", sentinel
	})
	require.NoError(t, f.Execute(ctx))

	r, err := f.Get(ctx)
	require.Equal(t, sentinel, err)
	require.Empty(t, r)
	require.Equal(t, StateRejected, f.State())
}

func TestFuture_ExecuteOnce(t *testing.T) {
	p := newTestPool(t, 2)
	ctx := testContext(t)

	calls := make(chan struct{}, 10)

	f := New(p, func(ctx context.Context) (struct{}, error) {
		calls <- struct{}{}
		return struct{}{}, nil
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, f.Execute(ctx))
	}

	require.NoError(t, f.Wait(ctx))
	require.Len(t, calls, 1)
}

func TestFuture_SubmissionRejected(t *testing.T) {
	p := newTestPool(t, 1)
	ctx := testContext(t)

	p.Shutdown()

	f := New(p, func(ctx context.Context) (int, error) {
		return 1, nil
	})

	err := f.Execute(ctx)
	require.ErrorIs(t, err, executor.ErrShutdown)
	require.Equal(t, StateRejected, f.State())

	// Later calls report the same failure without resubmitting
	require.ErrorIs(t, f.Execute(ctx), executor.ErrShutdown)

	_, err = f.Get(ctx)
	require.ErrorIs(t, err, executor.ErrShutdown)

	require.NoError(t, f.Wait(ctx))
	require.False(t, f.Cancel())

	select {
	case <-f.Done():
	default:
		require.Fail(t, "rejected future should be done")
	}
}

func TestFuture_GetBeforeExecute(t *testing.T) {
	p := newTestPool(t, 1)

	f := New(p, func(ctx context.Context) (int, error) {
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Get(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, f.Wait(ctx), context.DeadlineExceeded)
	require.False(t, f.Cancel())
	require.Nil(t, f.Done())
	require.Equal(t, StateUnscheduled, f.State())
}

func TestFuture_Cancel(t *testing.T) {
	p := newTestPool(t, 1)
	ctx := testContext(t)

	release := make(chan struct{})
	started := make(chan struct{})

	blocking := New(p, func(ctx context.Context) (bool, error) {
		close(started)
		<-release
		return true, nil
	})
	require.NoError(t, blocking.Execute(ctx))
	<-started
	require.Equal(t, StateProcessing, blocking.State())

	queued := New(p, func(ctx context.Context) (bool, error) {
		return true, nil
	})
	require.NoError(t, queued.Execute(ctx))
	require.Equal(t, StatePending, queued.State())

	require.True(t, queued.Cancel())
	require.Equal(t, StateCanceled, queued.State())

	_, err := queued.Get(ctx)
	require.ErrorIs(t, err, executor.ErrCanceled)

	close(release)

	r, err := blocking.Get(ctx)
	require.NoError(t, err)
	require.True(t, r)
	require.False(t, blocking.Cancel())
}

func TestFuture_PanicsOnNil(t *testing.T) {
	p := newTestPool(t, 1)

	require.Panics(t, func() {
		New[int](nil, func(ctx context.Context) (int, error) { return 0, nil })
	})

	require.Panics(t, func() {
		New[int](p, nil)
	})
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUnscheduled, "unscheduled"},
		{StatePending, "pending"},
		{StateProcessing, "processing"},
		{StateFulfilled, "fulfilled"},
		{StateRejected, "rejected"},
		{StateCanceled, "canceled"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, tt.state.String())
		})
	}
}
