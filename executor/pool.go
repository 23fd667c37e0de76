package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-tracepool/internal/log"
	"github.com/cschleiden/go-tracepool/internal/metrickeys"
	im "github.com/cschleiden/go-tracepool/internal/metrics"
	"github.com/cschleiden/go-tracepool/metrics"
	"go.uber.org/atomic"
)

// Pool runs tasks on a fixed number of worker goroutines.
type Pool struct {
	options Options

	logger  *slog.Logger
	metrics metrics.Client
	clock   clock.Clock

	queue *workQueue

	// ctx is the parent of every worker context, canceled by ShutdownNow
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	shutdown  bool
	scheduled map[*Future]*clock.Timer

	pendingMu sync.Mutex
	pending   map[*Future]struct{}

	// submitting tracks enqueues that passed the shutdown check and may still send
	submitting sync.WaitGroup

	shutdownOnce sync.Once
	workersWg    sync.WaitGroup
	terminated   chan struct{}

	active    *atomic.Int64
	completed *atomic.Int64
	failed    *atomic.Int64
}

var (
	_ ScheduledExecutor = (*Pool)(nil)
	_ Inspector         = (*Pool)(nil)
)

// NewPool creates a pool and starts its workers.
func NewPool(opts ...PoolOption) *Pool {
	options := DefaultOptions
	for _, opt := range opts {
		opt(&options)
	}

	if options.Workers <= 0 {
		options.Workers = runtime.GOMAXPROCS(0)
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		options: options,

		logger:  options.Logger.With(log.PoolNameKey, options.Name),
		metrics: options.Metrics.WithTags(metrics.Tags{metrickeys.Pool: options.Name}),
		clock:   options.Clock,

		queue: newWorkQueue(options.QueueSize),

		ctx:    ctx,
		cancel: cancel,

		scheduled: make(map[*Future]*clock.Timer),
		pending:   make(map[*Future]struct{}),

		terminated: make(chan struct{}),

		active:    atomic.NewInt64(0),
		completed: atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
	}

	p.workersWg.Add(options.Workers)
	for i := 0; i < options.Workers; i++ {
		go p.worker(i)
	}

	go func() {
		p.workersWg.Wait()
		close(p.terminated)

		p.logger.Debug("pool terminated")
	}()

	p.metrics.Gauge(metrickeys.PoolWorkers, nil, int64(options.Workers))

	return p
}

func (p *Pool) Submit(ctx context.Context, task Task) (*Future, error) {
	if task == nil {
		return nil, errors.New("task must not be nil")
	}

	f := newFuture(task)
	f.setOnCancel(func() {
		p.removePending(f)
	})

	if err := p.enqueue(ctx, f); err != nil {
		p.metrics.Counter(metrickeys.TaskRejected, metrics.Tags{metrickeys.Reason: reason(err)}, 1)
		return nil, err
	}

	p.metrics.Counter(metrickeys.TaskSubmitted, nil, 1)

	return f, nil
}

// Schedule runs the task after the given delay. A delay <= 0 is equivalent to Submit.
//
// Delayed tasks that have not become due when the pool is shut down fail with ErrShutdown.
func (p *Pool) Schedule(ctx context.Context, task Task, delay time.Duration) (*Future, error) {
	if delay <= 0 {
		return p.Submit(ctx, task)
	}

	if task == nil {
		return nil, errors.New("task must not be nil")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := newFuture(task)

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		p.metrics.Counter(metrickeys.TaskRejected, metrics.Tags{metrickeys.Reason: reason(ErrShutdown)}, 1)
		return nil, ErrShutdown
	}

	p.scheduled[f] = p.clock.AfterFunc(delay, func() {
		p.fire(f)
	})
	p.mu.Unlock()

	f.setOnCancel(func() {
		p.unschedule(f)
		p.removePending(f)
	})

	p.metrics.Counter(metrickeys.TaskScheduled, nil, 1)
	p.logger.Debug("scheduled task", log.TaskIDKey, f.ID(), log.DelayKey, delay)

	return f, nil
}

func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.shutdown = true
		scheduled := p.scheduled
		p.scheduled = make(map[*Future]*clock.Timer)
		p.mu.Unlock()

		// No enqueue can start now. Unblock the ones waiting for capacity, then close the queue
		// once none of them can send anymore.
		p.queue.beginClose()
		p.submitting.Wait()
		close(p.queue.tasks)

		for f, t := range scheduled {
			t.Stop()

			if f.fail(ErrShutdown) {
				p.metrics.Counter(metrickeys.TaskCanceled, metrics.Tags{metrickeys.Reason: reason(ErrShutdown)}, 1)
			}
		}

		p.logger.Debug("pool shut down", "scheduled_canceled", len(scheduled))
	})
}

func (p *Pool) ShutdownNow() []*Future {
	p.Shutdown()

	p.pendingMu.Lock()
	pending := make([]*Future, 0, len(p.pending))
	for f := range p.pending {
		pending = append(pending, f)
	}
	p.pendingMu.Unlock()

	canceled := make([]*Future, 0, len(pending))
	for _, f := range pending {
		if f.Cancel() {
			canceled = append(canceled, f)
		}
	}

	// Interrupt running tasks
	p.cancel()

	p.metrics.Counter(metrickeys.TaskCanceled, metrics.Tags{metrickeys.Reason: "shutdown_now"}, int64(len(canceled)))
	p.logger.Debug("pool shut down immediately", "pending_canceled", len(canceled))

	return canceled
}

func (p *Pool) AwaitTermination(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.terminated:
		return nil
	}
}

func (p *Pool) IsShutdown() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.shutdown
}

func (p *Pool) IsTerminated() bool {
	select {
	case <-p.terminated:
		return true
	default:
		return false
	}
}

func (p *Pool) Stats() Stats {
	p.pendingMu.Lock()
	queued := len(p.pending)
	p.pendingMu.Unlock()

	p.mu.RLock()
	scheduled := len(p.scheduled)
	p.mu.RUnlock()

	return Stats{
		Workers:   p.options.Workers,
		Active:    p.active.Load(),
		Queued:    int64(queued),
		Scheduled: int64(scheduled),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

func (p *Pool) enqueue(ctx context.Context, f *Future) error {
	p.mu.RLock()
	if p.shutdown {
		p.mu.RUnlock()
		return ErrShutdown
	}
	p.submitting.Add(1)
	p.mu.RUnlock()

	defer p.submitting.Done()

	f.queuedAt = p.clock.Now()

	p.pendingMu.Lock()
	p.pending[f] = struct{}{}
	p.pendingMu.Unlock()

	// Blocks without holding the lock, Shutdown unblocks it through beginClose
	if err := p.queue.add(ctx, f); err != nil {
		p.removePending(f)
		return err
	}

	return nil
}

func (p *Pool) removePending(f *Future) {
	p.pendingMu.Lock()
	delete(p.pending, f)
	p.pendingMu.Unlock()
}

func (p *Pool) fire(f *Future) {
	p.mu.Lock()
	_, ok := p.scheduled[f]
	delete(p.scheduled, f)
	p.mu.Unlock()

	if !ok || f.State() != StatePending {
		// Canceled or already failed by shutdown
		return
	}

	if err := p.enqueue(context.Background(), f); err != nil {
		if f.fail(err) {
			p.metrics.Counter(metrickeys.TaskRejected, metrics.Tags{metrickeys.Reason: reason(err)}, 1)
		}
	}
}

func (p *Pool) unschedule(f *Future) {
	p.mu.Lock()
	t, ok := p.scheduled[f]
	delete(p.scheduled, f)
	p.mu.Unlock()

	if ok {
		t.Stop()
	}
}

func (p *Pool) worker(id int) {
	defer p.workersWg.Done()

	ctx := p.ctx
	if p.options.WorkerContext != nil {
		ctx = p.options.WorkerContext(ctx)
	}

	logger := p.logger.With(log.WorkerKey, id)

	for f := range p.queue.tasks {
		p.removePending(f)
		p.run(ctx, logger, f)
	}
}

func (p *Pool) run(ctx context.Context, logger *slog.Logger, f *Future) {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !f.start(cancel) {
		// Canceled while waiting in the queue, the task never runs
		p.metrics.Counter(metrickeys.TaskCanceled, metrics.Tags{metrickeys.Reason: "canceled"}, 1)
		logger.DebugContext(ctx, "skipping task", log.TaskIDKey, f.ID(), log.TaskStateKey, f.State())
		return
	}

	p.active.Inc()
	defer p.active.Dec()

	p.metrics.Timing(metrickeys.TaskDelay, nil, p.clock.Since(f.queuedAt))

	timer := im.NewTimer(p.metrics, p.clock, metrickeys.TaskDuration, nil)
	result, err := p.execute(taskCtx, logger, f)
	elapsed := timer.Stop()

	outcome := "success"
	if err != nil {
		outcome = "error"
		p.failed.Inc()

		var perr *PanicError
		if errors.As(err, &perr) {
			outcome = "panic"
		}
	} else {
		p.completed.Inc()
	}

	p.metrics.Counter(metrickeys.TaskCompleted, metrics.Tags{metrickeys.Outcome: outcome}, 1)
	p.metrics.Distribution(metrickeys.PoolUtilization, nil, float64(p.active.Load())/float64(p.options.Workers))

	if logger.Enabled(ctx, slog.LevelDebug) {
		logger.DebugContext(ctx, "task finished",
			log.TaskIDKey, f.ID(),
			log.DurationKey, elapsed.Milliseconds(),
			"outcome", outcome,
		)
	}

	f.complete(result, err)
}

func (p *Pool) execute(ctx context.Context, logger *slog.Logger, f *Future) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			perr := newPanicError(r)
			logger.ErrorContext(ctx, "task panicked", log.TaskIDKey, f.ID(), "error", perr, "stack", perr.Stack())

			result, err = nil, perr
		}
	}()

	return f.task(ctx)
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrShutdown):
		return "shutdown"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context"
	default:
		return fmt.Sprintf("%T", err)
	}
}
