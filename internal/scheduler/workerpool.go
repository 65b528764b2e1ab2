package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	taskcron "github.com/jobs/taskcore/internal/cron"
	"github.com/jobs/taskcore/internal/registry"
	"github.com/jobs/taskcore/internal/storage"
	"github.com/jobs/taskcore/internal/task"
)

// pool is the bounded worker pool of spec.md §4.E. It owns in_flight
// admission accounting, per-task timeout enforcement via cooperative
// cancellation, and the post-execution transition (complete, cron
// reschedule, or retry/permanent-failure) via the adapter.
type pool struct {
	adapter  storage.Adapter
	registry *registry.Registry
	logger   *zap.Logger

	sem      chan struct{}
	inFlight int64

	mu        sync.Mutex
	wg        sync.WaitGroup
	stopped   bool
	timeouts  map[uint64]time.Duration // task id -> configured timeout, while in flight
}

func newPool(adapter storage.Adapter, reg *registry.Registry, maxConcurrent int, logger *zap.Logger) *pool {
	return &pool{
		adapter:  adapter,
		registry: reg,
		logger:   logger,
		sem:      make(chan struct{}, maxConcurrent),
		timeouts: make(map[uint64]time.Duration),
	}
}

// InFlight returns the number of tasks currently dispatched, used by the
// scheduler to compute admission (spec.md §4.D step 1).
func (p *pool) InFlight() int {
	return int(atomic.LoadInt64(&p.inFlight))
}

// Dispatch hands a claimed task to a free worker goroutine. The caller
// (the scheduler) is responsible for never dispatching more than the pool
// has capacity for within one tick; the semaphore below is defense in
// depth, not the primary admission mechanism.
func (p *pool) Dispatch(t *task.Task) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	p.sem <- struct{}{}
	atomic.AddInt64(&p.inFlight, 1)
	p.mu.Lock()
	p.timeouts[t.ID] = time.Duration(t.Timeout) * time.Second
	p.mu.Unlock()

	go func() {
		defer func() {
			<-p.sem
			atomic.AddInt64(&p.inFlight, -1)
			p.mu.Lock()
			delete(p.timeouts, t.ID)
			p.mu.Unlock()
			p.wg.Done()
		}()
		p.execute(t)
	}()
}

// LargestInFlightTimeout returns the largest configured timeout among
// currently in-flight tasks, or 0 if none are in flight. Used to size the
// shutdown grace window (SPEC_FULL.md §9).
func (p *pool) LargestInFlightTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	var max time.Duration
	for _, d := range p.timeouts {
		if d > max {
			max = d
		}
	}
	return max
}

// Stop prevents new dispatch and waits for in-flight executions to finish,
// up to grace. Tasks still running when grace elapses are left running;
// they are recovered on the next start() (spec.md §4.H).
func (p *pool) Stop(grace time.Duration) {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		p.logger.Warn("shutdown grace window elapsed with tasks still in flight",
			zap.Int("in_flight", p.InFlight()))
	}
}

// execute runs one claimed task to its terminal (for this attempt) outcome
// and persists the result. Panics in handler code are caught and treated
// as handler errors so one bad handler cannot take down the pool
// (spec.md §7).
func (p *pool) execute(t *task.Task) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(t.Timeout)*time.Second)
	defer cancel()

	handler := p.registry.Lookup(t.Name)
	if handler == nil {
		p.logger.Warn("no handler registered", zap.String("name", t.Name), zap.Uint64("task_id", t.ID))
		p.fail(t, fmt.Sprintf("no handler for %s", t.Name), true)
		return
	}

	deadline, _ := ctx.Deadline()
	deadlineFn := func() bool { return time.Now().After(deadline) }

	hctx := registry.NewContext(ctx, t.ID, t.Name, t.Payload, t.Priority, deadlineFn)

	type outcome struct {
		result any
		err    error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- outcome{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		res, err := handler(hctx)
		resultCh <- outcome{result: res, err: err}
	}()

	// Cancellation is cooperative (spec.md §5): ctx is cancelled the
	// instant the deadline passes, but a handler that never selects on
	// ctx.Done() or calls CheckTimeout keeps running in its own goroutine
	// until it returns naturally. Either way the task is marked timed out
	// here; the goroutine's eventual result is simply discarded.
	var out outcome
	select {
	case out = <-resultCh:
	case <-ctx.Done():
		out = outcome{err: task.ErrTimeout}
	}

	if out.err != nil {
		p.handleFailure(t, out.err)
		return
	}
	p.handleSuccess(t, out.result)
}

func (p *pool) handleSuccess(t *task.Task, result any) {
	ctx := context.Background()
	payload, err := encodeResult(result)
	if err != nil {
		p.logger.Error("failed to encode task result", zap.Uint64("task_id", t.ID), zap.Error(err))
	}

	if t.Type == task.TypeCron {
		next, err := taskcron.Next(t.CronExpr, time.Now().Unix())
		if err != nil {
			p.logger.Error("failed to compute next cron occurrence", zap.Uint64("task_id", t.ID), zap.Error(err))
			p.fail(t, err.Error(), true)
			return
		}
		if err := p.adapter.Complete(ctx, t.ID, payload, true, next); err != nil {
			p.logger.Error("failed to reschedule cron task", zap.Uint64("task_id", t.ID), zap.Error(err))
		}
		return
	}

	if err := p.adapter.Complete(ctx, t.ID, payload, false, 0); err != nil {
		p.logger.Error("failed to mark task completed", zap.Uint64("task_id", t.ID), zap.Error(err))
	}
}

func (p *pool) handleFailure(t *task.Task, execErr error) {
	// Cron tasks never accumulate retries (spec.md invariant 1): a failed
	// occurrence simply fires again on its next schedule.
	if t.Type == task.TypeCron {
		next, err := taskcron.Next(t.CronExpr, time.Now().Unix())
		if err != nil {
			p.logger.Error("failed to compute next cron occurrence after failure",
				zap.Uint64("task_id", t.ID), zap.Error(err))
			next = time.Now().Unix() + 60
		}
		ctx := context.Background()
		if err := p.adapter.Fail(ctx, t.ID, execErr.Error(), task.StatusPending, next); err != nil {
			p.logger.Error("failed to reschedule failed cron task", zap.Uint64("task_id", t.ID), zap.Error(err))
		}
		return
	}

	d := decide(t.RetryCount, t.MaxRetries, time.Duration(t.RetryInterval)*time.Second)
	if d.permanent {
		p.fail(t, execErr.Error(), true)
		return
	}

	next := time.Now().Add(d.delay).Unix()
	// next_run_time is monotonic non-decreasing across retries of the
	// same task (spec.md invariant 5).
	if next < t.NextRunTime {
		next = t.NextRunTime
	}
	ctx := context.Background()
	if err := p.adapter.Fail(ctx, t.ID, execErr.Error(), task.StatusPending, next); err != nil {
		p.logger.Error("failed to reschedule task for retry", zap.Uint64("task_id", t.ID), zap.Error(err))
	}
}

func (p *pool) fail(t *task.Task, msg string, permanent bool) {
	ctx := context.Background()
	status := task.StatusPermanentlyFailed
	if !permanent {
		status = task.StatusPending
	}
	if err := p.adapter.Fail(ctx, t.ID, msg, status, time.Now().Unix()); err != nil {
		p.logger.Error("failed to persist failure", zap.Uint64("task_id", t.ID), zap.Error(err))
	}
}
