package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/metrics"
	"github.com/aryankumar/sfs/internal/util"
)

// runFunc executes one unit and reports how many attempts it took
type runFunc func(ctx context.Context, unit forecast.WorkUnit) (forecast.UnitResult, int, error)

// Pool is a fixed set of workers draining a queue of units for one batch.
// Every accepted unit's handle resolves exactly once, including units that
// never start because the batch was cancelled.
type Pool struct {
	// backend names the owner in logs and metrics
	backend string

	// workers is the number of concurrent workers
	workers int

	// jobs is buffered to the batch size so Submit never blocks
	jobs chan job

	// mu serialises Submit and Close on the jobs channel
	mu sync.Mutex

	run     runFunc
	logger  *slog.Logger
	metrics *metrics.Metrics

	submitted atomic.Int32
	closed    atomic.Bool
	wg        sync.WaitGroup
}

// job pairs a unit with the handle it resolves
type job struct {
	unit   forecast.WorkUnit
	handle *Handle
}

// newPool starts workers goroutines that run units under ctx. capacity is the
// number of units the pool will accept.
func newPool(ctx context.Context, backend string, workers, capacity int, run runFunc, opts backendOptions) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if capacity < 0 {
		capacity = 0
	}

	p := &Pool{
		backend: backend,
		workers: workers,
		jobs:    make(chan job, capacity),
		run:     run,
		logger:  opts.logger,
		metrics: opts.metrics,
	}

	p.logger.Debug("starting workers", "count", workers, "capacity", capacity)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	return p
}

// Submit queues a unit. It fails when the unit is invalid, the pool is
// closed or the pool is already holding its full capacity.
func (p *Pool) Submit(unit forecast.WorkUnit) (*Handle, error) {
	if err := unit.Validate(); err != nil {
		return nil, util.NewSubmissionError(p.backend, unit.Key.String(), err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return nil, util.NewSubmissionError(p.backend, unit.Key.String(), fmt.Errorf("pool is closed, cannot submit new units"))
	}

	h := newHandle(unit.Key, int(p.submitted.Load()))
	select {
	case p.jobs <- job{unit: unit, handle: h}:
	default:
		return nil, util.NewSubmissionError(p.backend, unit.Key.String(),
			fmt.Errorf("pool capacity of %d units exceeded", cap(p.jobs)))
	}

	total := p.submitted.Add(1)
	p.metrics.IncSubmitted(p.backend)
	p.logger.Debug("unit submitted", "group", unit.Key.String(), "total_units", total)
	return h, nil
}

// Close stops accepting units. Workers exit once the queue is drained.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.CompareAndSwap(false, true) {
		close(p.jobs)
	}
}

// Wait blocks until every worker has exited. Call Close first.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// WorkerCount returns the number of workers in the pool
func (p *Pool) WorkerCount() int {
	return p.workers
}

// worker resolves queued handles until the queue is closed and empty
func (p *Pool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	p.logger.Debug("worker started", "worker_id", workerID)

	for j := range p.jobs {
		p.execute(ctx, workerID, j)
	}

	p.logger.Debug("worker finished (no more units)", "worker_id", workerID)
}

// execute runs one unit and resolves its handle
func (p *Pool) execute(ctx context.Context, workerID int, j job) {
	key := j.unit.Key.String()

	// Units still queued when the batch is cancelled are not started
	if err := ctx.Err(); err != nil {
		j.handle.resolve(forecast.UnitResult{}, util.WrapUnitError(key, 0, fmt.Errorf("unit not started: %w", err)), 0, 0)
		p.metrics.ObserveResolved(p.backend, Failed.String(), 0)
		return
	}

	p.metrics.AddInFlight(p.backend, 1)
	startTime := time.Now()

	result, attempts, err := p.safeRun(ctx, j.unit)

	duration := time.Since(startTime)
	p.metrics.AddInFlight(p.backend, -1)

	if err != nil {
		err = util.WrapUnitError(key, attempts, err)
		p.logger.Warn("unit failed",
			"worker_id", workerID,
			"group", key,
			"attempts", attempts,
			"error", err,
			"duration", duration)
	} else {
		p.logger.Debug("unit completed",
			"worker_id", workerID,
			"group", key,
			"model", result.Metrics.ModelType,
			"duration", duration)
	}

	j.handle.resolve(result, err, attempts, duration)
	p.metrics.ObserveResolved(p.backend, j.handle.State().String(), duration)
}

// safeRun converts a panicking unit into a unit failure
func (p *Pool) safeRun(ctx context.Context, unit forecast.WorkUnit) (result forecast.UnitResult, attempts int, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = forecast.UnitResult{}, fmt.Errorf("unit panicked: %v", r)
			if attempts == 0 {
				attempts = 1
			}
		}
	}()
	return p.run(ctx, unit)
}
