package executor

import (
	"context"
	"fmt"
	"runtime"

	"github.com/aryankumar/sfs/internal/forecast"
)

// LocalBackend runs units in-process on a worker pool of
// min(maxWorkers, batch size) goroutines.
type LocalBackend struct {
	compute    forecast.ComputeFunc
	maxWorkers int
	opts       backendOptions
}

// NewLocalBackend creates a local backend. maxWorkers <= 0 uses the number of CPUs.
func NewLocalBackend(compute forecast.ComputeFunc, maxWorkers int, opts ...Option) *LocalBackend {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	o := applyOptions(opts)
	o.logger = o.logger.With("backend", "local")

	return &LocalBackend{
		compute:    compute,
		maxWorkers: maxWorkers,
		opts:       o,
	}
}

// Name returns "local"
func (b *LocalBackend) Name() string {
	return "local"
}

// MaxWorkers returns the worker cap
func (b *LocalBackend) MaxWorkers() int {
	return b.maxWorkers
}

// Open starts a pool sized for the batch
func (b *LocalBackend) Open(ctx context.Context, batchID string, size int) (Session, error) {
	if b.compute == nil {
		return nil, fmt.Errorf("local backend has no compute function")
	}
	opts := b.opts
	opts.logger = opts.logger.With("batch_id", batchID)

	workers := min(b.maxWorkers, size)
	return newPool(ctx, b.Name(), workers, size, b.runUnit, opts), nil
}

func (b *LocalBackend) runUnit(ctx context.Context, unit forecast.WorkUnit) (forecast.UnitResult, int, error) {
	result, err := b.compute(ctx, unit)
	return result, 1, err
}
