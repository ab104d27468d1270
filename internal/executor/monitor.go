package executor

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPollInterval is the progress polling cadence
const DefaultPollInterval = 500 * time.Millisecond

// ProgressFunc receives monotonically increasing (done, total) counts
type ProgressFunc func(done, total int)

// ProgressMonitor polls a batch and reports progress. It only reads handle
// state, so any number of monitors may watch the same batch.
type ProgressMonitor struct {
	logger *slog.Logger
}

// NewProgressMonitor creates a monitor. A nil logger uses slog.Default.
func NewProgressMonitor(logger *slog.Logger) *ProgressMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressMonitor{logger: logger}
}

// Run polls batch every interval and calls fn whenever the number of resolved
// handles has grown since the last call. It returns when every handle has
// resolved, or with ctx.Err() when ctx ends first. An empty batch returns
// immediately without calling fn. A tick that finds no change is skipped.
func (m *ProgressMonitor) Run(ctx context.Context, batch *Batch, fn ProgressFunc, interval time.Duration) error {
	total := batch.Len()
	if total == 0 {
		return nil
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	reported := 0
	poll := func() bool {
		done := batch.Done()
		if done > reported {
			reported = done
			if fn != nil {
				fn(done, total)
			}
		}
		return done == total
	}

	if poll() {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("progress monitor stopped", "batch_id", batch.ID, "done", reported, "total", total)
			return ctx.Err()
		case <-ticker.C:
			if poll() {
				return nil
			}
		}
	}
}

// Watch runs the monitor in its own goroutine and returns a channel that is
// closed when it stops.
func (m *ProgressMonitor) Watch(ctx context.Context, batch *Batch, fn ProgressFunc, interval time.Duration) <-chan struct{} {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		m.Run(ctx, batch, fn, interval)
	}()
	return stopped
}
