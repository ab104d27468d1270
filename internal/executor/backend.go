package executor

import (
	"context"
	"log/slog"

	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/metrics"
)

// Backend executes work units. Each Map call opens one Session sized for the
// batch, so pool size and concurrency ceiling are fixed per batch.
type Backend interface {
	// Name identifies the backend in logs, metrics and the run ledger
	Name() string

	// Open prepares the backend for size units. An unreachable backend is
	// reported here as a submission error, before any unit is accepted.
	Open(ctx context.Context, batchID string, size int) (Session, error)
}

// Session accepts the units of one batch.
type Session interface {
	// Submit queues a unit and returns its handle without waiting for it to
	// run. A rejected unit yields a *util.SubmissionError.
	Submit(unit forecast.WorkUnit) (*Handle, error)

	// Close signals that no more units follow. Queued units still run.
	Close()
}

// Option configures a backend
type Option func(*backendOptions)

type backendOptions struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// WithLogger sets the backend logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *backendOptions) {
		o.logger = logger
	}
}

// WithMetrics records unit activity on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *backendOptions) {
		o.metrics = m
	}
}

func applyOptions(opts []Option) backendOptions {
	o := backendOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
