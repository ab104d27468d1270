package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/metrics"
	"github.com/aryankumar/sfs/internal/util"
)

// Executor fans work units out to a backend
type Executor struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an executor. A nil logger uses slog.Default; m may be nil.
func New(logger *slog.Logger, m *metrics.Metrics) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger, metrics: m}
}

// Map submits every unit to backend and returns the batch without waiting for
// any unit to run. Handles are in the same order as units. If the backend is
// unreachable or rejects a unit, Map cancels whatever was already queued and
// returns a *util.SubmissionError; no batch is returned in that case.
func (e *Executor) Map(ctx context.Context, units []forecast.WorkUnit, backend Backend) (*Batch, error) {
	if backend == nil {
		return nil, util.NewSubmissionError("none", "", fmt.Errorf("%w: no backend configured", util.ErrBackendUnavailable))
	}

	seen := make(map[forecast.GroupKey]struct{}, len(units))
	for _, u := range units {
		if _, dup := seen[u.Key]; dup {
			return nil, util.NewSubmissionError(backend.Name(), u.Key.String(), errors.New("duplicate group key"))
		}
		seen[u.Key] = struct{}{}
	}

	id := uuid.NewString()
	logger := e.logger.With("batch_id", id, "backend", backend.Name())
	batchCtx, cancel := context.WithCancel(ctx)

	if len(units) == 0 {
		logger.Debug("no units to submit")
		return newBatch(batchCtx, cancel, id, backend.Name(), nil), nil
	}

	session, err := backend.Open(batchCtx, id, len(units))
	if err != nil {
		cancel()
		logger.Error("backend unavailable", "error", err)
		return nil, asSubmissionError(backend.Name(), "", err)
	}

	handles := make([]*Handle, 0, len(units))
	for _, u := range units {
		h, err := session.Submit(u)
		if err != nil {
			cancel()
			session.Close()
			logger.Error("unit rejected", "group", u.Key.String(), "submitted", len(handles), "error", err)
			return nil, asSubmissionError(backend.Name(), u.Key.String(), err)
		}
		handles = append(handles, h)
	}
	session.Close()

	e.metrics.IncBatches(backend.Name())
	if pool, ok := session.(*Pool); ok {
		logger = logger.With("workers", pool.WorkerCount())
	}
	logger.Info("batch submitted", "units", len(handles))

	return newBatch(batchCtx, cancel, id, backend.Name(), handles), nil
}

func asSubmissionError(backend, key string, err error) error {
	var subErr *util.SubmissionError
	if errors.As(err, &subErr) {
		return err
	}
	return util.NewSubmissionError(backend, key, err)
}
