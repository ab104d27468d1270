package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"

	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/invoke"
	"github.com/aryankumar/sfs/internal/util"
)

// MaxRemoteConcurrency is the account-level ceiling on concurrent remote
// invocations. Configured ceilings are clamped to it.
const MaxRemoteConcurrency = 1000

// RemoteConfig configures a RemoteBackend
type RemoteConfig struct {
	// FunctionName is the remote function that computes one unit
	FunctionName string

	// MaxWorkers caps the per-batch worker count
	MaxWorkers int

	// Ceiling caps concurrent invocations across all batches of this backend
	Ceiling int

	// RetryLimit is the number of retries after a transient failure
	RetryLimit int

	// InitialBackoff and MaxBackoff bound the exponential retry delay
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRemoteConfig returns the defaults used by the CLI
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		FunctionName:   invoke.DefaultFunctionName,
		MaxWorkers:     MaxRemoteConcurrency,
		Ceiling:        MaxRemoteConcurrency,
		RetryLimit:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// RemoteBackend sends each unit to a remote function, one invocation per
// attempt. A batch gets min(MaxWorkers, size, Ceiling) workers and every
// invocation holds a slot of a backend-wide semaphore, so the ceiling also
// holds when batches overlap.
type RemoteBackend struct {
	invoker invoke.Invoker
	cfg     RemoteConfig
	quota   *semaphore.Weighted
	opts    backendOptions
}

// NewRemoteBackend validates cfg and creates the backend
func NewRemoteBackend(invoker invoke.Invoker, cfg RemoteConfig, opts ...Option) (*RemoteBackend, error) {
	if invoker == nil {
		return nil, fmt.Errorf("%w: remote backend requires an invoker", util.ErrInvalidConfig)
	}
	if cfg.FunctionName == "" {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, util.NewValidationError("remote.functionName", nil, "is required"))
	}
	if cfg.RetryLimit < 0 {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidConfig, util.NewValidationError("retryLimit", cfg.RetryLimit, "must not be negative"))
	}
	if cfg.Ceiling <= 0 || cfg.Ceiling > MaxRemoteConcurrency {
		cfg.Ceiling = MaxRemoteConcurrency
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = cfg.Ceiling
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	o := applyOptions(opts)
	o.logger = o.logger.With("backend", "remote", "function", cfg.FunctionName)

	return &RemoteBackend{
		invoker: invoker,
		cfg:     cfg,
		quota:   semaphore.NewWeighted(int64(cfg.Ceiling)),
		opts:    o,
	}, nil
}

// Name returns "remote"
func (b *RemoteBackend) Name() string {
	return "remote"
}

// Config returns the effective configuration after clamping
func (b *RemoteBackend) Config() RemoteConfig {
	return b.cfg
}

// Open checks the function is reachable, when the invoker supports it, and
// starts a pool sized for the batch.
func (b *RemoteBackend) Open(ctx context.Context, batchID string, size int) (Session, error) {
	if pinger, ok := b.invoker.(invoke.Pinger); ok {
		if err := pinger.Ping(ctx, b.cfg.FunctionName); err != nil {
			return nil, util.NewSubmissionError(b.Name(), "", fmt.Errorf("%w: %v", util.ErrBackendUnavailable, err))
		}
	}

	opts := b.opts
	opts.logger = opts.logger.With("batch_id", batchID)

	workers := min(b.cfg.MaxWorkers, size, b.cfg.Ceiling)
	opts.logger.Debug("opening remote session", "workers", workers, "units", size)
	return newPool(ctx, b.Name(), workers, size, b.runUnit(opts), opts), nil
}

// runUnit returns the per-unit routine bound to the session logger
func (b *RemoteBackend) runUnit(opts backendOptions) runFunc {
	return func(ctx context.Context, unit forecast.WorkUnit) (forecast.UnitResult, int, error) {
		payload, err := invoke.EncodeRequest(unit)
		if err != nil {
			return forecast.UnitResult{}, 0, err
		}

		attempts := 0
		var out []byte
		operation := func() error {
			if err := b.quota.Acquire(ctx, 1); err != nil {
				return backoff.Permanent(err)
			}
			attempts++
			resp, err := b.invoker.Invoke(ctx, b.cfg.FunctionName, payload)
			b.quota.Release(1)

			if err == nil {
				out = resp
				return nil
			}
			if util.IsTransient(err) && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}

		notify := func(err error, next time.Duration) {
			opts.metrics.IncRetries(b.Name())
			opts.logger.Debug("retrying invocation",
				"group", unit.Key.String(),
				"attempt", attempts,
				"next_in", next,
				"error", err)
		}

		if err := backoff.RetryNotify(operation, b.newBackOff(ctx), notify); err != nil {
			return forecast.UnitResult{}, attempts, err
		}

		result, err := invoke.DecodeResponse(out)
		return result, attempts, err
	}
}

// newBackOff bounds retries to RetryLimit with exponential delays
func (b *RemoteBackend) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = b.cfg.InitialBackoff
	exp.MaxInterval = b.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(b.cfg.RetryLimit)), ctx)
}
