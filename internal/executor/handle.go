package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aryankumar/sfs/internal/forecast"
)

// State is the lifecycle state of a Handle. It only moves from Pending to
// one of the two terminal states.
type State int32

const (
	Pending State = iota
	Completed
	Failed
)

// String returns the lowercase state name
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrPending is returned by Handle.Result while the handle is unresolved
var ErrPending = errors.New("handle is still pending")

// Handle is a single-writer future for one work unit. Any number of
// goroutines may read it; only the backend that created it resolves it.
type Handle struct {
	key   forecast.GroupKey
	index int

	state atomic.Int32
	done  chan struct{}
	once  sync.Once

	// Written once before state is published
	result   forecast.UnitResult
	err      error
	attempts int
	duration time.Duration
}

func newHandle(key forecast.GroupKey, index int) *Handle {
	return &Handle{
		key:   key,
		index: index,
		done:  make(chan struct{}),
	}
}

// resolve publishes the outcome. It reports false when the handle was
// already resolved; the first outcome wins.
func (h *Handle) resolve(result forecast.UnitResult, err error, attempts int, duration time.Duration) bool {
	resolved := false
	h.once.Do(func() {
		h.result = result
		h.err = err
		h.attempts = attempts
		h.duration = duration
		if err != nil {
			h.state.Store(int32(Failed))
		} else {
			h.state.Store(int32(Completed))
		}
		close(h.done)
		resolved = true
	})
	return resolved
}

// Key returns the group key of the unit
func (h *Handle) Key() forecast.GroupKey {
	return h.key
}

// Index returns the submission position of the unit within its batch
func (h *Handle) Index() int {
	return h.index
}

// State returns the current state without blocking
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Resolved reports whether the handle has left Pending
func (h *Handle) Resolved() bool {
	return h.State() != Pending
}

// Done returns a channel that is closed once the handle resolves
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the outcome of a resolved handle, or ErrPending
func (h *Handle) Result() (forecast.UnitResult, error) {
	if h.State() == Pending {
		return forecast.UnitResult{}, ErrPending
	}
	return h.result, h.err
}

// Err returns the failure of a resolved handle. It is nil while pending and
// for completed handles.
func (h *Handle) Err() error {
	if h.State() == Pending {
		return nil
	}
	return h.err
}

// Wait blocks until the handle resolves or ctx is done
func (h *Handle) Wait(ctx context.Context) (forecast.UnitResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return forecast.UnitResult{}, ctx.Err()
	}
}

// Attempts returns how many invocations the backend made for this unit
func (h *Handle) Attempts() int {
	if h.State() == Pending {
		return 0
	}
	return h.attempts
}

// Duration returns the time between the unit starting and resolving
func (h *Handle) Duration() time.Duration {
	if h.State() == Pending {
		return 0
	}
	return h.duration
}
