package executor

import (
	"context"
	"time"

	"github.com/aryankumar/sfs/internal/forecast"
)

// Batch is the set of handles produced by one Map call, in submission order.
// The handle list is fixed at construction.
type Batch struct {
	// ID correlates logs, exports and the run ledger
	ID string

	// Backend is the name of the backend that executes the batch
	Backend string

	// StartedAt is when Map accepted the batch
	StartedAt time.Time

	handles []*Handle
	ctx     context.Context
	cancel  context.CancelFunc
}

func newBatch(ctx context.Context, cancel context.CancelFunc, id, backend string, handles []*Handle) *Batch {
	return &Batch{
		ID:        id,
		Backend:   backend,
		StartedAt: time.Now(),
		handles:   handles,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Handles returns a copy of the handle list in submission order
func (b *Batch) Handles() []*Handle {
	out := make([]*Handle, len(b.handles))
	copy(out, b.handles)
	return out
}

// Handle returns the i-th handle
func (b *Batch) Handle(i int) *Handle {
	return b.handles[i]
}

// Len returns the number of handles
func (b *Batch) Len() int {
	return len(b.handles)
}

// Keys returns the unit keys in submission order
func (b *Batch) Keys() []forecast.GroupKey {
	keys := make([]forecast.GroupKey, len(b.handles))
	for i, h := range b.handles {
		keys[i] = h.Key()
	}
	return keys
}

// Done counts handles that are no longer pending. It never blocks.
func (b *Batch) Done() int {
	n := 0
	for _, h := range b.handles {
		if h.Resolved() {
			n++
		}
	}
	return n
}

// Complete reports whether every handle has resolved
func (b *Batch) Complete() bool {
	return b.Done() == len(b.handles)
}

// Cancel stops the batch. Queued units are not started, in-flight units see
// a cancelled context and Drain returns with what has resolved.
func (b *Batch) Cancel() {
	b.cancel()
}

// Context is cancelled when the batch is cancelled or its parent ends
func (b *Batch) Context() context.Context {
	return b.ctx
}

// Cancelled reports whether the batch context has ended
func (b *Batch) Cancelled() bool {
	return b.ctx.Err() != nil
}
