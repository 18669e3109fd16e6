package transport

import (
	"context"

	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
)

// MaxMessageBytes is the largest MutateRows request the adapters send.
// Batchers must keep their per-batch byte limit at or below it.
const MaxMessageBytes = 256 << 20

// FailedMutation reports a permanent failure for one entry.
// Index is the entry's position in the slice given to AsyncBulkApply.
type FailedMutation struct {
	Index int
	Err   error
}

// Callbacks receive the outcome of an AsyncBulkApply call.
//
// OnSuccess and OnFailure may fire any number of times per attempt.
// OnAttemptFinished fires exactly once per attempt, after that attempt's
// chunk reports. OnTerminalFailure fires at most once, when retries stop,
// with every index not already resolved. Indices never change across
// attempts.
type Callbacks struct {
	OnSuccess         func(indices []int)
	OnFailure         func(failed []FailedMutation)
	OnAttemptFinished func(err error)
	OnTerminalFailure func(failed []FailedMutation, err error)
}

// withDefaults fills nil callbacks with no-ops.
func (c Callbacks) withDefaults() Callbacks {
	if c.OnSuccess == nil {
		c.OnSuccess = func([]int) {}
	}
	if c.OnFailure == nil {
		c.OnFailure = func([]FailedMutation) {}
	}
	if c.OnAttemptFinished == nil {
		c.OnAttemptFinished = func(error) {}
	}
	if c.OnTerminalFailure == nil {
		c.OnTerminalFailure = func([]FailedMutation, error) {}
	}
	return c
}

// BulkApplier sends a batch of row mutations.
//
// AsyncBulkApply must return without waiting on the network; outcomes are
// delivered through cb from the applier's own goroutines. Callbacks for one
// call are delivered sequentially.
type BulkApplier interface {
	AsyncBulkApply(ctx context.Context, entries []*bigtablepb.MutateRowsRequest_Entry, cb Callbacks)
}
