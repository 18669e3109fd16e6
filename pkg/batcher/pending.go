package batcher

import (
	"cloud.google.com/go/bigtable/apiv2/bigtablepb"

	"github.com/bft-labs/mutbatch/pkg/mutation"
)

// pendingWrite is a submitted write not yet admitted or rejected.
// entry is cleared once the write leaves the Batcher's hands.
type pendingWrite struct {
	entry      *bigtablepb.MutateRowsRequest_Entry
	size       int64
	count      int
	onComplete func(error)
	onAdmit    func()
}

func newPendingWrite(m mutation.SingleRowMutation, onComplete func(error), onAdmit func()) *pendingWrite {
	entry := m.Entry()
	return &pendingWrite{
		entry:      entry,
		size:       mutation.Size(entry),
		count:      m.Len(),
		onComplete: onComplete,
		onAdmit:    onAdmit,
	}
}
