package batcher

import (
	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"github.com/bwmarrin/snowflake"
)

// writeMeta is what a batch keeps per admitted write until it resolves.
type writeMeta struct {
	size       int64
	onComplete func(error)
}

// batch accumulates admitted writes. After it is flushed the same value
// tracks completions for every attempt the transport makes.
type batch struct {
	id        snowflake.ID
	entries   []*bigtablepb.MutateRowsRequest_Entry
	size      int64
	count     int
	nextIndex int
	writes    map[int]writeMeta

	attemptFinished bool
}

func newBatch() *batch {
	return &batch{writes: make(map[int]writeMeta)}
}

func (b *batch) empty() bool {
	return b.count == 0
}

// add appends w and records its completion under the next index.
func (b *batch) add(w *pendingWrite) {
	b.entries = append(b.entries, w.entry)
	b.size += w.size
	b.count += w.count
	b.writes[b.nextIndex] = writeMeta{size: w.size, onComplete: w.onComplete}
	b.nextIndex++
}

// resolve removes index from the batch. ok is false for an index that was
// never assigned or has already resolved.
func (b *batch) resolve(index int) (writeMeta, bool) {
	m, ok := b.writes[index]
	if ok {
		delete(b.writes, index)
	}
	return m, ok
}

// done reports whether nothing more is expected for the batch.
func (b *batch) done() bool {
	return b.attemptFinished && len(b.writes) == 0
}
