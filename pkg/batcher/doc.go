// Package batcher implements an admission-controlled write batcher.
//
// A Batcher accepts single-row mutations from any number of goroutines,
// packs them into batches bounded by mutation count and bytes, and sends
// each batch through a transport.BulkApplier. Four limits bound its memory
// and concurrency:
//
//   - MaxMutationsPerBatch and MaxBytesPerBatch bound one batch.
//   - MaxBatches bounds batches handed to the transport whose first
//     attempt has not finished.
//   - MaxOutstandingBytes bounds bytes admitted and not yet resolved.
//
// Submit never blocks. A write that does not fit is queued, and its
// admission callback is delayed until capacity frees up; that delay is the
// backpressure signal. Every write gets exactly one admission and exactly
// one completion callback, including writes rejected up front because they
// are empty or could never fit a batch.
//
// # Usage
//
//	b, err := batcher.New(applier, batcher.DefaultOptions(), logger)
//	if err != nil {
//	    return err
//	}
//
//	m := mutation.NewSingleRowMutation("user#1",
//	    mutation.SetCell("cf", "name", mutation.ServerTime, []byte("ada")))
//	h := b.Submit(m, func(err error) {
//	    // outcome
//	}, nil)
//	<-h.Admitted() // safe to produce the next write
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package batcher
