package batcher

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"github.com/bwmarrin/snowflake"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bft-labs/mutbatch/pkg/log"
	"github.com/bft-labs/mutbatch/pkg/mutation"
	"github.com/bft-labs/mutbatch/pkg/transport"
)

// Batcher groups single-row writes into bounded batches and sends them
// through a transport.BulkApplier. It is safe for concurrent use.
type Batcher struct {
	applier transport.BulkApplier
	opts    Options
	logger  log.Logger
	ids     *snowflake.Node

	mu                 sync.Mutex
	pending            []*pendingWrite
	cur                *batch
	outstandingBytes   int64
	outstandingBatches int
	live               map[snowflake.ID]*batch
}

// Stats is a point-in-time view of a Batcher.
type Stats struct {
	PendingWrites         int
	OutstandingBytes      int64
	OutstandingBatches    int
	LiveBatches           int
	CurrentBatchBytes     int64
	CurrentBatchMutations int
}

// New creates a Batcher sending through applier.
func New(applier transport.BulkApplier, opts Options, logger log.Logger) (*Batcher, error) {
	if applier == nil {
		return nil, fmt.Errorf("%w: applier is required", ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	ids, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("create batch id generator: %w", err)
	}
	return &Batcher{
		applier: applier,
		opts:    opts,
		logger:  log.OrNoop(logger).With(log.String("component", "batcher")),
		ids:     ids,
		cur:     newBatch(),
		live:    make(map[snowflake.ID]*batch),
	}, nil
}

// send is a flushed batch waiting to be handed to the applier.
type send struct {
	b       *batch
	entries []*bigtablepb.MutateRowsRequest_Entry
}

type completion struct {
	fn  func(error)
	err error
}

type ignoredReport struct {
	id    snowflake.ID
	index int
}

// deferred collects work decided under the lock and run after it is released.
type deferred struct {
	sends       []send
	completions []completion
	admissions  []func()
	ignored     []ignoredReport
}

// Submit hands m to the Batcher. onComplete receives the write's outcome
// exactly once. onAdmit fires exactly once, when the write has been copied
// into a batch or rejected; until then the caller should hold off. Either
// callback may be nil. Callbacks never run with the Batcher locked and may
// call Submit.
func (b *Batcher) Submit(m mutation.SingleRowMutation, onComplete func(error), onAdmit func()) *Handle {
	h := newHandle()
	w := newPendingWrite(m,
		func(err error) {
			h.err = err
			if onComplete != nil {
				onComplete(err)
			}
			close(h.done)
		},
		func() {
			if onAdmit != nil {
				onAdmit()
			}
			close(h.admitted)
		},
	)
	writesTotal.WithLabelValues("submitted").Inc()

	b.mu.Lock()
	if err := b.validate(w); err != nil {
		b.mu.Unlock()
		w.entry = nil
		writesTotal.WithLabelValues("rejected").Inc()
		w.onComplete(err)
		w.onAdmit()
		return h
	}
	// Once writes are queued, new ones queue behind them.
	if len(b.pending) > 0 || !b.hasSpaceFor(w) {
		b.pending = append(b.pending, w)
		pendingWritesGauge.Inc()
		b.mu.Unlock()
		return h
	}

	var d deferred
	b.admit(w)
	b.flushIfPossible(&d)
	b.mu.Unlock()

	d.admissions = append(d.admissions, w.onAdmit)
	b.run(&d)
	return h
}

// Apply submits m and waits for its outcome.
func (b *Batcher) Apply(ctx context.Context, m mutation.SingleRowMutation) error {
	return b.Submit(m, nil, nil).Wait(ctx)
}

// Stats returns current counters.
func (b *Batcher) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		PendingWrites:         len(b.pending),
		OutstandingBytes:      b.outstandingBytes,
		OutstandingBatches:    b.outstandingBatches,
		LiveBatches:           len(b.live),
		CurrentBatchBytes:     b.cur.size,
		CurrentBatchMutations: b.cur.count,
	}
}

func (b *Batcher) validate(w *pendingWrite) error {
	switch {
	case w.count == 0:
		return status.Error(codes.InvalidArgument, "mutation for row has no cell mutations")
	case w.count > b.opts.MaxMutationsPerBatch:
		return status.Errorf(codes.InvalidArgument,
			"too many mutations in row: %d exceeds the limit of %d per batch", w.count, b.opts.MaxMutationsPerBatch)
	case w.size > b.opts.MaxBytesPerBatch:
		return status.Errorf(codes.InvalidArgument,
			"row mutation too large: %d bytes exceeds the limit of %d bytes per batch", w.size, b.opts.MaxBytesPerBatch)
	}
	return nil
}

// hasSpaceFor must be called with b.mu held.
func (b *Batcher) hasSpaceFor(w *pendingWrite) bool {
	return b.outstandingBytes+w.size <= b.opts.MaxOutstandingBytes &&
		b.cur.size+w.size <= b.opts.MaxBytesPerBatch &&
		b.cur.count+w.count <= b.opts.MaxMutationsPerBatch
}

// admit must be called with b.mu held and space confirmed.
func (b *Batcher) admit(w *pendingWrite) {
	b.outstandingBytes += w.size
	outstandingBytesGauge.Add(float64(w.size))
	b.cur.add(w)
	w.entry = nil
	writesTotal.WithLabelValues("admitted").Inc()
}

// flushIfPossible must be called with b.mu held.
func (b *Batcher) flushIfPossible(d *deferred) bool {
	if b.cur.empty() || b.outstandingBatches >= b.opts.MaxBatches {
		return false
	}
	b.outstandingBatches++
	outstandingBatchesGauge.Inc()

	bt := b.cur
	bt.id = b.ids.Generate()
	b.live[bt.id] = bt
	b.cur = newBatch()

	flushedBatchesTotal.Inc()
	batchMutations.Observe(float64(bt.count))
	batchBytes.Observe(float64(bt.size))

	d.sends = append(d.sends, send{b: bt, entries: bt.entries})
	bt.entries = nil
	return true
}

// tryAdmit must be called with b.mu held.
func (b *Batcher) tryAdmit(d *deferred) {
	for {
		for len(b.pending) > 0 && b.hasSpaceFor(b.pending[0]) {
			w := b.pending[0]
			b.pending[0] = nil
			b.pending = b.pending[1:]
			pendingWritesGauge.Dec()
			b.admit(w)
			d.admissions = append(d.admissions, w.onAdmit)
		}
		if !b.flushIfPossible(d) {
			return
		}
	}
}

// run performs deferred work. b.mu must not be held.
func (b *Batcher) run(d *deferred) {
	for _, s := range d.sends {
		b.dispatch(s)
	}
	for _, r := range d.ignored {
		b.logger.Warn("ignoring report for unknown or resolved index",
			log.String("batch_id", r.id.String()),
			log.Int("index", r.index),
		)
	}
	for _, c := range d.completions {
		c.fn(c.err)
	}
	for _, a := range d.admissions {
		a()
	}
}

func (b *Batcher) dispatch(s send) {
	bt := s.b
	b.logger.Debug("flushing batch",
		log.String("batch_id", bt.id.String()),
		log.Int("entries", len(s.entries)),
	)
	b.applier.AsyncBulkApply(context.Background(), s.entries, transport.Callbacks{
		OnSuccess: func(indices []int) {
			b.onSuccess(bt, indices)
		},
		OnFailure: func(failed []transport.FailedMutation) {
			b.onFailure(bt, failed, "failure")
		},
		OnAttemptFinished: func(error) {
			b.onAttemptFinished(bt)
		},
		OnTerminalFailure: func(failed []transport.FailedMutation, err error) {
			b.logger.Warn("batch failed terminally",
				log.String("batch_id", bt.id.String()),
				log.Int("failed", len(failed)),
				log.Err(err),
			)
			b.onFailure(bt, failed, "terminal")
		},
	})
}

// resolve must be called with b.mu held. It returns the bytes freed.
func (b *Batcher) resolve(bt *batch, index int, err error, d *deferred) int64 {
	m, ok := bt.resolve(index)
	if !ok {
		ignoredReportsTotal.Inc()
		d.ignored = append(d.ignored, ignoredReport{id: bt.id, index: index})
		return 0
	}
	d.completions = append(d.completions, completion{fn: m.onComplete, err: err})
	return m.size
}

// release must be called with b.mu held.
func (b *Batcher) release(bt *batch, freed int64) {
	b.outstandingBytes -= freed
	outstandingBytesGauge.Sub(float64(freed))
	if bt.done() {
		delete(b.live, bt.id)
	}
}

func (b *Batcher) onSuccess(bt *batch, indices []int) {
	var d deferred
	b.mu.Lock()
	var freed int64
	for _, i := range indices {
		freed += b.resolve(bt, i, nil, &d)
	}
	completedTotal.WithLabelValues("success").Add(float64(len(d.completions)))
	b.release(bt, freed)
	b.tryAdmit(&d)
	b.mu.Unlock()

	b.run(&d)
}

func (b *Batcher) onFailure(bt *batch, failed []transport.FailedMutation, outcome string) {
	var d deferred
	b.mu.Lock()
	var freed int64
	for _, f := range failed {
		freed += b.resolve(bt, f.Index, f.Err, &d)
	}
	completedTotal.WithLabelValues(outcome).Add(float64(len(d.completions)))
	b.release(bt, freed)
	b.tryAdmit(&d)
	b.mu.Unlock()

	b.run(&d)
}

func (b *Batcher) onAttemptFinished(bt *batch) {
	var d deferred
	b.mu.Lock()
	if bt.attemptFinished {
		b.mu.Unlock()
		return
	}
	bt.attemptFinished = true
	b.outstandingBatches--
	outstandingBatchesGauge.Dec()
	b.release(bt, 0)
	b.flushIfPossible(&d)
	b.tryAdmit(&d)
	b.mu.Unlock()

	b.run(&d)
}
