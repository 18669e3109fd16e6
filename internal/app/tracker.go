package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/mutbatch/internal/domain"
	"github.com/bft-labs/mutbatch/internal/ports"
	"github.com/bft-labs/mutbatch/pkg/log"
)

// DefaultCheckpointEvery is the number of resolutions between checkpoint saves.
const DefaultCheckpointEvery = 1000

// slot is one tracked record.
type slot struct {
	end      int64
	resolved bool
	failed   bool
}

// Tracker follows records from submission to resolution and advances the
// checkpoint over the longest resolved prefix. Records resolve in any order.
type Tracker struct {
	repo   ports.StateRepository
	every  int
	logger log.Logger

	mu        sync.Mutex
	state     domain.State
	base      uint64
	window    []slot
	sinceSave int
	idle      chan struct{}

	saveMu    sync.Mutex
	savedOff  int64
	saveCount int
}

// NewTracker creates a tracker resuming from state. every <= 0 uses
// DefaultCheckpointEvery.
func NewTracker(state domain.State, repo ports.StateRepository, every int, logger log.Logger) *Tracker {
	if every <= 0 {
		every = DefaultCheckpointEvery
	}
	return &Tracker{
		repo:     repo,
		every:    every,
		logger:   log.OrNoop(logger),
		state:    state,
		idle:     make(chan struct{}, 1),
		savedOff: -1,
	}
}

// Add registers a record ending at end and returns its sequence number.
func (t *Tracker) Add(end int64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	seq := t.base + uint64(len(t.window))
	t.window = append(t.window, slot{end: end})
	return seq
}

// Resolve marks seq as finished. A nil err counts as success.
func (t *Tracker) Resolve(seq uint64, err error) {
	t.mu.Lock()
	if seq < t.base || seq-t.base >= uint64(len(t.window)) || t.window[seq-t.base].resolved {
		t.mu.Unlock()
		t.logger.Warn("ignoring resolution of unknown record", log.Uint64("seq", seq))
		return
	}
	t.window[seq-t.base] = slot{end: t.window[seq-t.base].end, resolved: true, failed: err != nil}

	var ok, failed int64
	for len(t.window) > 0 && t.window[0].resolved {
		s := t.window[0]
		if s.failed {
			failed++
		} else {
			ok++
		}
		t.state.Offset = s.end
		t.window = t.window[1:]
		t.base++
	}
	t.state.Advance(t.state.Offset, ok, failed)

	t.sinceSave++
	var snapshot *domain.State
	if t.sinceSave >= t.every {
		t.sinceSave = 0
		s := t.state
		snapshot = &s
	}
	if len(t.window) == 0 {
		select {
		case t.idle <- struct{}{}:
		default:
		}
	}
	t.mu.Unlock()

	if snapshot != nil {
		if err := t.save(context.Background(), *snapshot); err != nil {
			t.logger.Error("failed to save checkpoint", log.Err(err))
		}
	}
}

// Outstanding returns the number of records not yet covered by the checkpoint.
func (t *Tracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.window)
}

// State returns the current checkpoint.
func (t *Tracker) State() domain.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Wait blocks until every added record has resolved or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	for {
		t.mu.Lock()
		n := len(t.window)
		t.mu.Unlock()
		if n == 0 {
			return nil
		}
		select {
		case <-t.idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Flush saves the current checkpoint.
func (t *Tracker) Flush(ctx context.Context) error {
	return t.save(ctx, t.State())
}

// Saves returns how many checkpoints were written.
func (t *Tracker) Saves() int {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()
	return t.saveCount
}

// save writes s unless a checkpoint at or past its offset was already written.
func (t *Tracker) save(ctx context.Context, s domain.State) error {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()
	if s.Offset < t.savedOff {
		return nil
	}
	s.UpdatedAt = time.Now().UTC()
	if err := t.repo.Save(ctx, s); err != nil {
		return err
	}
	t.savedOff = s.Offset
	t.saveCount++
	return nil
}
