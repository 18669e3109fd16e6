package app

import (
	"context"
	"errors"

	"github.com/bft-labs/mutbatch/internal/domain"
	"github.com/bft-labs/mutbatch/internal/ports"
	"github.com/bft-labs/mutbatch/pkg/batcher"
	"github.com/bft-labs/mutbatch/pkg/log"
	"github.com/bft-labs/mutbatch/pkg/mutation"
)

// Submitter accepts row mutations. *batcher.Batcher satisfies it.
type Submitter interface {
	Submit(m mutation.SingleRowMutation, onComplete func(error), onAdmit func()) *batcher.Handle
}

// LoaderConfig contains configuration for the load loop.
type LoaderConfig struct {
	InputPath       string
	CheckpointEvery int
}

// Loader streams input records through a Submitter and checkpoints progress.
type Loader struct {
	config    LoaderConfig
	reader    ports.RecordReader
	submitter Submitter
	stateRepo ports.StateRepository
	logger    log.Logger

	tracker *Tracker
	ready   chan struct{}
}

// NewLoader creates a new loader with the given dependencies.
func NewLoader(
	config LoaderConfig,
	reader ports.RecordReader,
	submitter Submitter,
	stateRepo ports.StateRepository,
	logger log.Logger,
) *Loader {
	return &Loader{
		config:    config,
		reader:    reader,
		submitter: submitter,
		stateRepo: stateRepo,
		logger:    log.OrNoop(logger),
		ready:     make(chan struct{}),
	}
}

// Run reads records until the input ends or ctx is cancelled, then waits
// for every submitted record to resolve and saves a final checkpoint.
// Cancellation stops reading but never abandons submitted writes.
func (l *Loader) Run(ctx context.Context) error {
	state, err := l.stateRepo.Load(ctx)
	if err != nil {
		l.logger.Error("failed to load checkpoint, starting over", log.Err(err))
		state = domain.State{}
	}
	offset := state.ResumeOffset(l.config.InputPath)
	if offset == 0 {
		state = domain.State{InputPath: l.config.InputPath}
	}

	if err := l.reader.Open(ctx, offset); err != nil {
		return err
	}
	defer l.reader.Close()

	l.tracker = NewTracker(state, l.stateRepo, l.config.CheckpointEvery, l.logger)
	close(l.ready)

	l.logger.Info("loading",
		log.String("input", l.config.InputPath),
		log.Int64("offset", offset),
	)

	runErr := l.read(ctx)

	// Submitted writes resolve regardless of ctx.
	if err := l.tracker.Wait(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	if err := l.tracker.Flush(context.WithoutCancel(ctx)); err != nil {
		l.logger.Error("failed to save final checkpoint", log.Err(err))
		if runErr == nil {
			runErr = err
		}
	}

	s := l.tracker.State()
	l.logger.Info("load finished",
		log.Int64("records", s.Records),
		log.Int64("succeeded", s.Succeeded),
		log.Int64("failed", s.Failed),
		log.Int64("offset", s.Offset),
	)
	return runErr
}

func (l *Loader) read(ctx context.Context) error {
	for {
		rec, err := l.reader.Next(ctx)
		if err != nil {
			if errors.Is(err, ports.ErrNoMoreRecords) {
				return nil
			}
			return err
		}

		seq := l.tracker.Add(rec.End)
		if rec.Err != nil {
			l.logger.Warn("skipping record", log.Int64("offset", rec.Offset), log.Err(rec.Err))
			l.tracker.Resolve(seq, rec.Err)
			continue
		}

		h := l.submitter.Submit(rec.Mutation, func(err error) {
			if err != nil {
				l.logger.Debug("write failed",
					log.String("row", string(rec.Mutation.RowKey)),
					log.Int64("line", rec.Line),
					log.Err(err),
				)
			}
			l.tracker.Resolve(seq, err)
		}, nil)

		// Wait for admission before reading on.
		select {
		case <-h.Admitted():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Progress returns the current checkpoint. It is the zero State until
// Run has opened the input.
func (l *Loader) Progress() domain.State {
	select {
	case <-l.ready:
		return l.tracker.State()
	default:
		return domain.State{}
	}
}
