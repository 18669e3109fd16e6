package mutbatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/mutbatch/internal/adapters/fs"
	"github.com/bft-labs/mutbatch/internal/app"
	"github.com/bft-labs/mutbatch/internal/domain"
	"github.com/bft-labs/mutbatch/internal/ports"
	"github.com/bft-labs/mutbatch/pkg/batcher"
	"github.com/bft-labs/mutbatch/pkg/log"
	"github.com/bft-labs/mutbatch/pkg/transport"
)

// Progress is the checkpoint of the current or last load.
type Progress struct {
	InputPath string
	Offset    int64
	Records   int64
	Succeeded int64
	Failed    int64
	UpdatedAt time.Time
}

// Service loads a JSON-lines input through a Batcher.
// Use New() to create an instance, then Start() to begin loading.
type Service struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	batcher   *batcher.Batcher
	stateRepo ports.StateRepository
	logger    log.Logger

	mu     sync.RWMutex
	loader *app.Loader
	done   chan struct{}
	runErr error
}

// New creates a Service in StateStopped. Call Start() to begin loading.
func New(cfg Config, opts ...Option) (*Service, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := log.OrNoop(o.logger)
	if o.applier == nil {
		o.applier = transport.NewMemoryApplier(transport.NewMemoryTable(), transport.WithLogger(logger))
	}
	if o.stateRepo == nil {
		o.stateRepo = fs.NewStateFileRepository(cfg.StateDir)
	}

	b, err := batcher.New(o.applier, cfg.Limits, logger)
	if err != nil {
		return nil, err
	}

	var emitter app.EventEmitter
	if o.eventHandler != nil {
		emitter = &eventEmitterWrapper{handler: o.eventHandler}
	}

	done := make(chan struct{})
	close(done)

	return &Service{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger, emitter),
		batcher:   b,
		stateRepo: o.stateRepo,
		logger:    logger,
		done:      done,
	}, nil
}

// Start begins loading in the background and returns immediately.
// Returns ErrAlreadyRunning if a load is in progress.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := s.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.lifecycle.SetCancel(cancel)

	reader := fs.NewJSONLinesReader(s.config.InputPath, s.config.Follow, s.config.PollInterval, s.logger)
	loader := app.NewLoader(app.LoaderConfig{
		InputPath:       s.config.InputPath,
		CheckpointEvery: s.config.CheckpointEvery,
	}, reader, s.batcher, s.stateRepo, s.logger)

	done := make(chan struct{})
	s.loader = loader
	s.done = done
	s.runErr = nil

	s.lifecycle.AddWorker()
	go func() {
		defer s.lifecycle.WorkerDone()
		defer close(done)
		defer cancel()

		if err := s.lifecycle.TransitionTo(app.StateRunning, "loader starting"); err != nil {
			s.logger.Error("failed to transition to running", log.Err(err))
			return
		}

		err := s.run(runCtx, loader)
		s.mu.Lock()
		s.runErr = err
		s.mu.Unlock()

		switch {
		case err == nil:
			_ = s.lifecycle.TransitionTo(app.StateStopped, "input drained")
		case errors.Is(err, context.Canceled):
		default:
			s.logger.Error("loader error", log.Err(err))
			_ = s.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		}
	}()

	return nil
}

func (s *Service) run(ctx context.Context, loader *app.Loader) error {
	g, gctx := errgroup.WithContext(ctx)
	reportCtx, stopReport := context.WithCancel(gctx)

	g.Go(func() error {
		defer stopReport()
		return loader.Run(gctx)
	})
	g.Go(func() error {
		s.report(reportCtx, loader)
		return nil
	})
	return g.Wait()
}

// report logs progress every progressInterval until ctx ends.
func (s *Service) report(ctx context.Context, loader *app.Loader) {
	if s.opts.progressInterval <= 0 {
		return
	}
	t := time.NewTicker(s.opts.progressInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p := loader.Progress()
			st := s.batcher.Stats()
			s.logger.Info("progress",
				log.Int64("offset", p.Offset),
				log.Int64("records", p.Records),
				log.Int64("succeeded", p.Succeeded),
				log.Int64("failed", p.Failed),
				log.Int("pending_writes", st.PendingWrites),
				log.Int64("outstanding_bytes", st.OutstandingBytes),
				log.Int("outstanding_batches", st.OutstandingBatches),
			)
		}
	}
}

// Stop stops reading input, waits for submitted writes to resolve and saves
// a final checkpoint. Waits up to ShutdownTimeout before giving up.
// Returns ErrNotRunning if nothing is loading.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.lifecycle.CanStop() {
		s.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := s.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		s.mu.Unlock()
		return err
	}
	s.lifecycle.Cancel()
	s.mu.Unlock()

	err := s.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
	if err != nil {
		_ = s.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = s.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Wait blocks until the current load ends or ctx is done, and returns the
// load's error. A load ended by Stop returns context.Canceled.
func (s *Service) Wait(ctx context.Context) error {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runErr
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (s *Service) Status() State {
	return convertState(s.lifecycle.State())
}

// Progress returns the checkpoint of the current or last load.
func (s *Service) Progress() Progress {
	s.mu.RLock()
	loader := s.loader
	s.mu.RUnlock()
	if loader == nil {
		return Progress{}
	}
	p := loader.Progress()
	return Progress{
		InputPath: p.InputPath,
		Offset:    p.Offset,
		Records:   p.Records,
		Succeeded: p.Succeeded,
		Failed:    p.Failed,
		UpdatedAt: p.UpdatedAt,
	}
}

// Stats returns a snapshot of the batcher's occupancy.
func (s *Service) Stats() batcher.Stats {
	return s.batcher.Stats()
}
