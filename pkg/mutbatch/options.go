package mutbatch

import (
	"time"

	"github.com/bft-labs/mutbatch/internal/ports"
	"github.com/bft-labs/mutbatch/pkg/log"
	"github.com/bft-labs/mutbatch/pkg/transport"
)

// DefaultProgressInterval is how often a running Service logs progress.
const DefaultProgressInterval = 10 * time.Second

// Option configures optional behavior of a Service.
type Option func(*options)

type options struct {
	applier          transport.BulkApplier
	logger           log.Logger
	eventHandler     EventHandler
	stateRepo        ports.StateRepository
	progressInterval time.Duration
}

func defaultOptions() options {
	return options{
		progressInterval: DefaultProgressInterval,
	}
}

// WithApplier sets the transport that applies flushed batches. Without it
// writes go to an in-memory table.
func WithApplier(a transport.BulkApplier) Option {
	return func(o *options) {
		o.applier = a
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for lifecycle events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithProgressInterval sets how often progress is logged. Zero disables it.
func WithProgressInterval(d time.Duration) Option {
	return func(o *options) {
		o.progressInterval = d
	}
}

// withStateRepository replaces the checkpoint file store. Tests only.
func withStateRepository(r ports.StateRepository) Option {
	return func(o *options) {
		o.stateRepo = r
	}
}
