package batcher

import (
	"errors"
	"fmt"

	"github.com/bft-labs/mutbatch/pkg/transport"
)

// ErrInvalidOptions is wrapped by every Options validation failure.
var ErrInvalidOptions = errors.New("mutbatch: invalid batcher options")

// Options bounds what a Batcher may hold at once.
type Options struct {
	// MaxMutationsPerBatch caps the cell mutations in one batch.
	MaxMutationsPerBatch int

	// MaxBytesPerBatch caps the serialized size of one batch.
	// Must not exceed transport.MaxMessageBytes.
	MaxBytesPerBatch int64

	// MaxBatches caps the batches sent and not yet attempt-finished.
	MaxBatches int

	// MaxOutstandingBytes caps bytes admitted and not yet resolved, across
	// the current batch and every batch in flight.
	MaxOutstandingBytes int64
}

// DefaultOptions returns the service limits with a safety margin on bytes.
func DefaultOptions() Options {
	return Options{
		MaxMutationsPerBatch: 100000,
		MaxBytesPerBatch:     transport.MaxMessageBytes * 9 / 10,
		MaxBatches:           8,
		MaxOutstandingBytes:  6 * transport.MaxMessageBytes,
	}
}

// Validate checks the limits.
func (o Options) Validate() error {
	if o.MaxMutationsPerBatch <= 0 {
		return fmt.Errorf("%w: max mutations per batch must be positive, got %d", ErrInvalidOptions, o.MaxMutationsPerBatch)
	}
	if o.MaxBytesPerBatch <= 0 {
		return fmt.Errorf("%w: max bytes per batch must be positive, got %d", ErrInvalidOptions, o.MaxBytesPerBatch)
	}
	if o.MaxBytesPerBatch > transport.MaxMessageBytes {
		return fmt.Errorf("%w: max bytes per batch %d exceeds transport limit %d", ErrInvalidOptions, o.MaxBytesPerBatch, transport.MaxMessageBytes)
	}
	if o.MaxBatches <= 0 {
		return fmt.Errorf("%w: max batches must be positive, got %d", ErrInvalidOptions, o.MaxBatches)
	}
	// A write that fits a batch but not the outstanding budget would queue forever.
	if o.MaxOutstandingBytes < o.MaxBytesPerBatch {
		return fmt.Errorf("%w: max outstanding bytes %d is below max bytes per batch %d", ErrInvalidOptions, o.MaxOutstandingBytes, o.MaxBytesPerBatch)
	}
	return nil
}
