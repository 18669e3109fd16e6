package ports

import (
	"context"
	"io"

	"github.com/bft-labs/mutbatch/internal/domain"
)

// RecordReader reads input records in order.
type RecordReader interface {
	// Open prepares the reader starting at byte offset.
	Open(ctx context.Context, offset int64) error

	// Next returns the next record. A line that fails to decode is
	// returned as a record with Err set, not as an error.
	// Returns ErrNoMoreRecords at the end of a non-followed input.
	Next(ctx context.Context) (domain.Record, error)

	// Close releases all resources held by the reader.
	Close() error
}

// ErrNoMoreRecords indicates the input is exhausted.
var ErrNoMoreRecords = io.EOF
