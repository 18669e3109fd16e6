package domain

import "github.com/bft-labs/mutbatch/pkg/mutation"

// Record is one input line.
type Record struct {
	// Offset is the byte offset of the line's first byte.
	Offset int64

	// End is the byte offset just past the line, including its newline.
	End int64

	// Line is the 1-based line number, counted from where reading started.
	Line int64

	// Mutation is the decoded row mutation. It is unset when Err is not nil.
	Mutation mutation.SingleRowMutation

	// Err is the decode failure, wrapping ErrInvalidRecord.
	Err error
}
