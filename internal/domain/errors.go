package domain

import "errors"

// Domain errors can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("mutbatch: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("mutbatch: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("mutbatch: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("mutbatch: invalid configuration")

	// ErrInvalidRecord is returned for an input line that does not decode
	// into a row mutation.
	ErrInvalidRecord = errors.New("mutbatch: invalid record")
)
