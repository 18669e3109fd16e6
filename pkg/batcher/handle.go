package batcher

import "context"

// Handle follows one submitted write.
type Handle struct {
	admitted chan struct{}
	done     chan struct{}
	err      error
}

func newHandle() *Handle {
	return &Handle{
		admitted: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Admitted is closed once the write was copied into a batch or rejected.
// Until then the caller is being held back.
func (h *Handle) Admitted() <-chan struct{} {
	return h.admitted
}

// Done is closed once the write's outcome is known.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the write's outcome. It is only meaningful after Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the write resolves or ctx is done. A cancelled wait
// does not withdraw the write.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAdmitted blocks until the write is admitted or rejected, or ctx is done.
func (h *Handle) WaitAdmitted(ctx context.Context) error {
	select {
	case <-h.admitted:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
