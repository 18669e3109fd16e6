package batcher

import (
	"errors"
	"testing"

	"github.com/bft-labs/mutbatch/pkg/transport"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if err := opts.Validate(); err != nil {
		t.Fatalf("DefaultOptions().Validate() error = %v", err)
	}
	if opts.MaxMutationsPerBatch != 100000 {
		t.Errorf("MaxMutationsPerBatch = %d, want 100000", opts.MaxMutationsPerBatch)
	}
	if opts.MaxBytesPerBatch != transport.MaxMessageBytes*9/10 {
		t.Errorf("MaxBytesPerBatch = %d, want %d", opts.MaxBytesPerBatch, transport.MaxMessageBytes*9/10)
	}
	if opts.MaxBatches != 8 {
		t.Errorf("MaxBatches = %d, want 8", opts.MaxBatches)
	}
	if opts.MaxOutstandingBytes != 6*transport.MaxMessageBytes {
		t.Errorf("MaxOutstandingBytes = %d, want %d", opts.MaxOutstandingBytes, 6*transport.MaxMessageBytes)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Options)
		wantErr bool
	}{
		{"defaults", func(o *Options) {}, false},
		{"zero mutations", func(o *Options) { o.MaxMutationsPerBatch = 0 }, true},
		{"zero bytes", func(o *Options) { o.MaxBytesPerBatch = 0 }, true},
		{"bytes above transport limit", func(o *Options) { o.MaxBytesPerBatch = transport.MaxMessageBytes + 1 }, true},
		{"bytes at transport limit", func(o *Options) { o.MaxBytesPerBatch = transport.MaxMessageBytes }, false},
		{"zero batches", func(o *Options) { o.MaxBatches = 0 }, true},
		{"outstanding below batch", func(o *Options) { o.MaxOutstandingBytes = o.MaxBytesPerBatch - 1 }, true},
		{"outstanding equal to batch", func(o *Options) { o.MaxOutstandingBytes = o.MaxBytesPerBatch }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			err := opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("Validate() error = %v, want wrapping ErrInvalidOptions", err)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, DefaultOptions(), nil); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("New(nil applier) error = %v, want ErrInvalidOptions", err)
	}

	opts := DefaultOptions()
	opts.MaxBatches = 0
	if _, err := New(&recordingApplier{}, opts, nil); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("New(bad options) error = %v, want ErrInvalidOptions", err)
	}

	if _, err := New(&recordingApplier{}, DefaultOptions(), nil); err != nil {
		t.Errorf("New() error = %v", err)
	}
}
