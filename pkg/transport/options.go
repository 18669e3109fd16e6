package transport

import (
	"time"

	"google.golang.org/grpc/codes"

	"github.com/bft-labs/mutbatch/pkg/log"
)

// Option configures an adapter. Options that do not apply to an adapter
// are ignored by it.
type Option func(*options)

type options struct {
	policy         RetryPolicy
	logger         log.Logger
	attemptTimeout time.Duration
	appProfile     string
	compressor     string
	failureRate    float64
	failureCode    codes.Code
	latency        time.Duration
	chunkSize      int
	seed           int64
}

func defaultOptions() options {
	return options{
		policy:      DefaultRetryPolicy(),
		logger:      log.NewNoopLogger(),
		failureCode: codes.Unavailable,
		chunkSize:   100,
		seed:        time.Now().UnixNano(),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = log.OrNoop(l)
	}
}

// WithAttemptTimeout bounds each gRPC attempt. Zero means no timeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *options) {
		o.attemptTimeout = d
	}
}

// WithAppProfile sets the Bigtable app profile used for requests.
func WithAppProfile(id string) Option {
	return func(o *options) {
		o.appProfile = id
	}
}

// WithCompressor sets the gRPC compressor name ("gzip" or "zstd").
func WithCompressor(name string) Option {
	return func(o *options) {
		o.compressor = name
	}
}

// WithFailureInjection makes the memory adapter fail a fraction of entries
// with code. Retryable codes exercise the retry loop.
func WithFailureInjection(rate float64, code codes.Code) Option {
	return func(o *options) {
		o.failureRate = rate
		o.failureCode = code
	}
}

// WithLatency delays every memory attempt.
func WithLatency(d time.Duration) Option {
	return func(o *options) {
		o.latency = d
	}
}

// WithChunkSize sets how many entries the memory adapter and the emulator
// report per response chunk.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithSeed fixes the failure-injection random source.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}
