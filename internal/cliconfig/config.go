package cliconfig

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bft-labs/mutbatch/internal/domain"
	"github.com/bft-labs/mutbatch/pkg/batcher"
	"github.com/bft-labs/mutbatch/pkg/log"
	"github.com/bft-labs/mutbatch/pkg/transport"
)

// Transport names accepted by --transport.
const (
	TransportGRPC   = "grpc"
	TransportMemory = "memory"
)

// DefaultEndpoint is the Bigtable data API endpoint.
const DefaultEndpoint = "bigtable.googleapis.com:443"

// Config holds CLI configuration for mutbatch.
type Config struct {
	Input           string
	Follow          bool
	StateDir        string
	CheckpointEvery int
	PollInterval    time.Duration

	Transport   string
	Endpoint    string
	Insecure    bool
	Project     string
	Instance    string
	TableID     string
	Table       string
	AppProfile  string
	Compression string

	RPCTimeout     time.Duration
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	MaxMutationsPerBatch int
	MaxBytesPerBatch     int64
	MaxBatches           int
	MaxOutstandingBytes  int64

	MemoryFailureRate float64

	MetricsAddr string
	LogLevel    string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	limits := batcher.DefaultOptions()
	policy := transport.DefaultRetryPolicy()
	return Config{
		CheckpointEvery:      1000,
		PollInterval:         time.Second,
		Transport:            TransportGRPC,
		Endpoint:             DefaultEndpoint,
		RPCTimeout:           30 * time.Second,
		MaxAttempts:          policy.MaxAttempts,
		BackoffInitial:       policy.InitialBackoff,
		BackoffMax:           policy.MaxBackoff,
		MaxMutationsPerBatch: limits.MaxMutationsPerBatch,
		MaxBytesPerBatch:     limits.MaxBytesPerBatch,
		MaxBatches:           limits.MaxBatches,
		MaxOutstandingBytes:  limits.MaxOutstandingBytes,
		LogLevel:             "info",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("%w: input is required", domain.ErrInvalidConfig)
	}

	if c.StateDir == "" {
		c.StateDir = filepath.Dir(c.Input)
	}

	switch c.Transport {
	case TransportGRPC:
		if c.Table == "" {
			if c.Project == "" || c.Instance == "" || c.TableID == "" {
				return fmt.Errorf("%w: table (or project, instance and table-id) is required", domain.ErrInvalidConfig)
			}
			c.Table = fmt.Sprintf("projects/%s/instances/%s/tables/%s", c.Project, c.Instance, c.TableID)
		}
		if c.Endpoint == "" {
			c.Endpoint = DefaultEndpoint
		}
	case TransportMemory:
	default:
		return fmt.Errorf("%w: unknown transport %q", domain.ErrInvalidConfig, c.Transport)
	}

	switch c.Compression {
	case "", "none", "gzip", "zstd":
	default:
		return fmt.Errorf("%w: unknown compression %q", domain.ErrInvalidConfig, c.Compression)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidConfig)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max-attempts must be positive", domain.ErrInvalidConfig)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	if c.MemoryFailureRate < 0 || c.MemoryFailureRate > 1 {
		return fmt.Errorf("%w: memory-failure-rate must be within [0,1]", domain.ErrInvalidConfig)
	}

	return nil
}

// BatcherOptions returns the admission limits.
func (c Config) BatcherOptions() batcher.Options {
	return batcher.Options{
		MaxMutationsPerBatch: c.MaxMutationsPerBatch,
		MaxBytesPerBatch:     c.MaxBytesPerBatch,
		MaxBatches:           c.MaxBatches,
		MaxOutstandingBytes:  c.MaxOutstandingBytes,
	}
}

// RetryPolicy returns the transport retry policy.
func (c Config) RetryPolicy() transport.RetryPolicy {
	return transport.RetryPolicy{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: c.BackoffInitial,
		MaxBackoff:     c.BackoffMax,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt64(flag string, value int64, dst *int64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setInt64FromString(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
