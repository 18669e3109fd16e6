package cliconfig

import (
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/mutbatch/internal/domain"
	"github.com/bft-labs/mutbatch/pkg/batcher"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Transport != TransportGRPC {
		t.Errorf("Transport = %v, want grpc", cfg.Transport)
	}
	if cfg.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %v, want %v", cfg.Endpoint, DefaultEndpoint)
	}
	if cfg.BatcherOptions() != batcher.DefaultOptions() {
		t.Errorf("BatcherOptions() = %+v, want %+v", cfg.BatcherOptions(), batcher.DefaultOptions())
	}
	if err := cfg.BatcherOptions().Validate(); err != nil {
		t.Errorf("default batcher options invalid: %v", err)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %v, want 5", cfg.MaxAttempts)
	}
}

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Input = "/data/rows.jsonl"
	cfg.Table = "projects/p/instances/i/tables/t"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid minimal config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing input",
			mutate:  func(c *Config) { c.Input = "" },
			wantErr: true,
		},
		{
			name:    "grpc without table",
			mutate:  func(c *Config) { c.Table = "" },
			wantErr: true,
		},
		{
			name: "memory without table",
			mutate: func(c *Config) {
				c.Table = ""
				c.Transport = TransportMemory
			},
		},
		{
			name:    "unknown transport",
			mutate:  func(c *Config) { c.Transport = "carrier-pigeon" },
			wantErr: true,
		},
		{
			name:    "unknown compression",
			mutate:  func(c *Config) { c.Compression = "lz4" },
			wantErr: true,
		},
		{
			name:    "invalid poll interval",
			mutate:  func(c *Config) { c.PollInterval = -1 },
			wantErr: true,
		},
		{
			name:    "zero max attempts",
			mutate:  func(c *Config) { c.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "failure rate above one",
			mutate:  func(c *Config) { c.MemoryFailureRate = 1.5 },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: true,
		},
		{
			name:   "warning log level",
			mutate: func(c *Config) { c.LogLevel = "warning" },
		},
		{
			name:   "zstd compression",
			mutate: func(c *Config) { c.Compression = "zstd" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_Validate_Derivations(t *testing.T) {
	c1 := validConfig()
	c1.Table = ""
	c1.Project = "p1"
	c1.Instance = "i1"
	c1.TableID = "t1"
	if err := c1.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c1.Table != "projects/p1/instances/i1/tables/t1" {
		t.Errorf("Table = %v", c1.Table)
	}
	if c1.StateDir != "/data" {
		t.Errorf("StateDir = %v, want /data", c1.StateDir)
	}

	c2 := validConfig()
	c2.StateDir = "/state"
	c2.Endpoint = ""
	if err := c2.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c2.StateDir != "/state" {
		t.Errorf("StateDir = %v, want /state", c2.StateDir)
	}
	if c2.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %v, want %v", c2.Endpoint, DefaultEndpoint)
	}
}

func TestConfig_RetryPolicy(t *testing.T) {
	cfg := validConfig()
	cfg.MaxAttempts = 3
	cfg.BackoffInitial = time.Millisecond
	cfg.BackoffMax = time.Second

	p := cfg.RetryPolicy()
	if p.MaxAttempts != 3 || p.InitialBackoff != time.Millisecond || p.MaxBackoff != time.Second {
		t.Errorf("RetryPolicy() = %+v", p)
	}
}

func TestPrecedence(t *testing.T) {
	// flag > env > file > default
	cfg := DefaultConfig()
	changed := map[string]bool{"max-batches": true}
	cfg.MaxBatches = 2 // set by flag

	fc := FileConfig{
		MaxBatches:           3,
		MaxMutationsPerBatch: 10,
		Endpoint:             "file:1",
		LogLevel:             "debug",
	}
	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}

	t.Setenv("MUTBATCH_MAX_BATCHES", "4")
	t.Setenv("MUTBATCH_ENDPOINT", "env:2")
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig: %v", err)
	}

	if cfg.MaxBatches != 2 {
		t.Errorf("MaxBatches = %d, want flag value 2", cfg.MaxBatches)
	}
	if cfg.Endpoint != "env:2" {
		t.Errorf("Endpoint = %s, want env value", cfg.Endpoint)
	}
	if cfg.MaxMutationsPerBatch != 10 {
		t.Errorf("MaxMutationsPerBatch = %d, want file value 10", cfg.MaxMutationsPerBatch)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want file value debug", cfg.LogLevel)
	}
	if cfg.CheckpointEvery != 1000 {
		t.Errorf("CheckpointEvery = %d, want default 1000", cfg.CheckpointEvery)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		want    string
		wantErr bool
	}{
		{level: "debug", want: "debug"},
		{level: "warning", want: "warn"},
		{level: "", want: "info"},
		{level: "verbose", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := NewLogger(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := l.GetLevel().String(); got != tt.want {
				t.Errorf("level = %s, want %s", got, tt.want)
			}
		})
	}
}
