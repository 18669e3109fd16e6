package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Input           string `toml:"input"`
	Follow          *bool  `toml:"follow"`
	StateDir        string `toml:"state_dir"`
	CheckpointEvery int    `toml:"checkpoint_every"`
	PollInterval    string `toml:"poll_interval"`

	Transport   string `toml:"transport"`
	Endpoint    string `toml:"endpoint"`
	Insecure    *bool  `toml:"insecure"`
	Project     string `toml:"project"`
	Instance    string `toml:"instance"`
	TableID     string `toml:"table_id"`
	Table       string `toml:"table"`
	AppProfile  string `toml:"app_profile"`
	Compression string `toml:"compression"`

	RPCTimeout     string `toml:"rpc_timeout"`
	MaxAttempts    int    `toml:"max_attempts"`
	BackoffInitial string `toml:"backoff_initial"`
	BackoffMax     string `toml:"backoff_max"`

	MaxMutationsPerBatch int   `toml:"max_mutations_per_batch"`
	MaxBytesPerBatch     int64 `toml:"max_bytes_per_batch"`
	MaxBatches           int   `toml:"max_batches"`
	MaxOutstandingBytes  int64 `toml:"max_outstanding_bytes"`

	MemoryFailureRate float64 `toml:"memory_failure_rate"`

	MetricsAddr string `toml:"metrics_addr"`
	LogLevel    string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.mutbatch/config.toml, or "" when the home
// directory cannot be resolved.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".mutbatch", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("input", fc.Input, &cfg.Input)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("transport", fc.Transport, &cfg.Transport)
	s.setString("endpoint", fc.Endpoint, &cfg.Endpoint)
	s.setString("project", fc.Project, &cfg.Project)
	s.setString("instance", fc.Instance, &cfg.Instance)
	s.setString("table-id", fc.TableID, &cfg.TableID)
	s.setString("table", fc.Table, &cfg.Table)
	s.setString("app-profile", fc.AppProfile, &cfg.AppProfile)
	s.setString("compression", fc.Compression, &cfg.Compression)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("rpc-timeout", fc.RPCTimeout, &cfg.RPCTimeout); err != nil {
		return err
	}
	if err := s.setDuration("backoff-initial", fc.BackoffInitial, &cfg.BackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("backoff-max", fc.BackoffMax, &cfg.BackoffMax); err != nil {
		return err
	}

	s.setInt("checkpoint-every", fc.CheckpointEvery, &cfg.CheckpointEvery)
	s.setInt("max-attempts", fc.MaxAttempts, &cfg.MaxAttempts)
	s.setInt("max-mutations-per-batch", fc.MaxMutationsPerBatch, &cfg.MaxMutationsPerBatch)
	s.setInt("max-batches", fc.MaxBatches, &cfg.MaxBatches)
	s.setInt64("max-bytes-per-batch", fc.MaxBytesPerBatch, &cfg.MaxBytesPerBatch)
	s.setInt64("max-outstanding-bytes", fc.MaxOutstandingBytes, &cfg.MaxOutstandingBytes)

	s.setFloat("memory-failure-rate", fc.MemoryFailureRate, &cfg.MemoryFailureRate)

	s.setBool("follow", fc.Follow, &cfg.Follow)
	s.setBool("insecure", fc.Insecure, &cfg.Insecure)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
