package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (MUTBATCH_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("input", os.Getenv("MUTBATCH_INPUT"), &cfg.Input)
	s.setString("state-dir", os.Getenv("MUTBATCH_STATE_DIR"), &cfg.StateDir)
	s.setString("transport", os.Getenv("MUTBATCH_TRANSPORT"), &cfg.Transport)
	s.setString("endpoint", os.Getenv("MUTBATCH_ENDPOINT"), &cfg.Endpoint)
	s.setString("project", os.Getenv("MUTBATCH_PROJECT"), &cfg.Project)
	s.setString("instance", os.Getenv("MUTBATCH_INSTANCE"), &cfg.Instance)
	s.setString("table-id", os.Getenv("MUTBATCH_TABLE_ID"), &cfg.TableID)
	s.setString("table", os.Getenv("MUTBATCH_TABLE"), &cfg.Table)
	s.setString("app-profile", os.Getenv("MUTBATCH_APP_PROFILE"), &cfg.AppProfile)
	s.setString("compression", os.Getenv("MUTBATCH_COMPRESSION"), &cfg.Compression)
	s.setString("metrics-addr", os.Getenv("MUTBATCH_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv("MUTBATCH_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("poll", os.Getenv("MUTBATCH_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("rpc-timeout", os.Getenv("MUTBATCH_RPC_TIMEOUT"), &cfg.RPCTimeout); err != nil {
		return err
	}
	if err := s.setDuration("backoff-initial", os.Getenv("MUTBATCH_BACKOFF_INITIAL"), &cfg.BackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("backoff-max", os.Getenv("MUTBATCH_BACKOFF_MAX"), &cfg.BackoffMax); err != nil {
		return err
	}

	if err := s.setIntFromString("checkpoint-every", os.Getenv("MUTBATCH_CHECKPOINT_EVERY"), &cfg.CheckpointEvery); err != nil {
		return err
	}
	if err := s.setIntFromString("max-attempts", os.Getenv("MUTBATCH_MAX_ATTEMPTS"), &cfg.MaxAttempts); err != nil {
		return err
	}
	if err := s.setIntFromString("max-mutations-per-batch", os.Getenv("MUTBATCH_MAX_MUTATIONS_PER_BATCH"), &cfg.MaxMutationsPerBatch); err != nil {
		return err
	}
	if err := s.setIntFromString("max-batches", os.Getenv("MUTBATCH_MAX_BATCHES"), &cfg.MaxBatches); err != nil {
		return err
	}
	if err := s.setInt64FromString("max-bytes-per-batch", os.Getenv("MUTBATCH_MAX_BYTES_PER_BATCH"), &cfg.MaxBytesPerBatch); err != nil {
		return err
	}
	if err := s.setInt64FromString("max-outstanding-bytes", os.Getenv("MUTBATCH_MAX_OUTSTANDING_BYTES"), &cfg.MaxOutstandingBytes); err != nil {
		return err
	}

	if err := s.setFloatFromString("memory-failure-rate", os.Getenv("MUTBATCH_MEMORY_FAILURE_RATE"), &cfg.MemoryFailureRate); err != nil {
		return err
	}

	s.setBoolFromString("follow", os.Getenv("MUTBATCH_FOLLOW"), &cfg.Follow)
	s.setBoolFromString("insecure", os.Getenv("MUTBATCH_INSECURE"), &cfg.Insecure)

	return nil
}
