package cliconfig

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"MUTBATCH_INPUT":                   "/env/rows.jsonl",
				"MUTBATCH_FOLLOW":                  "true",
				"MUTBATCH_STATE_DIR":               "/state",
				"MUTBATCH_CHECKPOINT_EVERY":        "50",
				"MUTBATCH_POLL_INTERVAL":           "2s",
				"MUTBATCH_TRANSPORT":               "memory",
				"MUTBATCH_ENDPOINT":                "localhost:8086",
				"MUTBATCH_INSECURE":                "1",
				"MUTBATCH_PROJECT":                 "p",
				"MUTBATCH_INSTANCE":                "i",
				"MUTBATCH_TABLE_ID":                "t",
				"MUTBATCH_TABLE":                   "projects/p/instances/i/tables/t",
				"MUTBATCH_APP_PROFILE":             "batch",
				"MUTBATCH_COMPRESSION":             "zstd",
				"MUTBATCH_RPC_TIMEOUT":             "5s",
				"MUTBATCH_MAX_ATTEMPTS":            "7",
				"MUTBATCH_BACKOFF_INITIAL":         "10ms",
				"MUTBATCH_BACKOFF_MAX":             "1s",
				"MUTBATCH_MAX_MUTATIONS_PER_BATCH": "500",
				"MUTBATCH_MAX_BYTES_PER_BATCH":     "1048576",
				"MUTBATCH_MAX_BATCHES":             "4",
				"MUTBATCH_MAX_OUTSTANDING_BYTES":   "8388608",
				"MUTBATCH_MEMORY_FAILURE_RATE":     "0.25",
				"MUTBATCH_METRICS_ADDR":            ":9090",
				"MUTBATCH_LOG_LEVEL":               "debug",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Input:                "/env/rows.jsonl",
				Follow:               true,
				StateDir:             "/state",
				CheckpointEvery:      50,
				PollInterval:         2 * time.Second,
				Transport:            "memory",
				Endpoint:             "localhost:8086",
				Insecure:             true,
				Project:              "p",
				Instance:             "i",
				TableID:              "t",
				Table:                "projects/p/instances/i/tables/t",
				AppProfile:           "batch",
				Compression:          "zstd",
				RPCTimeout:           5 * time.Second,
				MaxAttempts:          7,
				BackoffInitial:       10 * time.Millisecond,
				BackoffMax:           time.Second,
				MaxMutationsPerBatch: 500,
				MaxBytesPerBatch:     1 << 20,
				MaxBatches:           4,
				MaxOutstandingBytes:  8 << 20,
				MemoryFailureRate:    0.25,
				MetricsAddr:          ":9090",
				LogLevel:             "debug",
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"MUTBATCH_INPUT":    "/env/rows.jsonl",
				"MUTBATCH_ENDPOINT": "env:1",
			},
			changed: map[string]bool{"input": true},
			initial: Config{Input: "/flag/rows.jsonl"},
			expected: Config{
				Input:    "/flag/rows.jsonl",
				Endpoint: "env:1",
			},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"MUTBATCH_POLL_INTERVAL": "not-a-duration"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"MUTBATCH_MAX_BATCHES": "not-a-number"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int64",
			envVars: map[string]string{"MUTBATCH_MAX_OUTSTANDING_BYTES": "lots"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid float",
			envVars: map[string]string{"MUTBATCH_MEMORY_FAILURE_RATE": "not-a-float"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:     "ignores non-positive numbers",
			envVars:  map[string]string{"MUTBATCH_MAX_BATCHES": "0"},
			changed:  map[string]bool{},
			initial:  Config{MaxBatches: 8},
			expected: Config{MaxBatches: 8},
		},
		{
			name:     "handles bool 'false' as false",
			envVars:  map[string]string{"MUTBATCH_FOLLOW": "false"},
			changed:  map[string]bool{},
			initial:  Config{Follow: true},
			expected: Config{Follow: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.expected, cfg); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
