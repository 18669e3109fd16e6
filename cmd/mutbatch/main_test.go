package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bft-labs/mutbatch/internal/cliconfig"
	"github.com/bft-labs/mutbatch/pkg/transport"
)

func TestRootCommand_MemoryLoad(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "rows.jsonl")
	data := `{"row":"a","mutations":[{"type":"set_cell","family":"cf","column":"c","value":"1"}]}
{"row":"b","mutations":[{"type":"delete_family","family":"cf"}]}
`
	if err := os.WriteFile(input, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	root := newRootCommand()
	root.SetArgs([]string{
		"--config", filepath.Join(dir, "missing.toml"),
		"--input", input,
		"--transport", "memory",
		"--state-dir", filepath.Join(dir, "state"),
		"--log-level", "error",
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "state", "checkpoint.json")); err != nil {
		t.Errorf("checkpoint not written: %v", err)
	}
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{
		"--config", filepath.Join(t.TempDir(), "missing.toml"),
		"--transport", "memory",
	})
	if err := root.Execute(); err == nil {
		t.Error("Execute() without --input should fail")
	}
}

func TestBuildApplier(t *testing.T) {
	cfg := cliconfig.DefaultConfig()
	cfg.Transport = cliconfig.TransportMemory
	a, closeFn, err := buildApplier(cfg, nil)
	if err != nil {
		t.Fatalf("buildApplier(memory) error = %v", err)
	}
	closeFn()
	if _, ok := a.(*transport.MemoryApplier); !ok {
		t.Errorf("applier = %T, want *transport.MemoryApplier", a)
	}

	cfg.Transport = cliconfig.TransportGRPC
	cfg.Table = "not-a-table"
	if _, _, err := buildApplier(cfg, nil); err == nil {
		t.Error("buildApplier(grpc) with bad table should fail")
	}

	cfg.Table = "projects/p/instances/i/tables/t"
	cfg.Endpoint = "localhost:1"
	cfg.Insecure = true
	cfg.Compression = "zstd"
	a, closeFn, err = buildApplier(cfg, nil)
	if err != nil {
		t.Fatalf("buildApplier(grpc) error = %v", err)
	}
	defer closeFn()
	if _, ok := a.(*transport.BigtableApplier); !ok {
		t.Errorf("applier = %T, want *transport.BigtableApplier", a)
	}
}
