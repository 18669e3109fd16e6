package mutbatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bft-labs/mutbatch/internal/domain"
	"github.com/bft-labs/mutbatch/pkg/batcher"
	"github.com/bft-labs/mutbatch/pkg/transport"
)

var rows = []string{
	`{"row":"r1","mutations":[{"type":"set_cell","family":"cf","column":"c","value":"1","timestamp_micros":1000}]}`,
	`{"row":"r2","mutations":[{"type":"set_cell","family":"cf","column":"c","value":"2","timestamp_micros":1000}]}`,
	`{"row":"r3","mutations":[{"type":"delete_row"}]}`,
}

func writeInput(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(input string, follow bool) Config {
	return Config{
		InputPath:    input,
		Follow:       follow,
		PollInterval: 10 * time.Millisecond,
		Limits: batcher.Options{
			MaxMutationsPerBatch: 2,
			MaxBytesPerBatch:     1 << 10,
			MaxBatches:           2,
			MaxOutstandingBytes:  4 << 10,
		},
	}
}

type recordingHandler struct {
	mu     sync.Mutex
	events []StateChangeEvent
}

func (h *recordingHandler) OnStateChange(e StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e.Reason = ""
	h.events = append(h.events, e)
}

func (h *recordingHandler) Events() []StateChangeEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]StateChangeEvent(nil), h.events...)
}

type memRepo struct {
	mu    sync.Mutex
	state domain.State
	saves int
}

func (r *memRepo) Load(context.Context) (domain.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, nil
}

func (r *memRepo) Save(_ context.Context, s domain.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
	r.saves++
	return nil
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing input", Config{}},
		{"bad limits", Config{InputPath: "/tmp/x.jsonl", Limits: batcher.Options{MaxMutationsPerBatch: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := Config{InputPath: "/data/rows.jsonl"}
	cfg.SetDefaults()

	want := DefaultConfig()
	want.InputPath = "/data/rows.jsonl"
	want.StateDir = "/data"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("SetDefaults mismatch (-want +got):\n%s", diff)
	}
}

func TestService_LoadsAndStops(t *testing.T) {
	input := writeInput(t, rows)
	table := transport.NewMemoryTable()
	applier := transport.NewMemoryApplier(table)
	handler := &recordingHandler{}

	svc, err := New(testConfig(input, false),
		WithApplier(applier),
		WithEventHandler(handler),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if svc.Status() != StateStopped {
		t.Fatalf("initial status = %v, want Stopped", svc.Status())
	}

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := svc.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	applier.Wait()

	if svc.Status() != StateStopped {
		t.Errorf("status = %v, want Stopped", svc.Status())
	}
	if !table.HasRow("r1") || !table.HasRow("r2") {
		t.Errorf("rows not written, have %d", table.RowCount())
	}
	if table.HasRow("r3") {
		t.Error("r3 should have been deleted")
	}

	p := svc.Progress()
	if p.Records != 3 || p.Succeeded != 3 || p.Failed != 0 {
		t.Errorf("Progress() = %+v, want 3 succeeded", p)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(input), "checkpoint.json")); err != nil {
		t.Errorf("checkpoint not saved: %v", err)
	}

	want := []StateChangeEvent{
		{Previous: StateStopped, Current: StateStarting},
		{Previous: StateStarting, Current: StateRunning},
		{Previous: StateRunning, Current: StateStopped},
	}
	if diff := cmp.Diff(want, handler.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	if err := svc.Stop(); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("Stop() after drain = %v, want ErrNotRunning", err)
	}
}

func TestService_FollowStop(t *testing.T) {
	input := writeInput(t, rows[:2])
	repo := &memRepo{}

	svc, err := New(testConfig(input, true), withStateRepository(repo))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := svc.Start(context.Background()); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for svc.Progress().Records < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("records not loaded, progress %+v", svc.Progress())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if svc.Status() != StateStopped {
		t.Errorf("status = %v, want Stopped", svc.Status())
	}
	if err := svc.Wait(waitCtx(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}

	repo.mu.Lock()
	saved := repo.state
	repo.mu.Unlock()
	if saved.Records != 2 || saved.InputPath != input {
		t.Errorf("saved state = %+v", saved)
	}
}

func TestService_RestartResumes(t *testing.T) {
	input := writeInput(t, rows)
	repo := &memRepo{}
	table := transport.NewMemoryTable()
	applier := transport.NewMemoryApplier(table)

	svc, err := New(testConfig(input, false), WithApplier(applier), withStateRepository(repo))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := svc.Start(context.Background()); err != nil {
			t.Fatalf("Start() #%d error = %v", i, err)
		}
		if err := svc.Wait(waitCtx(t)); err != nil {
			t.Fatalf("Wait() #%d error = %v", i, err)
		}
	}

	// The second run starts at the saved offset and reads nothing new.
	if p := svc.Progress(); p.Records != 3 {
		t.Errorf("Progress().Records = %d, want 3", p.Records)
	}
}

func TestService_StopWhenStopped(t *testing.T) {
	svc, err := New(testConfig(writeInput(t, rows), false))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Stop(); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("Stop() = %v, want ErrNotRunning", err)
	}
	if err := svc.Wait(waitCtx(t)); err != nil {
		t.Errorf("Wait() before Start = %v, want nil", err)
	}
}

func TestIsVersionCompatible(t *testing.T) {
	tests := []struct {
		version, min string
		want         bool
	}{
		{"1.0.0", "1.0.0", true},
		{"1.2.0", "1.1.9", true},
		{"1.0.1", "1.0.2", false},
		{"2.0.0", "1.9.9", true},
		{"0.9.0", "1.0.0", false},
	}
	for _, tt := range tests {
		if got := isVersionCompatible(tt.version, tt.min); got != tt.want {
			t.Errorf("isVersionCompatible(%s, %s) = %v, want %v", tt.version, tt.min, got, tt.want)
		}
	}
	if err := validateModuleVersions(); err != nil {
		t.Errorf("validateModuleVersions() = %v", err)
	}
}
