package mutbatch

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/bft-labs/mutbatch/internal/app"
	"github.com/bft-labs/mutbatch/internal/domain"
	"github.com/bft-labs/mutbatch/pkg/batcher"
)

// Config configures a Service.
type Config struct {
	// InputPath is the JSON-lines file of row mutations to load.
	InputPath string

	// Follow keeps reading as the input grows instead of stopping at EOF.
	Follow bool

	// StateDir holds checkpoint.json. Defaults to the input's directory.
	StateDir string

	// CheckpointEvery is how many resolved records pass between saves.
	CheckpointEvery int

	// PollInterval is how often a followed input is re-read when file
	// notifications are unavailable.
	PollInterval time.Duration

	// Limits bounds batching and admission.
	Limits batcher.Options
}

// DefaultConfig returns a Config with every field but InputPath set.
func DefaultConfig() Config {
	return Config{
		CheckpointEvery: app.DefaultCheckpointEvery,
		PollInterval:    time.Second,
		Limits:          batcher.DefaultOptions(),
	}
}

// SetDefaults fills zero fields with their defaults.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.StateDir == "" && c.InputPath != "" {
		c.StateDir = filepath.Dir(c.InputPath)
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = d.CheckpointEvery
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.Limits == (batcher.Options{}) {
		c.Limits = d.Limits
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("%w: input path is required", domain.ErrInvalidConfig)
	}
	if c.StateDir == "" {
		return fmt.Errorf("%w: state dir is required", domain.ErrInvalidConfig)
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return nil
}
