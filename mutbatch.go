// Package mutbatch loads JSON-lines row mutations into Bigtable through an
// admission-controlled write batcher.
//
// Example usage:
//
//	svc, err := mutbatch.New(mutbatch.Config{InputPath: "rows.jsonl"},
//	    mutbatch.WithApplier(applier))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Wait(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// The batching engine alone lives in package pkg/batcher.
package mutbatch

import (
	"github.com/bft-labs/mutbatch/pkg/batcher"
	"github.com/bft-labs/mutbatch/pkg/mutbatch"
)

// Config configures a Service.
type Config = mutbatch.Config

// Service loads an input file through a Batcher.
type Service = mutbatch.Service

// Option configures optional behavior of a Service.
type Option = mutbatch.Option

// Options bounds what a Batcher may hold at once.
type Options = batcher.Options

// DefaultConfig returns a Config with every field but InputPath set.
func DefaultConfig() Config {
	return mutbatch.DefaultConfig()
}

// New creates a Service. See pkg/mutbatch.New.
func New(cfg Config, opts ...Option) (*Service, error) {
	return mutbatch.New(cfg, opts...)
}

// Version is the module version.
const Version = mutbatch.Version
