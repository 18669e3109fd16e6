// Package mutbatch loads row mutations from a JSON-lines file into a
// Bigtable-compatible table through an admission-controlled Batcher.
//
// # Basic Usage
//
//	conn, err := transport.Dial("localhost:8086", true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	table, _ := transport.ParseTableName("projects/p/instances/i/tables/t")
//
//	svc, err := mutbatch.New(mutbatch.Config{InputPath: "rows.jsonl"},
//	    mutbatch.WithApplier(transport.NewBigtableApplier(conn, table)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	err = svc.Wait(ctx)
//
// # Checkpoints
//
// Progress is saved to checkpoint.json in Config.StateDir. The saved offset
// only moves past records whose writes have resolved, so a restarted load
// resumes without skipping anything. Records before the offset may be
// written twice after a crash; Bigtable mutations with explicit timestamps
// are idempotent.
//
// # Lifecycle States
//
// A Service is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. A load that drains its input without
// Follow returns to StateStopped on its own.
//
// Embedders that only need batching can use package batcher directly.
package mutbatch
