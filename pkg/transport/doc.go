// Package transport sends batches of row mutations to a table.
//
// The BulkApplier contract is asynchronous: AsyncBulkApply returns at once
// and reports per-entry successes and failures, the end of every attempt,
// and a final list of entries that could not be written. Two adapters are
// provided:
//
//   - BigtableApplier issues Bigtable MutateRows streaming RPCs.
//   - MemoryApplier writes into an in-process MemoryTable, with optional
//     failure injection and latency.
//
// Both share one retry loop: only unresolved entries are resent, response
// indices are mapped back to the caller's indices, and retryable codes
// (Unavailable, DeadlineExceeded, Aborted) back off exponentially with
// jitter.
//
// EmulatorServer exposes a MemoryTable over gRPC so BigtableApplier can be
// exercised without a real instance:
//
//	table := transport.NewMemoryTable()
//	srv := transport.NewEmulatorServer(table)
//	go srv.Serve(ctx, lis)
//
//	conn, _ := transport.Dial(lis.Addr().String(), true)
//	applier := transport.NewBigtableApplier(conn, transport.TableName{
//	    Project: "p", Instance: "i", Table: "t",
//	}, transport.WithCompressor(transport.ZstdName))
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package transport
