// Package domain contains the core entities of the mutbatch loader.
//
// This package has no dependencies on infrastructure concerns (files,
// gRPC, logging).
//
// # Entities
//
//   - [Record]: one decoded input line and its byte position
//   - [State]: the persisted checkpoint used to resume a load
package domain
