// Package audit implements the append-only security event log.
//
// # Components
//
//   - [Log]: records events into a store.AuditStore, runs the
//     suspicious-activity heuristic and serves paginated queries.
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Sink]: optional mirror consumers (channel, JSON writer, no-op).
//
// # Failure semantics
//
// Record never returns an error. Store failures are logged through slog and
// dropped so the calling flow always proceeds.
//
// # What this package must NOT do
//
//   - Decide which events a flow emits.
//   - Block or fail a caller because of a storage error.
package audit
