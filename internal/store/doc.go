// Package store provides the SQLite journal behind the history engine.
//
// The journal is append-only:
//   - blocks: every applied Block with its logical seq, fingerprint and the
//     subject context it was delivered under
//   - rejections: an audit row per rejected delivery
//
// # Ordering
//
// All replay reads use ORDER BY seq ASC. seq comes from the engine's
// logical clock, never from wall time, so a restore applies blocks in the
// order they were originally applied.
//
// # Idempotency
//
// blocks.hash is UNIQUE and writes use ON CONFLICT(hash) DO NOTHING, so a
// redelivered block can never be journaled twice even when the engine's
// in-memory dedup horizon has forgotten it.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
