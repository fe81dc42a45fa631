// Package engine implements the history engine.
//
// The engine turns a stream of signed Blocks, delivered by an untrusted
// transport in any order and possibly more than once, into derived state:
// one Passport per server or member identity and one append-only message
// sequence per channel.
//
// ARCHITECTURE:
//
// Per-block pipeline:
//  1. Dedup: the block fingerprint is claimed in the applied set. A
//     fingerprint already claimed or applied is reported as a duplicate.
//  2. Verify: the envelope signature is checked against the author.
//     CPU bound, runs outside every subject lock.
//  3. Authorize and apply: dispatch by action kind under the lock of the
//     one passport or channel the action touches.
//  4. Journal: with a store attached, the block is written with its seq
//     before the change becomes visible to readers.
//
// Rejections release the fingerprint claim, never stop later blocks, and
// are logged (and audited when a store is attached). "Log and continue"
// is the error policy throughout: a bad block from one peer must not stall
// blocks from the others.
//
// Concurrency:
//   - Deliver(): safe from any goroutine; subjects are serialized
//     individually, independent subjects proceed in parallel
//   - Run(): must be called from exactly one goroutine; verifies a window
//     of queued deliveries in parallel and applies them in receipt order
//   - queries return copies and never observe a half-applied block
//
// Convergence: two engines reach the same state only if each passport and
// channel sees its blocks in the same relative order. There is no
// conflict-free merge; the last applied update to a field wins.
//
// Logical clock: every applied block is stamped from Clock.Next(). Wall
// time never orders anything.
package engine
