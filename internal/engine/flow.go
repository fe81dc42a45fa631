package engine

import (
	"sync"

	"github.com/google/uuid"
)

// BatchTokenGenerator produces the tokens that tag journaled blocks by
// ingest run. Implemented by UUIDv7Generator (production) and
// FixedGenerator (tests).
type BatchTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 batch tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, so listing
// batches by token also lists them by start time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined batch tokens for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
//
// Example:
//
//	gen := NewFixedGenerator("batch-1", "batch-2")
//	gen.Generate() // "batch-1"
//	gen.Generate() // "batch-2"
//	gen.Generate() // panic: all tokens exhausted
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
//
// Panics if all tokens have been consumed, which catches a test that
// starts more batches than it declared.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
