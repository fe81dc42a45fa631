package testutil

// FixedBatchGenerator generates the same batch token every time.
//
// Unlike engine.FixedGenerator which returns tokens in sequence, this
// generator always returns the same token, so every journaled block of a
// scenario run shares one batch and golden output stays stable.
//
// Thread-safety: FixedBatchGenerator is stateless and safe for concurrent use.
type FixedBatchGenerator struct {
	token string
}

// NewFixedBatchGenerator creates a fixed batch token generator.
// If token is empty, Generate returns "test-batch-default".
func NewFixedBatchGenerator(token string) *FixedBatchGenerator {
	if token == "" {
		token = "test-batch-default"
	}
	return &FixedBatchGenerator{token: token}
}

// Generate returns the fixed batch token.
func (g *FixedBatchGenerator) Generate() string {
	return g.token
}
