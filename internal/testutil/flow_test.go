package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedBatchGenerator_ReturnsSameToken(t *testing.T) {
	gen := NewFixedBatchGenerator("test-batch-123")

	assert.Equal(t, "test-batch-123", gen.Generate())
	assert.Equal(t, "test-batch-123", gen.Generate())
}

func TestFixedBatchGenerator_EmptyTokenDefault(t *testing.T) {
	gen := NewFixedBatchGenerator("")
	assert.Equal(t, "test-batch-default", gen.Generate())
}

func TestFixedBatchGenerator_ThreadSafe(t *testing.T) {
	gen := NewFixedBatchGenerator("thread-safe-token")

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				assert.Equal(t, "thread-safe-token", gen.Generate())
			}
		}()
	}
	wg.Wait()
}
