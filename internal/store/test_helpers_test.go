package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/hyperhistory/internal/history"
	"github.com/roach88/hyperhistory/internal/keys"
)

// createTestStore creates a new file-backed store under t.TempDir().
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord signs a chat message from the identity derived from author.
func createTestRecord(t *testing.T, author string, seq int64, message string) Record {
	t.Helper()
	sk := keys.SecretKeyFromSeed([]byte(author))
	b, err := history.SignBlock(sk, history.MembersMessagesNew{ChannelID: 7, Message: message})
	if err != nil {
		t.Fatalf("SignBlock() failed: %v", err)
	}
	return Record{
		Seq:    seq,
		Hash:   b.Hash(),
		Block:  b,
		Member: sk.PublicKey(),
		Batch:  "batch-1",
	}
}
