package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyperhistory/internal/engine"
	"github.com/roach88/hyperhistory/internal/passport"
	"github.com/roach88/hyperhistory/internal/value"
)

func TestPassportCommand(t *testing.T) {
	f := newJournalFixture(t)
	_, err := f.ingest(t)
	require.NoError(t, err)

	alice := f.ids.Get("alice")
	out, err := execute(t, NewPassportCommand(&RootOptions{Format: "json"}), "--db", f.db, "--caps", f.caps, alice.Public.String())
	require.NoError(t, err)

	var resp struct {
		Data passport.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, alice.Public.String(), resp.Data.Owner)
	require.Contains(t, resp.Data.Fields, "nickname")
	assert.True(t, value.Equal(value.String("Alice"), resp.Data.Fields["nickname"].Value))
	assert.Empty(t, resp.Data.Fields["nickname"].Signer)
	assert.NotContains(t, resp.Data.Fields, "bio")
}

func TestPassportCommand_DelegatedSigner(t *testing.T) {
	f := newJournalFixture(t)
	_, err := f.ingest(t)
	require.NoError(t, err)

	admin := f.ids.Get("admin")
	out, err := execute(t, NewPassportCommand(&RootOptions{Format: "text"}), "--db", f.db, "--caps", f.caps, f.server.Public.String())
	require.NoError(t, err)

	assert.Contains(t, out, "Passport "+f.server.Public.String())
	assert.Contains(t, out, `title = "Hall" (signed by `+admin.Public.String()+")")
}

func TestPassportCommand_WithoutCapsSkipsServerBlocks(t *testing.T) {
	f := newJournalFixture(t)
	_, err := f.ingest(t)
	require.NoError(t, err)

	_, err = execute(t, NewPassportCommand(&RootOptions{Format: "text"}), "--db", f.db, f.server.Public.String())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "no passport")
}

func TestPassportCommand_Errors(t *testing.T) {
	f := newJournalFixture(t)

	t.Run("bad identity", func(t *testing.T) {
		_, err := execute(t, NewPassportCommand(&RootOptions{Format: "text"}), "--db", f.db, "not-a-key")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("unknown identity", func(t *testing.T) {
		_, err := execute(t, NewPassportCommand(&RootOptions{Format: "text"}), "--db", f.db, f.ids.Get("carol").Public.String())
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := execute(t, NewPassportCommand(&RootOptions{Format: "text"}), "--db", f.db)
		require.Error(t, err)
	})
}

func TestMessagesCommand(t *testing.T) {
	f := newJournalFixture(t)
	_, err := f.ingest(t)
	require.NoError(t, err)

	alice := f.ids.Get("alice")
	out, err := execute(t, NewMessagesCommand(&RootOptions{Format: "json"}), "--db", f.db, "7")
	require.NoError(t, err)

	var resp struct {
		Data []engine.MessageSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, int64(2), resp.Data[0].Seq)
	assert.Equal(t, alice.Public.String(), resp.Data[0].Author)
	assert.Equal(t, "hello", resp.Data[0].Text)
	assert.NotEmpty(t, resp.Data[0].Block)
}

func TestMessagesCommand_Text(t *testing.T) {
	f := newJournalFixture(t)
	_, err := f.ingest(t)
	require.NoError(t, err)

	out, err := execute(t, NewMessagesCommand(&RootOptions{Format: "text"}), "--db", f.db, "7")
	require.NoError(t, err)
	assert.Contains(t, out, "[2] "+f.ids.Get("alice").Public.String()+": hello")

	out, err = execute(t, NewMessagesCommand(&RootOptions{Format: "text"}), "--db", f.db, "8")
	require.NoError(t, err)
	assert.Contains(t, out, "No messages in channel 8.")
}

func TestMessagesCommand_BadChannel(t *testing.T) {
	f := newJournalFixture(t)

	_, err := execute(t, NewMessagesCommand(&RootOptions{Format: "text"}), "--db", f.db, "seven")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
