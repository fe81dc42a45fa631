package testutil

import (
	"testing"

	"github.com/roach88/hyperhistory/internal/history"
	"github.com/roach88/hyperhistory/internal/keys"
	"github.com/roach88/hyperhistory/internal/passport"
	"github.com/roach88/hyperhistory/internal/value"
)

// Sign wraps action in a block signed by author.
func Sign(tb testing.TB, author Identity, action history.Action) history.Block {
	tb.Helper()
	b, err := history.SignBlock(author.Secret, action)
	if err != nil {
		tb.Fatalf("sign block: %v", err)
	}
	return b
}

// ForgeEnvelope signs action with forger but claims claimed as the author.
func ForgeEnvelope(tb testing.TB, claimed keys.PublicKey, forger Identity, action history.Action) history.Block {
	tb.Helper()
	b := Sign(tb, forger, action)
	return history.NewBlock(claimed, action, b.Sign)
}

// SignedValue signs v as a passport field value.
func SignedValue(tb testing.TB, signer Identity, v value.Value) passport.Value {
	tb.Helper()
	pv, err := passport.NewValue(signer.Secret, v)
	if err != nil {
		tb.Fatalf("sign value: %v", err)
	}
	return pv
}

// MemberUpdate builds a member passport update signed by author throughout.
func MemberUpdate(tb testing.TB, author Identity, field string, v value.Value) history.Block {
	tb.Helper()
	return ForgedMemberUpdate(tb, author, author, field, v)
}

// ForgedMemberUpdate builds a member passport update whose envelope is
// signed by author but whose field value is signed by valueSigner.
func ForgedMemberUpdate(tb testing.TB, author, valueSigner Identity, field string, v value.Value) history.Block {
	tb.Helper()
	pv := SignedValue(tb, valueSigner, v)
	return Sign(tb, author, history.MembersPassportUpdate{Field: field, Value: pv.Value, Sign: pv.Sign})
}

// MemberDelete builds a member passport delete.
func MemberDelete(tb testing.TB, author Identity, field string) history.Block {
	tb.Helper()
	return Sign(tb, author, history.MembersPassportDelete{Field: field})
}

// ServerUpdate builds a server passport update published by author with a
// value signed and claimed by signer.
func ServerUpdate(tb testing.TB, author, signer Identity, field string, v value.Value) history.Block {
	tb.Helper()
	pv := SignedValue(tb, signer, v)
	return Sign(tb, author, history.ServerPassportUpdate{
		Field:  field,
		Value:  pv.Value,
		Signer: signer.Public,
		Sign:   pv.Sign,
	})
}

// ServerDelete builds a server passport delete.
func ServerDelete(tb testing.TB, author Identity, field string) history.Block {
	tb.Helper()
	return Sign(tb, author, history.ServerPassportDelete{Field: field})
}

// Message builds a chat message.
func Message(tb testing.TB, author Identity, channelID uint64, text string) history.Block {
	tb.Helper()
	return Sign(tb, author, history.MembersMessagesNew{ChannelID: channelID, Message: text})
}
