package passport

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyperhistory/internal/keys"
	"github.com/roach88/hyperhistory/internal/value"
)

func mustValue(t *testing.T, sk keys.SecretKey, v value.Value) Value {
	t.Helper()
	pv, err := NewValue(sk, v)
	require.NoError(t, err)
	return pv
}

func TestValueValidate(t *testing.T) {
	alice := keys.SecretKeyFromSeed([]byte("alice"))
	bob := keys.SecretKeyFromSeed([]byte("bob"))

	pv := mustValue(t, alice, value.String("Alice"))

	ok, err := pv.Validate(alice.PublicKey())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pv.Validate(bob.PublicKey())
	require.NoError(t, err, "a foreign signer is false, not an error")
	assert.False(t, ok)
}

func TestValueValidateSignsCanonicalBytes(t *testing.T) {
	alice := keys.SecretKeyFromSeed([]byte("alice"))

	pv := Value{
		Value: value.Object{"b": value.Int(2), "a": value.Int(1)},
		Sign:  alice.Sign([]byte(`{"a":1,"b":2}`)),
	}

	ok, err := pv.Validate(alice.PublicKey())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValueValidateTamperedPayload(t *testing.T) {
	alice := keys.SecretKeyFromSeed([]byte("alice"))
	pv := mustValue(t, alice, value.String("Alice"))
	pv.Value = value.String("Alicia")

	ok, err := pv.Validate(alice.PublicKey())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValueValidateErrors(t *testing.T) {
	alice := keys.SecretKeyFromSeed([]byte("alice"))

	_, err := Value{Sign: keys.Signature{1}}.Validate(alice.PublicKey())
	assert.True(t, errors.Is(err, ErrSerialize))

	_, err = Value{Value: value.Number("NaN"), Sign: keys.Signature{1}}.Validate(alice.PublicKey())
	assert.True(t, errors.Is(err, ErrSerialize))

	_, err = mustValue(t, alice, value.Null{}).Validate(keys.PublicKey{})
	assert.True(t, errors.Is(err, keys.ErrCryptography))
}

func TestSetRejectsForeignSignatureWithoutMutation(t *testing.T) {
	alice := keys.SecretKeyFromSeed([]byte("alice"))
	mallory := keys.SecretKeyFromSeed([]byte("mallory"))

	p := New(alice.PublicKey())

	ok, err := p.Set("nickname", mustValue(t, mallory, value.String("Mallory")))
	require.NoError(t, err)
	assert.False(t, ok)
	_, found := p.Get("nickname")
	assert.False(t, found)

	original := mustValue(t, alice, value.String("Alice"))
	ok, err = p.Set("nickname", original)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.Set("nickname", mustValue(t, mallory, value.String("Mallory")))
	require.NoError(t, err)
	assert.False(t, ok)

	got, found := p.Get("nickname")
	require.True(t, found)
	assert.True(t, got.Equal(original))
}

func TestSetLastWriteWins(t *testing.T) {
	alice := keys.SecretKeyFromSeed([]byte("alice"))
	p := New(alice.PublicKey())

	for _, name := range []string{"Alice", "Alicia", "Ally"} {
		ok, err := p.Set("nickname", mustValue(t, alice, value.String(name)))
		require.NoError(t, err)
		require.True(t, ok)
	}

	got, ok := p.Get("nickname")
	require.True(t, ok)
	assert.Equal(t, value.String("Ally"), got.Value)
	assert.Equal(t, 1, p.Len())
}

func TestSetDelegated(t *testing.T) {
	server := keys.SecretKeyFromSeed([]byte("server"))
	admin := keys.SecretKeyFromSeed([]byte("admin"))
	p := New(server.PublicKey())

	byAdmin := mustValue(t, admin, value.String("Lobby"))

	ok, err := p.Set("title", byAdmin)
	require.NoError(t, err)
	assert.False(t, ok, "admin signature does not validate against the owner")

	ok, err = p.SetDelegated("title", byAdmin, admin.PublicKey())
	require.NoError(t, err)
	assert.True(t, ok)

	signer, found := p.Signer("title")
	require.True(t, found)
	assert.Equal(t, admin.PublicKey(), signer)

	ok, err = p.Set("title", mustValue(t, server, value.String("Hall")))
	require.NoError(t, err)
	require.True(t, ok)
	signer, _ = p.Signer("title")
	assert.Equal(t, server.PublicKey(), signer)
}

func TestRemove(t *testing.T) {
	alice := keys.SecretKeyFromSeed([]byte("alice"))
	p := New(alice.PublicKey())

	p.Remove("missing")
	assert.Equal(t, 0, p.Len())

	_, err := p.Set("nickname", mustValue(t, alice, value.String("Alice")))
	require.NoError(t, err)
	p.Remove("nickname")

	_, ok := p.Get("nickname")
	assert.False(t, ok)
	_, ok = p.Signer("nickname")
	assert.False(t, ok)
}

func TestFieldsSortedAndClone(t *testing.T) {
	alice := keys.SecretKeyFromSeed([]byte("alice"))
	p := New(alice.PublicKey())

	for _, f := range []string{"zeta", "alpha", "mid"} {
		_, err := p.Set(f, mustValue(t, alice, value.Bool(true)))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, p.Fields())

	c := p.Clone()
	c.Remove("alpha")
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, alice.PublicKey(), c.Owner())
}

func TestSnapshot(t *testing.T) {
	server := keys.SecretKeyFromSeed([]byte("server"))
	admin := keys.SecretKeyFromSeed([]byte("admin"))
	p := New(server.PublicKey())

	own := mustValue(t, server, value.String("Hall"))
	delegated := mustValue(t, admin, value.Int(12))
	_, err := p.Set("title", own)
	require.NoError(t, err)
	_, err = p.SetDelegated("seats", delegated, admin.PublicKey())
	require.NoError(t, err)

	s := p.Snapshot()
	assert.Equal(t, server.PublicKey().String(), s.Owner)
	require.Len(t, s.Fields, 2)
	assert.Empty(t, s.Fields["title"].Signer)
	assert.Equal(t, admin.PublicKey().String(), s.Fields["seats"].Signer)
	assert.Equal(t, own.Sign.String(), s.Fields["title"].Sign)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value":"Hall"`)
	assert.Contains(t, string(data), `"value":12`)
}
