package keys

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	sk := SecretKeyFromSeed([]byte("alice"))
	msg := []byte(`"Alice"`)

	sig := sk.Sign(msg)

	ok, err := sk.PublicKey().Verify(msg, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyWrongSignerIsFalseNotError(t *testing.T) {
	alice := SecretKeyFromSeed([]byte("alice"))
	bob := SecretKeyFromSeed([]byte("bob"))
	msg := []byte("hello")

	ok, err := bob.PublicKey().Verify(msg, alice.Sign(msg))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyTamperedMessage(t *testing.T) {
	sk := SecretKeyFromSeed([]byte("alice"))
	sig := sk.Sign([]byte("hello"))

	ok, err := sk.PublicKey().Verify([]byte("hellp"), sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyGarbageSignatureIsFalse(t *testing.T) {
	sk := SecretKeyFromSeed([]byte("alice"))

	ok, err := sk.PublicKey().Verify([]byte("hello"), Signature("not der"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyEmptyKeyIsError(t *testing.T) {
	_, err := PublicKey{}.Verify([]byte("hello"), Signature{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCryptography))
}

func TestSignDeterministic(t *testing.T) {
	sk := SecretKeyFromSeed([]byte("alice"))
	assert.Equal(t, sk.Sign([]byte("x")), sk.Sign([]byte("x")))
}

func TestSeedDeterministic(t *testing.T) {
	a := SecretKeyFromSeed([]byte("alice"))
	b := SecretKeyFromSeed([]byte("alice"))
	c := SecretKeyFromSeed([]byte("bob"))

	assert.Equal(t, a.PublicKey(), b.PublicKey())
	assert.NotEqual(t, a.PublicKey(), c.PublicKey())
}

func TestPublicKeyBase64RoundTrip(t *testing.T) {
	pk := SecretKeyFromSeed([]byte("alice")).PublicKey()

	parsed, err := ParsePublicKey(pk.String())
	require.NoError(t, err)
	assert.True(t, pk.Equal(parsed))
	assert.Len(t, parsed.Bytes(), PublicKeySize)
}

func TestPublicKeyUsableAsMapKey(t *testing.T) {
	pk := SecretKeyFromSeed([]byte("alice")).PublicKey()
	again := MustParsePublicKey(pk.String())

	m := map[PublicKey]int{pk: 1}
	assert.Equal(t, 1, m[again])
}

func TestParsePublicKeyErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad base64", "!!!"},
		{"not a point", "AAAA"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePublicKey(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCryptography))

			var cerr *Error
			assert.True(t, errors.As(err, &cerr))
		})
	}
}

func TestPublicKeyTextMarshaling(t *testing.T) {
	pk := SecretKeyFromSeed([]byte("alice")).PublicKey()

	text, err := pk.MarshalText()
	require.NoError(t, err)

	var decoded PublicKey
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, pk, decoded)
}

func TestSecretKeyRoundTrip(t *testing.T) {
	sk, err := GenerateSecretKey()
	require.NoError(t, err)

	parsed, err := ParseSecretKey(sk.String())
	require.NoError(t, err)
	assert.Equal(t, sk.PublicKey(), parsed.PublicKey())
}

func TestParseSecretKeyErrors(t *testing.T) {
	_, err := ParseSecretKey("%%%")
	assert.True(t, errors.Is(err, ErrCryptography))

	_, err = SecretKeyFromBytes([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, ErrCryptography))

	_, err = SecretKeyFromBytes(make([]byte, 32))
	assert.True(t, errors.Is(err, ErrCryptography))
}

func TestParseSignature(t *testing.T) {
	sig := SecretKeyFromSeed([]byte("alice")).Sign([]byte("x"))

	parsed, err := ParseSignature(sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)

	_, err = ParseSignature("***")
	assert.True(t, errors.Is(err, ErrCryptography))
}
