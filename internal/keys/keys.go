// Package keys is the cryptography collaborator of the history engine.
//
// Identities are secp256k1 public keys in compressed form. Signatures are
// deterministic (RFC 6979) ECDSA signatures over the SHA-256 digest of the
// signed bytes, DER encoded. Keys and signatures travel as standard base64
// text.
//
// Every decoding failure in this package wraps ErrCryptography so callers
// can tell a malformed key apart from a schema error or a plain signature
// mismatch. A signature that does not match is never an error.
package keys

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ErrCryptography is wrapped by every key or signature decoding failure.
var ErrCryptography = errors.New("cryptography error")

// Error describes a failed cryptographic operation.
type Error struct {
	Op  string // "parse public key", "verify", ...
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCryptography, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCryptography) hold for every *Error.
func (e *Error) Is(target error) bool {
	return target == ErrCryptography
}

// PublicKeySize is the length of a compressed secp256k1 public key.
const PublicKeySize = secp256k1.PubKeyBytesLenCompressed

// PublicKey is an identity. It is comparable and usable as a map key.
// The zero value is the empty key and never verifies anything.
type PublicKey struct {
	raw string // compressed point bytes
}

// PublicKeyFromBytes parses raw public key bytes (compressed or uncompressed).
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	pk, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return PublicKey{}, &Error{Op: "parse public key", Err: err}
	}
	return PublicKey{raw: string(pk.SerializeCompressed())}, nil
}

// ParsePublicKey decodes the base64 text form of a public key.
func ParsePublicKey(s string) (PublicKey, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return PublicKey{}, &Error{Op: "decode public key base64", Err: err}
	}
	return PublicKeyFromBytes(b)
}

// MustParsePublicKey is like ParsePublicKey but panics on error.
// Use only in tests or with known-good constants.
func MustParsePublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// Bytes returns the compressed point bytes.
func (pk PublicKey) Bytes() []byte {
	return []byte(pk.raw)
}

// String returns the base64 text form.
func (pk PublicKey) String() string {
	return base64.StdEncoding.EncodeToString([]byte(pk.raw))
}

// IsZero reports whether pk is the empty key.
func (pk PublicKey) IsZero() bool {
	return pk.raw == ""
}

// Equal reports whether two keys are the same identity.
func (pk PublicKey) Equal(other PublicKey) bool {
	return pk.raw == other.raw
}

// MarshalText implements encoding.TextMarshaler.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pk *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// Verify checks sig against msg.
// Returns false when the signature does not match or is not a valid DER
// signature at all; returns an error only when the key itself is unusable.
func (pk PublicKey) Verify(msg []byte, sig Signature) (bool, error) {
	if pk.IsZero() {
		return false, &Error{Op: "verify", Err: errors.New("empty public key")}
	}
	pub, err := secp256k1.ParsePubKey([]byte(pk.raw))
	if err != nil {
		return false, &Error{Op: "verify", Err: err}
	}

	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false, nil
	}

	digest := sha256.Sum256(msg)
	return parsed.Verify(digest[:], pub), nil
}

// SecretKey signs on behalf of an identity.
type SecretKey struct {
	key *secp256k1.PrivateKey
}

// GenerateSecretKey creates a fresh random key.
func GenerateSecretKey() (SecretKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return SecretKey{}, &Error{Op: "generate secret key", Err: err}
	}
	return SecretKey{key: key}, nil
}

// SecretKeyFromSeed derives a key from arbitrary seed bytes.
// The same seed always yields the same key; used for reproducible
// fixtures, never for real identities.
func SecretKeyFromSeed(seed []byte) SecretKey {
	digest := sha256.Sum256(seed)
	return SecretKey{key: secp256k1.PrivKeyFromBytes(digest[:])}
}

// SecretKeyFromBytes parses a 32-byte scalar.
func SecretKeyFromBytes(b []byte) (SecretKey, error) {
	if len(b) != secp256k1.PrivKeyBytesLen {
		return SecretKey{}, &Error{Op: "parse secret key", Err: fmt.Errorf("want %d bytes, got %d", secp256k1.PrivKeyBytesLen, len(b))}
	}
	key := secp256k1.PrivKeyFromBytes(b)
	if key.Key.IsZero() {
		return SecretKey{}, &Error{Op: "parse secret key", Err: errors.New("zero scalar")}
	}
	return SecretKey{key: key}, nil
}

// ParseSecretKey decodes the base64 text form of a secret key.
func ParseSecretKey(s string) (SecretKey, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return SecretKey{}, &Error{Op: "decode secret key base64", Err: err}
	}
	return SecretKeyFromBytes(b)
}

// String returns the base64 text form. Handle with care.
func (sk SecretKey) String() string {
	return base64.StdEncoding.EncodeToString(sk.key.Serialize())
}

// PublicKey returns the identity this key signs for.
func (sk SecretKey) PublicKey() PublicKey {
	return PublicKey{raw: string(sk.key.PubKey().SerializeCompressed())}
}

// Sign signs msg. Signing is deterministic: the same key and message
// always produce the same signature bytes.
func (sk SecretKey) Sign(msg []byte) Signature {
	digest := sha256.Sum256(msg)
	return Signature(ecdsa.Sign(sk.key, digest[:]).Serialize())
}

// Signature is a DER encoded ECDSA signature.
type Signature []byte

// ParseSignature decodes the base64 text form of a signature.
// Only the base64 layer is checked here; DER structure is checked by Verify.
func ParseSignature(s string) (Signature, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &Error{Op: "decode signature base64", Err: err}
	}
	return Signature(b), nil
}

// String returns the base64 text form.
func (s Signature) String() string {
	return base64.StdEncoding.EncodeToString(s)
}
