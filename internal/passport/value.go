// Package passport implements per-identity signed attribute maps.
//
// A Passport belongs to one identity (a server or a member). Every field it
// stores carries a signature over the canonical bytes of the field value,
// and that signature is checked at insertion time. The Passport does not
// sequence updates; ordering is the engine's job.
package passport

import (
	"errors"
	"fmt"

	"github.com/roach88/hyperhistory/internal/keys"
	"github.com/roach88/hyperhistory/internal/value"
)

// ErrSerialize is returned when a field value cannot be turned into
// canonical bytes for signing or verification.
var ErrSerialize = errors.New("passport value serialization failed")

// Value is one signed field value.
type Value struct {
	Value value.Value
	Sign  keys.Signature
}

// NewValue signs the canonical bytes of v with sk.
func NewValue(sk keys.SecretKey, v value.Value) (Value, error) {
	msg, err := canonicalBytes(v)
	if err != nil {
		return Value{}, err
	}
	return Value{Value: v, Sign: sk.Sign(msg)}, nil
}

// Validate reports whether Sign was produced by pk over the canonical bytes
// of Value. A signature from another key is false, not an error.
func (pv Value) Validate(pk keys.PublicKey) (bool, error) {
	msg, err := canonicalBytes(pv.Value)
	if err != nil {
		return false, err
	}
	ok, err := pk.Verify(msg, pv.Sign)
	if err != nil {
		return false, fmt.Errorf("validate passport value: %w", err)
	}
	return ok, nil
}

// Equal reports whether two values carry the same payload and signature.
func (pv Value) Equal(other Value) bool {
	return value.Equal(pv.Value, other.Value) && string(pv.Sign) == string(other.Sign)
}

func canonicalBytes(v value.Value) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: missing value", ErrSerialize)
	}
	msg, err := value.MarshalCanonical(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	return msg, nil
}
