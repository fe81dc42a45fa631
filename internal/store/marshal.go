package store

import (
	"fmt"

	"github.com/roach88/hyperhistory/internal/history"
	"github.com/roach88/hyperhistory/internal/keys"
)

// marshalAction converts an action to canonical JSON TEXT for storage.
// The stored bytes are exactly the bytes the author signed.
func marshalAction(a history.Action) (string, error) {
	data, err := history.CanonicalBytes(a)
	if err != nil {
		return "", fmt.Errorf("marshal action: %w", err)
	}
	return string(data), nil
}

func unmarshalAction(data string) (history.Action, error) {
	a, err := history.ParseAction([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal action: %w", err)
	}
	return a, nil
}

// formatKey stores the zero key as the empty string.
func formatKey(pk keys.PublicKey) string {
	if pk.IsZero() {
		return ""
	}
	return pk.String()
}

func parseKey(column, text string) (keys.PublicKey, error) {
	if text == "" {
		return keys.PublicKey{}, nil
	}
	pk, err := keys.ParsePublicKey(text)
	if err != nil {
		return keys.PublicKey{}, fmt.Errorf("unmarshal %s: %w", column, err)
	}
	return pk, nil
}

func parseHash(text string) (uint64, error) {
	h, err := history.ParseHash(text)
	if err != nil {
		return 0, fmt.Errorf("unmarshal hash: %w", err)
	}
	return h, nil
}

func parseSignature(text string) (keys.Signature, error) {
	sig, err := keys.ParseSignature(text)
	if err != nil {
		return nil, fmt.Errorf("unmarshal sign: %w", err)
	}
	return sig, nil
}
