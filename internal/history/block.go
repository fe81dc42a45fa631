package history

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/zeebo/blake3"

	"github.com/roach88/hyperhistory/internal/keys"
	"github.com/roach88/hyperhistory/internal/value"
)

// Block is a signed envelope carrying one Action.
//
// Sign is the author's signature over CanonicalBytes(Action). Construction
// never checks it; Verify does, and the engine calls Verify before applying.
type Block struct {
	Author keys.PublicKey
	Action Action
	Sign   keys.Signature
}

// NewBlock wraps an already signed action. No verification is performed.
func NewBlock(author keys.PublicKey, action Action, sign keys.Signature) Block {
	return Block{Author: author, Action: action, Sign: sign}
}

// SignBlock signs action with sk and wraps it.
func SignBlock(sk keys.SecretKey, action Action) (Block, error) {
	msg, err := CanonicalBytes(action)
	if err != nil {
		return Block{}, fmt.Errorf("sign block: %w", err)
	}
	return NewBlock(sk.PublicKey(), action, sk.Sign(msg)), nil
}

// Verify checks Sign against Author over the canonical action bytes.
// A mismatch is false, not an error. Errors come from encoding the action
// or from an unusable author key.
func (b Block) Verify() (bool, error) {
	msg, err := CanonicalBytes(b.Action)
	if err != nil {
		return false, fmt.Errorf("verify block: %w", err)
	}
	return b.Author.Verify(msg, b.Sign)
}

// Hash returns the block's 64-bit dedup fingerprint.
//
// DESIGN DECISION: only the author bytes followed by the signature bytes are
// hashed. Action content is deliberately excluded: this is an identity key
// for redelivery detection, not a content digest. Two blocks with the same
// author and signature but different actions collide and the engine treats
// them as one block.
func (b Block) Hash() uint64 {
	h := blake3.New()
	_, _ = h.Write(b.Author.Bytes())
	_, _ = h.Write(b.Sign)
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}

// FormatHash renders a fingerprint as 16 lowercase hex digits.
func FormatHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// ParseHash is the inverse of FormatHash.
func ParseHash(s string) (uint64, error) {
	h, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse block hash %q: %w", s, err)
	}
	return h, nil
}

// Encode returns the block's wire form:
//
//	{"author": "<base64>", "action": {...}, "sign": "<base64>"}
func (b Block) Encode() (value.Object, error) {
	action, err := EncodeAction(b.Action)
	if err != nil {
		return nil, prefixPath("action", err)
	}
	return value.Object{
		"author": value.String(b.Author.String()),
		"action": action,
		"sign":   value.String(b.Sign.String()),
	}, nil
}

// DecodeBlock parses the wire form. Errors inside the action are reported
// with an "action." path prefix.
func DecodeBlock(v value.Value) (Block, error) {
	obj, ok := v.(value.Object)
	if !ok {
		return Block{}, fieldNotFound("author")
	}

	authorText, ok := obj.String("author")
	if !ok {
		return Block{}, fieldNotFound("author")
	}
	author, err := keys.ParsePublicKey(authorText)
	if err != nil {
		return Block{}, cryptoField("author", err)
	}

	rawAction, ok := obj.Get("action")
	if !ok {
		return Block{}, fieldNotFound("action")
	}
	action, err := DecodeAction(rawAction)
	if err != nil {
		return Block{}, prefixPath("action", err)
	}

	signText, ok := obj.String("sign")
	if !ok {
		return Block{}, fieldNotFound("sign")
	}
	sign, err := keys.ParseSignature(signText)
	if err != nil {
		return Block{}, cryptoField("sign", err)
	}

	return Block{Author: author, Action: action, Sign: sign}, nil
}

// MarshalJSON implements json.Marshaler with canonical output.
func (b Block) MarshalJSON() ([]byte, error) {
	obj, err := b.Encode()
	if err != nil {
		return nil, err
	}
	return value.MarshalCanonical(obj)
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Block) UnmarshalJSON(data []byte) error {
	v, err := value.Parse(data)
	if err != nil {
		return err
	}
	decoded, err := DecodeBlock(v)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// ParseBlock decodes JSON bytes into a Block.
func ParseBlock(data []byte) (Block, error) {
	var b Block
	if err := b.UnmarshalJSON(data); err != nil {
		return Block{}, fmt.Errorf("parse block: %w", err)
	}
	return b, nil
}

// BlockEqual reports whether two blocks carry the same author, action and signature.
func BlockEqual(a, b Block) bool {
	return a.Author.Equal(b.Author) && string(a.Sign) == string(b.Sign) && ActionEqual(a.Action, b.Action)
}
