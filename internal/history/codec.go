package history

import (
	"errors"
	"fmt"

	"github.com/roach88/hyperhistory/internal/keys"
	"github.com/roach88/hyperhistory/internal/value"
)

// ErrorCode categorizes codec failures.
type ErrorCode string

const (
	// ErrCodeFieldNotFound indicates a required field is absent or has the wrong JSON type.
	ErrCodeFieldNotFound ErrorCode = "FIELD_NOT_FOUND"

	// ErrCodeFieldValueInvalid indicates a field is present but its value is not acceptable.
	ErrCodeFieldValueInvalid ErrorCode = "FIELD_VALUE_INVALID"

	// ErrCodeCryptography indicates a key or signature field failed to decode.
	ErrCodeCryptography ErrorCode = "CRYPTOGRAPHY"
)

// Sentinels for errors.Is matching against *CodecError.
var (
	ErrFieldNotFound     = errors.New("field not found")
	ErrFieldValueInvalid = errors.New("field value invalid")
)

// CodecError is a structural failure of a single encode or decode.
// Path names the offending field, e.g. "body.channel_id".
type CodecError struct {
	Code ErrorCode
	Path string
	Err  error // set for ErrCodeCryptography
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Path)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels; cryptography failures match
// keys.ErrCryptography through Unwrap.
func (e *CodecError) Is(target error) bool {
	switch target {
	case ErrFieldNotFound:
		return e.Code == ErrCodeFieldNotFound
	case ErrFieldValueInvalid:
		return e.Code == ErrCodeFieldValueInvalid
	}
	return false
}

func fieldNotFound(path string) error {
	return &CodecError{Code: ErrCodeFieldNotFound, Path: path}
}

func fieldValueInvalid(path string) error {
	return &CodecError{Code: ErrCodeFieldValueInvalid, Path: path}
}

func cryptoField(path string, err error) error {
	return &CodecError{Code: ErrCodeCryptography, Path: path, Err: err}
}

// prefixPath re-roots a codec error under an enclosing field.
func prefixPath(prefix string, err error) error {
	var ce *CodecError
	if errors.As(err, &ce) {
		return &CodecError{Code: ce.Code, Path: prefix + "." + ce.Path, Err: ce.Err}
	}
	return err
}

// EncodeAction maps an Action to its {"type", "body"} wire form.
func EncodeAction(a Action) (value.Object, error) {
	var body value.Object

	switch act := a.(type) {
	case ServerPassportUpdate:
		if act.Value == nil {
			return nil, fieldNotFound("body.value")
		}
		body = value.Object{
			"field":  value.String(act.Field),
			"value":  act.Value,
			"signer": value.String(act.Signer.String()),
			"sign":   value.String(act.Sign.String()),
		}

	case ServerPassportDelete:
		body = value.Object{
			"field": value.String(act.Field),
		}

	case MembersPassportUpdate:
		if act.Value == nil {
			return nil, fieldNotFound("body.value")
		}
		body = value.Object{
			"field": value.String(act.Field),
			"value": act.Value,
			"sign":  value.String(act.Sign.String()),
		}

	case MembersPassportDelete:
		body = value.Object{
			"field": value.String(act.Field),
		}

	case MembersMessagesNew:
		body = value.Object{
			"channel_id": value.Uint64Value(act.ChannelID),
			"message":    value.String(act.Message),
		}

	default:
		return nil, fieldValueInvalid("type")
	}

	return value.Object{
		"type": value.String(a.Kind()),
		"body": body,
	}, nil
}

// DecodeAction maps the wire form back to an Action.
//
// Missing or mistyped fields fail with ErrFieldNotFound naming the exact
// path; an unrecognized tag fails with ErrFieldValueInvalid on "type".
// Base64 failures in key and signature fields wrap keys.ErrCryptography.
// The passport "value" field is taken as-is.
func DecodeAction(v value.Value) (Action, error) {
	obj, ok := v.(value.Object)
	if !ok {
		return nil, fieldNotFound("type")
	}

	tag, ok := obj.String("type")
	if !ok {
		return nil, fieldNotFound("type")
	}

	body, ok := obj.Object("body")
	if !ok {
		return nil, fieldNotFound("body")
	}

	switch Kind(tag) {
	case KindServerPassportUpdate:
		field, err := bodyString(body, "field")
		if err != nil {
			return nil, err
		}
		val, err := bodyValue(body, "value")
		if err != nil {
			return nil, err
		}
		signer, err := bodyKey(body, "signer")
		if err != nil {
			return nil, err
		}
		sign, err := bodySignature(body, "sign")
		if err != nil {
			return nil, err
		}
		return ServerPassportUpdate{Field: field, Value: val, Signer: signer, Sign: sign}, nil

	case KindServerPassportDelete:
		field, err := bodyString(body, "field")
		if err != nil {
			return nil, err
		}
		return ServerPassportDelete{Field: field}, nil

	case KindMembersPassportUpdate:
		field, err := bodyString(body, "field")
		if err != nil {
			return nil, err
		}
		val, err := bodyValue(body, "value")
		if err != nil {
			return nil, err
		}
		sign, err := bodySignature(body, "sign")
		if err != nil {
			return nil, err
		}
		return MembersPassportUpdate{Field: field, Value: val, Sign: sign}, nil

	case KindMembersPassportDelete:
		field, err := bodyString(body, "field")
		if err != nil {
			return nil, err
		}
		return MembersPassportDelete{Field: field}, nil

	case KindMembersMessagesNew:
		channelID, ok := body.Uint64("channel_id")
		if !ok {
			return nil, fieldNotFound("body.channel_id")
		}
		message, err := bodyString(body, "message")
		if err != nil {
			return nil, err
		}
		return MembersMessagesNew{ChannelID: channelID, Message: message}, nil

	default:
		return nil, fieldValueInvalid("type")
	}
}

func bodyString(body value.Object, name string) (string, error) {
	s, ok := body.String(name)
	if !ok {
		return "", fieldNotFound("body." + name)
	}
	return s, nil
}

func bodyValue(body value.Object, name string) (value.Value, error) {
	v, ok := body.Get(name)
	if !ok || v == nil {
		return nil, fieldNotFound("body." + name)
	}
	return v, nil
}

func bodyKey(body value.Object, name string) (keys.PublicKey, error) {
	s, ok := body.String(name)
	if !ok {
		return keys.PublicKey{}, fieldNotFound("body." + name)
	}
	pk, err := keys.ParsePublicKey(s)
	if err != nil {
		return keys.PublicKey{}, cryptoField("body."+name, err)
	}
	return pk, nil
}

func bodySignature(body value.Object, name string) (keys.Signature, error) {
	s, ok := body.String(name)
	if !ok {
		return nil, fieldNotFound("body." + name)
	}
	sig, err := keys.ParseSignature(s)
	if err != nil {
		return nil, cryptoField("body."+name, err)
	}
	return sig, nil
}

// CanonicalBytes returns the canonical bytes of the action's wire form.
// These are the bytes a block author signs.
func CanonicalBytes(a Action) ([]byte, error) {
	obj, err := EncodeAction(a)
	if err != nil {
		return nil, err
	}
	return value.MarshalCanonical(obj)
}

// ParseAction decodes JSON bytes into an Action.
func ParseAction(data []byte) (Action, error) {
	v, err := value.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse action: %w", err)
	}
	return DecodeAction(v)
}
