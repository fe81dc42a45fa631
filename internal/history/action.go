// Package history defines the signed records the history engine consumes:
// typed Actions, their JSON wire codec, and Block envelopes.
//
// # Actions
//
// Servers:
//   - v1.server.passport.update - update server passport field value
//   - v1.server.passport.delete - delete server passport field value
//
// Members:
//   - v1.members.passport.update - update member passport field value
//   - v1.members.passport.delete - delete member passport field value
//   - v1.members.messages.new    - new chat message
//
// Action is a closed set: the five structs in this file are the only
// implementations, and the codec is a total mapping between them and the
// {"type", "body"} wire form.
package history

import (
	"github.com/roach88/hyperhistory/internal/keys"
	"github.com/roach88/hyperhistory/internal/value"
)

// Kind is the wire tag of an Action.
type Kind string

const (
	KindServerPassportUpdate  Kind = "v1.server.passport.update"
	KindServerPassportDelete  Kind = "v1.server.passport.delete"
	KindMembersPassportUpdate Kind = "v1.members.passport.update"
	KindMembersPassportDelete Kind = "v1.members.passport.delete"
	KindMembersMessagesNew    Kind = "v1.members.messages.new"
)

// Kinds lists every recognized tag in declaration order.
var Kinds = []Kind{
	KindServerPassportUpdate,
	KindServerPassportDelete,
	KindMembersPassportUpdate,
	KindMembersPassportDelete,
	KindMembersMessagesNew,
}

// Valid reports whether k is a recognized tag.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Action is a typed request to mutate passport or channel state.
type Action interface {
	Kind() Kind
	action() // Sealed
}

// ServerPassportUpdate sets a server passport field.
// Signer must be the server owner or a registered administrator; it need
// not be the block author, which allows delegated publishing.
type ServerPassportUpdate struct {
	Field  string
	Value  value.Value
	Signer keys.PublicKey
	Sign   keys.Signature // Signer's signature over the canonical bytes of Value
}

// ServerPassportDelete drops a server passport field.
type ServerPassportDelete struct {
	Field string
}

// MembersPassportUpdate sets a member passport field.
// Must be signed by the member: the block author is the implicit signer.
type MembersPassportUpdate struct {
	Field string
	Value value.Value
	Sign  keys.Signature
}

// MembersPassportDelete drops a member passport field.
type MembersPassportDelete struct {
	Field string
}

// MembersMessagesNew posts a chat message to a channel.
type MembersMessagesNew struct {
	ChannelID uint64
	Message   string
}

func (ServerPassportUpdate) Kind() Kind  { return KindServerPassportUpdate }
func (ServerPassportDelete) Kind() Kind  { return KindServerPassportDelete }
func (MembersPassportUpdate) Kind() Kind { return KindMembersPassportUpdate }
func (MembersPassportDelete) Kind() Kind { return KindMembersPassportDelete }
func (MembersMessagesNew) Kind() Kind    { return KindMembersMessagesNew }

func (ServerPassportUpdate) action()  {}
func (ServerPassportDelete) action()  {}
func (MembersPassportUpdate) action() {}
func (MembersPassportDelete) action() {}
func (MembersMessagesNew) action()    {}

// ActionEqual reports whether two actions carry the same variant and payload.
func ActionEqual(a, b Action) bool {
	switch x := a.(type) {
	case ServerPassportUpdate:
		y, ok := b.(ServerPassportUpdate)
		return ok && x.Field == y.Field && value.Equal(x.Value, y.Value) &&
			x.Signer.Equal(y.Signer) && string(x.Sign) == string(y.Sign)
	case ServerPassportDelete:
		y, ok := b.(ServerPassportDelete)
		return ok && x == y
	case MembersPassportUpdate:
		y, ok := b.(MembersPassportUpdate)
		return ok && x.Field == y.Field && value.Equal(x.Value, y.Value) &&
			string(x.Sign) == string(y.Sign)
	case MembersPassportDelete:
		y, ok := b.(MembersPassportDelete)
		return ok && x == y
	case MembersMessagesNew:
		y, ok := b.(MembersMessagesNew)
		return ok && x == y
	default:
		return false
	}
}
