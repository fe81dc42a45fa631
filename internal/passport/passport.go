package passport

import (
	"slices"

	"github.com/roach88/hyperhistory/internal/keys"
	"github.com/roach88/hyperhistory/internal/value"
)

type entry struct {
	value  Value
	signer keys.PublicKey
}

// Passport is a signed key/value attribute store owned by one identity.
//
// Every stored field validated against its recorded signer when it was
// inserted. For Set the signer is the owner; SetDelegated records a
// separately authorized key. Passport is not safe for concurrent use.
type Passport struct {
	owner  keys.PublicKey
	fields map[string]entry
}

// New returns an empty passport owned by owner.
func New(owner keys.PublicKey) *Passport {
	return &Passport{
		owner:  owner,
		fields: make(map[string]entry),
	}
}

// Owner returns the identity the passport belongs to.
func (p *Passport) Owner() keys.PublicKey {
	return p.owner
}

// Set stores v under field if it validates against the owner.
//
// Returns false and leaves the passport untouched when the signature does
// not match. On success any existing value is overwritten.
func (p *Passport) Set(field string, v Value) (bool, error) {
	return p.SetDelegated(field, v, p.owner)
}

// SetDelegated is Set with signer as the validating authority instead of
// the owner. Callers must have already established that signer may write
// to this passport.
func (p *Passport) SetDelegated(field string, v Value, signer keys.PublicKey) (bool, error) {
	ok, err := v.Validate(signer)
	if err != nil || !ok {
		return false, err
	}
	p.fields[field] = entry{value: v, signer: signer}
	return true, nil
}

// Get returns the current value of field.
func (p *Passport) Get(field string) (Value, bool) {
	e, ok := p.fields[field]
	return e.value, ok
}

// Signer returns the key the current value of field validated against.
func (p *Passport) Signer(field string) (keys.PublicKey, bool) {
	e, ok := p.fields[field]
	return e.signer, ok
}

// Remove drops field. Removing an absent field is a no-op.
func (p *Passport) Remove(field string) {
	delete(p.fields, field)
}

// Fields returns the stored field names in sorted order.
func (p *Passport) Fields() []string {
	names := make([]string, 0, len(p.fields))
	for name := range p.fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of stored fields.
func (p *Passport) Len() int {
	return len(p.fields)
}

// Clone returns an independent copy. Field values are shared; they are
// treated as immutable once stored.
func (p *Passport) Clone() *Passport {
	c := New(p.owner)
	for name, e := range p.fields {
		c.fields[name] = e
	}
	return c
}

// Snapshot is the JSON export of a passport.
type Snapshot struct {
	Owner  string                   `json:"owner"`
	Fields map[string]FieldSnapshot `json:"fields"`
}

// FieldSnapshot is one exported field. Signer is omitted when it is the owner.
type FieldSnapshot struct {
	Value  value.Value `json:"value"`
	Sign   string      `json:"sign"`
	Signer string      `json:"signer,omitempty"`
}

// Snapshot exports the passport in a JSON-friendly form.
func (p *Passport) Snapshot() Snapshot {
	s := Snapshot{
		Owner:  p.owner.String(),
		Fields: make(map[string]FieldSnapshot, len(p.fields)),
	}
	for name, e := range p.fields {
		fs := FieldSnapshot{
			Value: e.value.Value,
			Sign:  e.value.Sign.String(),
		}
		if !e.signer.Equal(p.owner) {
			fs.Signer = e.signer.String()
		}
		s.Fields[name] = fs
	}
	return s
}
