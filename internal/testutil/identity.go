// Package testutil provides deterministic identities, block builders and
// batch tokens for tests and scenario runs.
package testutil

import (
	"sort"
	"sync"

	"github.com/roach88/hyperhistory/internal/keys"
)

// Identity is a named key pair derived from its name, so the same name
// yields the same keys in every run.
type Identity struct {
	Name   string
	Secret keys.SecretKey
	Public keys.PublicKey
}

// NewIdentity derives an identity from name.
func NewIdentity(name string) Identity {
	sk := keys.SecretKeyFromSeed([]byte("hyperhistory/testutil/" + name))
	return Identity{Name: name, Secret: sk, Public: sk.PublicKey()}
}

// Identities is a lazily populated name <-> key registry.
//
// Thread-safety: all methods are safe for concurrent use.
type Identities struct {
	mu     sync.Mutex
	byName map[string]Identity
	byKey  map[keys.PublicKey]string
}

// NewIdentities creates an empty registry.
func NewIdentities() *Identities {
	return &Identities{
		byName: make(map[string]Identity),
		byKey:  make(map[keys.PublicKey]string),
	}
}

// Get returns the identity called name, deriving it on first use.
func (r *Identities) Get(name string) Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byName[name]
	if !ok {
		id = NewIdentity(name)
		r.byName[name] = id
		r.byKey[id.Public] = name
	}
	return id
}

// Name maps a public key back to the name it was derived from.
// Unknown keys render as their base64 text.
func (r *Identities) Name(pk keys.PublicKey) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name, ok := r.byKey[pk]; ok {
		return name
	}
	return pk.String()
}

// Names returns every registered name, sorted.
func (r *Identities) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
