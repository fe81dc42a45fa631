// Package capability answers "may this key act for this server?".
//
// A Registry holds, per server identity, its owner and its administrators.
// The history engine consults it for server passport actions and never
// mutates it. Registries are usually loaded from a CUE file (see Load).
package capability

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/hyperhistory/internal/keys"
)

// ErrUnknownServer is returned when an operation names a server that was
// never registered.
var ErrUnknownServer = errors.New("unknown server")

type serverEntry struct {
	owner  keys.PublicKey
	admins map[keys.PublicKey]struct{}
}

// Registry is a concurrency-safe owner/admin table.
type Registry struct {
	mu      sync.RWMutex
	servers map[keys.PublicKey]*serverEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{servers: make(map[keys.PublicKey]*serverEntry)}
}

// Register adds or replaces a server. A zero owner means the server
// identity owns itself.
func (r *Registry) Register(server, owner keys.PublicKey, admins ...keys.PublicKey) {
	if owner.IsZero() {
		owner = server
	}
	entry := &serverEntry{
		owner:  owner,
		admins: make(map[keys.PublicKey]struct{}, len(admins)),
	}
	for _, a := range admins {
		entry.admins[a] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[server] = entry
}

// AddAdmin grants admin on server.
func (r *Registry) AddAdmin(server, admin keys.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.servers[server]
	if !ok {
		return ErrUnknownServer
	}
	entry.admins[admin] = struct{}{}
	return nil
}

// RemoveAdmin revokes admin on server. Revoking a key that is not an
// admin is a no-op.
func (r *Registry) RemoveAdmin(server, admin keys.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.servers[server]
	if !ok {
		return ErrUnknownServer
	}
	delete(entry.admins, admin)
	return nil
}

// IsOwnerOrAdmin reports whether candidate owns or administers server.
// Unknown servers authorize nobody.
func (r *Registry) IsOwnerOrAdmin(server, candidate keys.PublicKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.servers[server]
	if !ok || candidate.IsZero() {
		return false
	}
	if entry.owner.Equal(candidate) {
		return true
	}
	_, ok = entry.admins[candidate]
	return ok
}

// Owner returns the owner of server.
func (r *Registry) Owner(server keys.PublicKey) (keys.PublicKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.servers[server]
	if !ok {
		return keys.PublicKey{}, false
	}
	return entry.owner, true
}

// Admins returns the administrators of server sorted by text form.
func (r *Registry) Admins(server keys.PublicKey) []keys.PublicKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.servers[server]
	if !ok {
		return nil
	}
	out := make([]keys.PublicKey, 0, len(entry.admins))
	for a := range entry.admins {
		out = append(out, a)
	}
	sortKeys(out)
	return out
}

// Servers returns every registered server sorted by text form.
func (r *Registry) Servers() []keys.PublicKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]keys.PublicKey, 0, len(r.servers))
	for s := range r.servers {
		out = append(out, s)
	}
	sortKeys(out)
	return out
}

func sortKeys(ks []keys.PublicKey) {
	slices.SortFunc(ks, func(a, b keys.PublicKey) int {
		return strings.Compare(a.String(), b.String())
	})
}
