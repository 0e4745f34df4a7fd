// Package registry tracks the set of authenticated sessions on a
// single host process, keyed by a fast lookup fingerprint derived from
// the session token.
package registry

import (
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint is a short, collision-resistant lookup key derived from
// a session token. It is never transmitted on the wire; it only
// indexes the in-process registry.
type Fingerprint [32]byte

// Fingerprint hashes token with blake2b-256. Tokens are opaque
// high-entropy strings (see pkg/auth.SessionToken), so a fast
// non-cryptographic digest would do, but blake2b keeps the registry
// consistent with the rest of the module's hashing choices and costs
// nothing measurable at session-registration rates.
func FingerprintOf(token string) Fingerprint {
	return blake2b.Sum256([]byte(token))
}

// Entry is one registered session's bookkeeping record.
type Entry struct {
	Fingerprint Fingerprint
	SessionID   string
	RemoteAddr  string
	QualityMode string
}

// Registry is the process-wide table of active sessions. The zero
// value is not usable; construct with New.
type Registry struct {
	mu      sync.RWMutex
	entries map[Fingerprint]*Entry
}

// New builds an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[Fingerprint]*Entry)}
}

// Register inserts or replaces the entry for fp. Called once a session
// reaches the Authenticated state.
func (r *Registry) Register(fp Fingerprint, e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[fp] = e
}

// Unregister removes fp's entry, if any. Called when a session enters
// Closed.
func (r *Registry) Unregister(fp Fingerprint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, fp)
}

// SetQualityMode updates fp's current quality mode, for the host's
// stats endpoint. A no-op if fp is not registered.
func (r *Registry) SetQualityMode(fp Fingerprint, mode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[fp]; ok {
		e.QualityMode = mode
	}
}

// Lookup returns fp's entry and whether it was found.
func (r *Registry) Lookup(fp Fingerprint) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[fp]
	return e, ok
}

// Count returns the number of registered sessions, for the host's
// stats endpoint.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns a copy of all registered entries, for the host's
// stats endpoint or an admin listing. Each entry is copied by value so
// the result is safe to range over after the lock is released, even
// while SetQualityMode continues to mutate the live entries.
func (r *Registry) Snapshot() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out
}
