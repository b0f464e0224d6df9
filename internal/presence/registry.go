// Package presence tracks which identities currently hold a live connection.
//
// The registry follows a single-active-connection policy: the newest
// registration for an identity wins and older connections stop being
// addressable. Removal is compare-before-remove so a superseded connection's
// late disconnect can never evict its replacement.
package presence

import (
	"sort"
	"sync"
)

// Conn is a live connection handle. Implementations must be comparable
// (pointer types) since handle identity decides whether Unregister applies.
type Conn interface {
	// ID identifies the connection in logs.
	ID() string
	// Push queues an event for delivery on this connection.
	Push(event string, payload any) error
}

// Registry maps identity ids to their active connection. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Conn
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Conn)}
}

// Register makes conn the addressable connection for identityID, replacing any
// previous one. The superseded handle is returned (nil if there was none).
func (r *Registry) Register(identityID string, conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.entries[identityID]
	r.entries[identityID] = conn
	if prev == conn {
		return nil
	}
	return prev
}

// Unregister removes the entry for identityID only if it still points at conn.
// It reports whether an entry was removed.
func (r *Registry) Unregister(identityID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.entries[identityID]
	if !ok || cur != conn {
		return false
	}
	delete(r.entries, identityID)
	return true
}

// Lookup returns the active connection for identityID. A miss means offline.
func (r *Registry) Lookup(identityID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.entries[identityID]
	return c, ok
}

// Online returns the sorted ids of identities with a registered connection.
func (r *Registry) Online() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Drain empties the registry and returns the handles that were registered,
// for teardown at shutdown.
func (r *Registry) Drain() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Conn, 0, len(r.entries))
	for id, c := range r.entries {
		out = append(out, c)
		delete(r.entries, id)
	}
	return out
}
