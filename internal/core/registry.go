// Package core provides the runtime core tier of the HSM engine: the state
// registry, the serialized execution context, the machine, and its timer
// service.
package core

import (
	"sync"

	"github.com/hsmlab/hsmgo/internal/primitives"
)

// Handler is the state handler callback signature. It is called with the
// machine, the current state's name, the dispatched event, and the
// user data supplied at registration. It returns true if the event was
// consumed (no bubbling), false if it should bubble to the parent.
//
// Handlers are not re-entrant by contract: the owning Context guarantees
// serialization, so a handler never needs its own locking to protect
// machine-local state.
type Handler func(m *Machine, state string, ev primitives.Event, userData any) (handled bool)

// stateEntry is a registered state: a name resolving to a handler and its
// opaque user data. The registry does not own userData's lifetime.
type stateEntry struct {
	name     string
	handler  Handler
	userData any
}

// Registry is the per-machine mapping from state name to its handler entry.
// Within one machine, each name resolves to at most one entry; registering
// the same name again replaces the previous entry. There is no
// deregistration — entries live until the owning machine is destroyed.
//
// Registry is safe for concurrent Register calls (a handler may register a
// new state while running, per spec), but lookups are expected to happen
// only from the owning machine's execution context.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*stateEntry
}

// NewRegistry creates an empty state registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*stateEntry)}
}

// Register inserts or replaces the entry for name.
func (r *Registry) Register(name string, handler Handler, userData any) {
	if name == "" || handler == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &stateEntry{name: name, handler: handler, userData: userData}
}

// Lookup returns the entry for name, or nil if absent.
func (r *Registry) Lookup(name string) *stateEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name]
}

// Has reports whether name resolves to a registered entry.
func (r *Registry) Has(name string) bool {
	return r.Lookup(name) != nil
}
