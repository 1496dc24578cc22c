package ise

import "sync"

// Registry tracks the override rules currently active on the policy engine,
// mapping rule name to remote id. It is shared between webhook requests and
// scheduler goroutines, so all access goes through the lock.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]string
}

// NewRegistry creates a registry seeded with existing rules (may be nil).
func NewRegistry(seed map[string]string) *Registry {
	rules := make(map[string]string, len(seed))
	for name, id := range seed {
		rules[name] = id
	}
	return &Registry{rules: rules}
}

// Has reports whether a rule of that name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rules[name]
	return ok
}

// ID returns the remote id for a rule name.
func (r *Registry) ID(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.rules[name]
	return id, ok
}

// Add registers a rule name with its remote id.
func (r *Registry) Add(name, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[name] = id
}

// Remove unregisters a rule name. Removing an absent name is a no-op.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rules, name)
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Snapshot returns a copy of the current name-to-id mapping.
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.rules))
	for name, id := range r.rules {
		out[name] = id
	}
	return out
}
