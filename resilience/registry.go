package resilience

import (
	"sort"
	"sync"
)

// Registry holds one circuit breaker per protected dependency. It is owned
// by whichever component composes the reliability stack; there is no
// package-level instance.
type Registry struct {
	base CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates a registry whose breakers are built from base with
// Name set per dependency.
func NewRegistry(base CircuitBreakerConfig) *Registry {
	return &Registry{
		base:     base,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cfg := r.base
	cfg.Name = name
	cb := NewCircuitBreaker(cfg)
	r.breakers[name] = cb
	return cb
}

// Names returns the registered dependency names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a snapshot of every breaker, sorted by name.
func (r *Registry) Snapshot() []Snapshot {
	names := r.Names()
	out := make([]Snapshot, 0, len(names))
	for _, name := range names {
		out = append(out, r.Get(name).Snapshot())
	}
	return out
}

// ResetAll forces every registered breaker closed.
func (r *Registry) ResetAll() {
	for _, name := range r.Names() {
		r.Get(name).Reset()
	}
}
