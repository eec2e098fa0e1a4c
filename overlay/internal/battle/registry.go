package battle

import (
	"context"
	"fmt"
	"sync"
)

// Registry maps widget IDs to their machines so page input can be routed.
type Registry struct {
	mu       sync.RWMutex
	machines map[string]*Machine
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{machines: make(map[string]*Machine)}
}

// Add registers m under its widget ID.
func (r *Registry) Add(m *Machine) {
	r.mu.Lock()
	r.machines[m.ID()] = m
	r.mu.Unlock()
}

// Remove drops the machine for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.machines, id)
	r.mu.Unlock()
}

// Get returns the machine bound to id.
func (r *Registry) Get(id string) (*Machine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.machines[id]
	return m, ok
}

// Len returns the number of machines.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.machines)
}

// Dispatch routes an attack click to the machine for id.
func (r *Registry) Dispatch(ctx context.Context, id string) error {
	m, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("battle: unknown widget %q", id)
	}
	return m.Attack(ctx)
}

// Wait waits for every machine's in-flight work.
func (r *Registry) Wait() {
	r.mu.RLock()
	ms := make([]*Machine, 0, len(r.machines))
	for _, m := range r.machines {
		ms = append(ms, m)
	}
	r.mu.RUnlock()
	for _, m := range ms {
		m.Wait()
	}
}
