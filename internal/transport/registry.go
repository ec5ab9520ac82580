package transport

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps session names to live gateway clients. It is an explicit
// object handed to the dispatch driver, not ambient global state, so tests
// and multi-tenant wiring can swap clients freely.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewRegistry creates an empty session registry
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds or replaces the client for a session
func (r *Registry) Register(session string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[session] = c
}

// Get returns the client for a session
func (r *Registry) Get(session string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[session]
	if !ok {
		return nil, fmt.Errorf("transport session %q not registered", session)
	}
	return c, nil
}

// Remove drops the client for a session
func (r *Registry) Remove(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, session)
}

// Sessions returns the registered session names, sorted
func (r *Registry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
