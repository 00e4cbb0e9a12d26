package hublifetime

import "sync"

// ConnectionRegistry is a process-local index of live connections by id.
// Add is idempotent on re-add of the same id and replaces on collision; a
// duplicate id is treated as a caller bug but must never corrupt iteration.
// Snapshot returns a stable copy so fan-out never deadlocks against
// concurrent connect/disconnect.
type ConnectionRegistry struct {
	mu          sync.RWMutex
	connections map[string]Connection
}

// NewConnectionRegistry returns an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{connections: make(map[string]Connection)}
}

// Add registers c, replacing any existing connection with the same id.
func (r *ConnectionRegistry) Add(c Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[c.ConnectionID()] = c
}

// Remove deregisters c. A no-op if c (or a later connection with the same
// id) is no longer registered.
func (r *ConnectionRegistry) Remove(c Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.connections[c.ConnectionID()]; ok && cur == c {
		delete(r.connections, c.ConnectionID())
	}
}

// Lookup returns the connection registered under id, if any.
func (r *ConnectionRegistry) Lookup(id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connections[id]
	return c, ok
}

// Snapshot returns a stable copy of all currently registered connections.
func (r *ConnectionRegistry) Snapshot() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Connection, 0, len(r.connections))
	for _, c := range r.connections {
		out = append(out, c)
	}
	return out
}

// Count returns the number of registered connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}
