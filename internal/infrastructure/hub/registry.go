package hub

import "sync"

// Registry maps subscriber identities to their currently open connections.
// It is shared between request handlers, the dispatcher and the heartbeat
// sweep; structural mutation happens under the lock while every iteration
// works on a copy-on-read snapshot.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]map[uint64]Connection
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]map[uint64]Connection),
	}
}

// Register adds conn to the subscriber's set, creating the set if absent.
func (r *Registry) Register(subscriberID string, conn Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.entries[subscriberID]
	if !ok {
		set = make(map[uint64]Connection)
		r.entries[subscriberID] = set
	}
	set[conn.ID()] = conn
}

// Remove deletes conn from the subscriber's set. When the set empties the
// key is removed with it, so the mapping never holds dangling empty sets.
// Removing a connection that is not present is a no-op.
func (r *Registry) Remove(subscriberID string, conn Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.entries[subscriberID]
	if !ok {
		return
	}
	delete(set, conn.ID())
	if len(set) == 0 {
		delete(r.entries, subscriberID)
	}
}

// ConnectionsFor returns a snapshot of the subscriber's open connections.
// Callers iterate the snapshot freely while registration continues.
func (r *Registry) ConnectionsFor(subscriberID string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.entries[subscriberID]
	conns := make([]Connection, 0, len(set))
	for _, conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// Entries returns a snapshot of every subscriber's connections, used by
// the heartbeat sweep.
func (r *Registry) Entries() map[string][]Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string][]Connection, len(r.entries))
	for subscriberID, set := range r.entries {
		conns := make([]Connection, 0, len(set))
		for _, conn := range set {
			conns = append(conns, conn)
		}
		snapshot[subscriberID] = conns
	}
	return snapshot
}

// ConnectionCount returns the total number of open connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, set := range r.entries {
		total += len(set)
	}
	return total
}

// SubscriberCount returns the number of subscribers with at least one
// open connection.
func (r *Registry) SubscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// clear drops every entry and returns what was removed, for shutdown.
func (r *Registry) clear() map[string][]Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string][]Connection, len(r.entries))
	for subscriberID, set := range r.entries {
		conns := make([]Connection, 0, len(set))
		for _, conn := range set {
			conns = append(conns, conn)
		}
		snapshot[subscriberID] = conns
	}
	r.entries = make(map[string]map[uint64]Connection)
	return snapshot
}
