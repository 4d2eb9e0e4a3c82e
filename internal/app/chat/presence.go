/*
Package chat contains the core logic of the real-time session and delivery layer.

This file defines the Presence registry: the mapping from a user identity to
the set of that user's currently live connections, across all rooms. It is the
one structure touched by every connection concurrently, so all access is
serialized behind a single RWMutex; a reader never observes a connection
mid-removal.
*/
package chat

import "sync"

// Presence tracks the live connections of each user. Entries are derived
// purely from connection lifecycle events and never persisted; a user's entry
// is deleted as soon as their last connection goes away.
type Presence struct {
	mu    sync.RWMutex
	conns map[int64]map[*Client]struct{}
}

// NewPresence returns an empty registry.
func NewPresence() *Presence {
	return &Presence{
		conns: make(map[int64]map[*Client]struct{}),
	}
}

// Register adds the connection to the user's live set. Registering the same
// connection twice is a no-op.
func (p *Presence) Register(userID int64, c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.conns[userID]
	if !ok {
		set = make(map[*Client]struct{})
		p.conns[userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes the connection from the user's live set and deletes the
// entry once the set is empty. Unknown connections are ignored.
func (p *Presence) Unregister(userID int64, c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.conns[userID]
	if !ok {
		return
	}

	delete(set, c)
	if len(set) == 0 {
		delete(p.conns, userID)
	}
}

// ConnectionsOf returns a snapshot of the user's live connections. The slice
// is a copy; callers may iterate it without holding any lock. A user with no
// live connections yields an empty slice, indistinguishable from a user the
// registry has never seen.
func (p *Presence) ConnectionsOf(userID int64) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set := p.conns[userID]
	if len(set) == 0 {
		return nil
	}

	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}
