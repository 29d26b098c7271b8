// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"sync"

	"github.com/fleetlink-foundation/fleetlink/peer"
	"github.com/fleetlink-foundation/fleetlink/wire"
)

// entry is what the registry holds for a live session: the peer's
// bounded outbound channel and a done channel closed when the session
// releases its ticket. Senders select on done so a send to a dying
// session fails instead of blocking forever.
type entry struct {
	outbound chan wire.Downstream
	done     chan struct{}
}

// dead reports whether the session holding this entry has released it.
func (e *entry) dead() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Registry tracks the single live session per peer. All methods are
// safe for concurrent use. The registry never calls the store or does
// any I/O under its lock.
type Registry struct {
	mu      sync.Mutex
	entries map[peer.ID]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[peer.ID]*entry)}
}

// Reserve atomically claims the peer's session slot. If a live entry
// exists the reservation fails with ErrPeerAlreadyConnected; an entry
// whose session has already released counts as dead and is replaced.
// The returned ticket must be released when the session ends, on every
// path.
func (r *Registry) Reserve(id peer.ID, outbound chan wire.Downstream) (*Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[id]; ok && !existing.dead() {
		return nil, ErrPeerAlreadyConnected
	}

	e := &entry{outbound: outbound, done: make(chan struct{})}
	r.entries[id] = e
	return &Ticket{registry: r, id: id, entry: e}, nil
}

// lookup returns the peer's live entry. Entries whose session has
// released are removed on sight.
func (r *Registry) lookup(id peer.ID) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	if e.dead() {
		delete(r.entries, id)
		return nil, false
	}
	return e, true
}

// Connected returns the IDs of all peers with a live session. Order is
// unspecified.
func (r *Registry) Connected() []peer.ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]peer.ID, 0, len(r.entries))
	for id, e := range r.entries {
		if e.dead() {
			delete(r.entries, id)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Ticket is a session's claim on its peer's registry slot.
type Ticket struct {
	registry *Registry
	id       peer.ID
	entry    *entry
	once     sync.Once
}

// Release marks the session dead and frees the slot. Idempotent: extra
// calls are no-ops. If a newer session has already reserved the slot,
// only the done channel is closed; the newer entry is left in place.
func (t *Ticket) Release() {
	t.once.Do(func() {
		close(t.entry.done)

		t.registry.mu.Lock()
		if t.registry.entries[t.id] == t.entry {
			delete(t.registry.entries, t.id)
		}
		t.registry.mu.Unlock()
	})
}
