// Package registry holds the process-wide map of live sessions: user UUID
// to connection UUID to session handle. It is the only structure mutated
// from multiple goroutines; every operation runs under one mutex, and
// fan-out reads take a snapshot so no caller pushes frames while holding
// the lock.
package registry

import (
	"errors"
	"net/netip"
	"sync"

	"github.com/google/uuid"
)

// ErrDuplicateConnection reports an insert whose connection UUID is
// already registered for that user.
var ErrDuplicateConnection = errors.New("registry: duplicate connection")

// Session is a snapshot of one registered connection.
type Session struct {
	ConnectionID uuid.UUID
	Addr         netip.AddrPort
	Mailbox      *Mailbox
}

type handle struct {
	addr netip.AddrPort
	mbox *Mailbox
}

// Registry is the two-level connection map.
type Registry struct {
	mu    sync.Mutex
	peers map[uuid.UUID]map[uuid.UUID]*handle
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{peers: make(map[uuid.UUID]map[uuid.UUID]*handle)}
}

// Insert registers a connection and returns its mailbox.
func (r *Registry) Insert(user, conn uuid.UUID, addr netip.AddrPort) (*Mailbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.peers[user]
	if !ok {
		sessions = make(map[uuid.UUID]*handle)
		r.peers[user] = sessions
	}
	if _, exists := sessions[conn]; exists {
		return nil, ErrDuplicateConnection
	}

	h := &handle{addr: addr, mbox: newMailbox()}
	sessions[conn] = h
	return h.mbox, nil
}

// Remove unregisters a connection and closes its mailbox, so any frame
// pushed afterwards is discarded. Removing an unknown connection is a
// no-op: the session may already have been reaped on disconnect.
func (r *Registry) Remove(user, conn uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.peers[user]
	if !ok {
		return
	}
	h, ok := sessions[conn]
	if !ok {
		return
	}
	h.mbox.Close()
	delete(sessions, conn)
	if len(sessions) == 0 {
		delete(r.peers, user)
	}
}

// Sessions returns a copy of the user's session list. The copy lets the
// caller push into mailboxes without holding the registry lock.
func (r *Registry) Sessions(user uuid.UUID) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.peers[user]
	if !ok {
		return nil
	}
	out := make([]Session, 0, len(sessions))
	for id, h := range sessions {
		out = append(out, Session{ConnectionID: id, Addr: h.addr, Mailbox: h.mbox})
	}
	return out
}

// LookupAddr resolves a (user, connection) pair to its remote address.
func (r *Registry) LookupAddr(user, conn uuid.UUID) (netip.AddrPort, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.peers[user]
	if !ok {
		return netip.AddrPort{}, false
	}
	h, ok := sessions[conn]
	if !ok {
		return netip.AddrPort{}, false
	}
	return h.addr, true
}

// Len returns the number of users with at least one live session.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}
