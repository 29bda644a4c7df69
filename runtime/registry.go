package runtime

import (
	"chat-fanout/contract"
	"chat-fanout/domain"
	"chat-fanout/errors"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

type session struct {
	conn domain.Connection
	sink contract.EventSink
}

// SessionRegistry maps identities to their live connections.
// A user may hold several connections at once (tabs, devices).
type SessionRegistry struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]map[domain.ConnectionID]struct{}
	byConn map[domain.ConnectionID]*session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byUser: make(map[domain.UserID]map[domain.ConnectionID]struct{}),
		byConn: make(map[domain.ConnectionID]*session),
	}
}

// AddConnection registers a live connection and its sink.
// Registering the same connection id twice for the same identity is a no-op
// and returns false. A connection id already owned by another identity is rejected.
func (r *SessionRegistry) AddConnection(conn domain.Connection, sink contract.EventSink) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byConn[conn.ID]; ok {
		if existing.conn.UserID != conn.UserID {
			return false, errors.ErrConnectionConflict
		}
		return false, nil
	}

	if conn.LastSeen.IsZero() {
		conn.LastSeen = conn.ConnectedAt
	}
	r.byConn[conn.ID] = &session{conn: conn, sink: sink}

	conns, ok := r.byUser[conn.UserID]
	if !ok {
		conns = make(map[domain.ConnectionID]struct{})
		r.byUser[conn.UserID] = conns
	}
	conns[conn.ID] = struct{}{}
	return true, nil
}

// RemoveConnection forgets a connection. Removing an unknown id is a no-op.
func (r *SessionRegistry) RemoveConnection(connID domain.ConnectionID) (domain.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byConn[connID]
	if !ok {
		return domain.Connection{}, false
	}
	delete(r.byConn, connID)

	if conns, ok := r.byUser[s.conn.UserID]; ok {
		delete(conns, connID)
		// No empty sets left behind for users who went offline
		if len(conns) == 0 {
			delete(r.byUser, s.conn.UserID)
		}
	}
	return s.conn, true
}

// ConnectionsFor returns the live connection ids of a user, sorted, possibly empty.
func (r *SessionRegistry) ConnectionsFor(userID domain.UserID) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	ids := make([]domain.ConnectionID, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *SessionRegistry) IsOnline(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

func (r *SessionRegistry) Lookup(connID domain.ConnectionID) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byConn[connID]
	if !ok {
		return domain.Connection{}, false
	}
	return s.conn, true
}

func (r *SessionRegistry) Sink(connID domain.ConnectionID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	return s.sink, true
}

// Touch records transport activity for a connection.
func (r *SessionRegistry) Touch(connID domain.ConnectionID, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byConn[connID]
	if !ok {
		return false
	}
	if at.After(s.conn.LastSeen) {
		s.conn.LastSeen = at
	}
	return true
}

// Stale returns connections with no activity since before.
func (r *SessionRegistry) Stale(before time.Time) []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []domain.Connection
	for _, s := range r.byConn {
		if s.conn.LastSeen.Before(before) {
			stale = append(stale, s.conn)
		}
	}
	return stale
}

// Stats returns the number of online users and live connections.
func (r *SessionRegistry) Stats() (users int, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser), len(r.byConn)
}

// Connections returns every live connection.
func (r *SessionRegistry) Connections() []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.MapToSlice(r.byConn, func(_ domain.ConnectionID, s *session) domain.Connection { return s.conn })
}
