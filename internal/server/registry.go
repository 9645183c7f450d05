package server

import (
	"sort"
	"sync"
	"time"

	"github.com/Tyrowin/nexus-chat-server/internal/auth"
	"github.com/Tyrowin/nexus-chat-server/internal/models"
	"github.com/Tyrowin/nexus-chat-server/internal/protocol"
)

// Outbox is the send side of a connection. The registry holds it without
// owning the connection's lifecycle.
type Outbox interface {
	// Send enqueues one envelope. It never blocks and reports whether the
	// envelope was accepted.
	Send(v any) bool
	IsOpen() bool
	Close()
}

// Session binds an authenticated identity to its live connection.
type Session struct {
	UserID      models.UserID
	Username    string
	Status      string
	ConnectedAt time.Time
	conn        Outbox
}

func newSession(id auth.Identity, conn Outbox, now time.Time) *Session {
	return &Session{
		UserID:      id.UserID,
		Username:    id.Username,
		Status:      protocol.StatusOnline,
		ConnectedAt: now,
		conn:        conn,
	}
}

// Send enqueues v on the session's connection. Closed connections are skipped.
func (s *Session) Send(v any) bool {
	if s == nil || s.conn == nil {
		return false
	}
	return s.conn.Send(v)
}

// IsOpen reports whether the session's transport can still accept envelopes.
func (s *Session) IsOpen() bool {
	return s != nil && s.conn != nil && s.conn.IsOpen()
}

// Registry maps user IDs to their live session. It is the single source of
// truth for presence.
type Registry struct {
	mu       sync.RWMutex
	sessions map[models.UserID]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[models.UserID]*Session)}
}

// Put stores s under its user ID and returns the session it replaced, if any.
func (r *Registry) Put(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.sessions[s.UserID]
	r.sessions[s.UserID] = s
	return prev
}

// Get returns the current session for userID.
func (r *Registry) Get(userID models.UserID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	return s, ok
}

// Remove deletes the entry for userID regardless of which session holds it.
func (r *Registry) Remove(userID models.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, userID)
}

// Release removes s only if it is still the registered session for its
// user, and reports whether it did. A superseded session releasing itself
// leaves its replacement untouched.
func (r *Registry) Release(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[s.UserID]; ok && current == s {
		delete(r.sessions, s.UserID)
		return true
	}
	return false
}

// Snapshot returns the registered sessions ordered by connect time, then
// user ID.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].ConnectedAt.Equal(sessions[j].ConnectedAt) {
			return sessions[i].UserID < sessions[j].UserID
		}
		return sessions[i].ConnectedAt.Before(sessions[j].ConnectedAt)
	})
	return sessions
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
