package service

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/devansh-12/messaging-app/internal/core/domain"
)

// Conn is the transport half of a client session.
type Conn interface {
	// Send queues an encoded frame. An error means the client is gone or
	// cannot keep up.
	Send(frame []byte) error

	// Close ends the connection with a close code and reason.
	Close(code int, reason string) error

	RemoteAddr() string
}

// ClientSession is a logged-in client.
type ClientSession struct {
	*domain.Session
	conn Conn
}

// NewClientSession creates a session for username on conn.
func NewClientSession(conn Conn, username, token string) (*ClientSession, error) {
	id, err := domain.GenerateSessionID()
	if err != nil {
		return nil, err
	}
	return &ClientSession{
		Session: &domain.Session{
			ID:         id,
			Username:   username,
			Token:      token,
			RemoteAddr: conn.RemoteAddr(),
			LoggedInAt: time.Now(),
		},
		conn: conn,
	}, nil
}

// Send writes an encoded frame to the client.
func (s *ClientSession) Send(frame []byte) error {
	return s.conn.Send(frame)
}

// Close closes the client connection.
func (s *ClientSession) Close(code int, reason string) error {
	return s.conn.Close(code, reason)
}

// Registry holds logged-in sessions. It is safe for concurrent use, but
// ChatService only mutates it on the node loop.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*ClientSession
	byName map[string]*ClientSession
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*ClientSession),
		byName: make(map[string]*ClientSession),
	}
}

// Add registers a session. A username can be online only once.
func (r *Registry) Add(s *ClientSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[s.Username]; ok {
		return domain.ErrAlreadyOnline.WithDetails(s.Username)
	}
	r.byID[s.ID] = s
	r.byName[s.Username] = s
	return nil
}

// Remove unregisters a session and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	if r.byName[s.Username] == s {
		delete(r.byName, s.Username)
	}
	return true
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*ClientSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// ByUsername returns the session of an online user.
func (r *Registry) ByUsername(username string) (*ClientSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[username]
	return s, ok
}

// All returns every session ordered by username.
func (r *Registry) All() []*ClientSession {
	r.mu.RLock()
	out := make([]*ClientSession, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *ClientSession) int {
		return strings.Compare(a.Username, b.Username)
	})
	return out
}

// Usernames returns the sorted usernames of online users.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	r.mu.RUnlock()

	slices.Sort(out)
	return out
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
