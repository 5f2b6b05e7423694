// ABOUTME: In-memory conversational session registry for the replay server.
// ABOUTME: Sessions are created on first use of a token and track message counts.
package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one backend-side conversational context.
type Session struct {
	ID           string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
	LastActive   time.Time `json:"last_active"`
}

// SessionManager tracks sessions in memory. The replay server has no
// persistence; a restart drops all conversational context, which mirrors how
// clients treat the token as opaque and recoverable.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates an empty registry.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Touch returns the session for id, creating it when unknown. An empty id
// mints a fresh session with a generated identifier.
func (m *SessionManager) Touch(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	s, ok := m.sessions[id]
	if !ok {
		s = &Session{ID: id, CreatedAt: time.Now().UTC()}
		m.sessions[id] = s
	}
	s.MessageCount++
	s.LastActive = time.Now().UTC()
	return s
}

// Get looks up a session without creating or touching it.
func (m *SessionManager) Get(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Delete removes a session. Reports whether it existed.
func (m *SessionManager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
