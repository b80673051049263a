// Package session provides server-side per-session chat state.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avylis/leadchat/internal/domain"
)

// Session holds the conversation state for one chat session: the ordered
// message history, and the intake record captured for the session, if any.
// All access goes through the mutex-guarded methods; sessions are shared
// between the HTTP and websocket adapters.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	history  []domain.Message
	intakeID *string
}

// AppendUser appends a user turn to the history and returns a snapshot of
// the history including it.
func (s *Session) AppendUser(text string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, domain.Message{Role: domain.RoleUser, Content: text})
	return snapshot(s.history)
}

// ReplaceHistory replaces the session history wholesale with the canonical
// history returned by the agent gateway.
func (s *Session) ReplaceHistory(h []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = snapshot(h)
}

// History returns a snapshot of the current history.
func (s *Session) History() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.history)
}

// Seed initializes the history from a caller-supplied message list. It only
// applies to an empty session; an established history wins over the payload.
func (s *Session) Seed(msgs []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		s.history = snapshot(msgs)
	}
}

// IntakeID returns the session's intake record ID, or nil if none was
// captured yet.
func (s *Session) IntakeID() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intakeID
}

// SetIntakeID records the session's intake record. It reports false when an
// intake was already captured, keeping the at-most-one-per-session
// invariant.
func (s *Session) SetIntakeID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intakeID != nil {
		return false
	}
	s.intakeID = &id
	return true
}

func snapshot(h []domain.Message) []domain.Message {
	out := make([]domain.Message, len(h))
	copy(out, h)
	return out
}

// Manager tracks active sessions by ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a new session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// GetOrCreate returns the session for id, creating it on first use.
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := &Session{ID: id, CreatedAt: time.Now()}
	m.sessions[id] = s
	slog.Info("Chat session created", "session_id", id)
	return s
}

// Get returns the session for id, or nil if it does not exist.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Delete discards a session's state. Called when a session ends.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		slog.Info("Chat session discarded", "session_id", id)
	}
}

// Len returns the number of active sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
