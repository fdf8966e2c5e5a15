// Package session is the per-chat conversation store. One Session per
// chat id holds the FSM state, the typed drafts being collected and the
// ids of bot messages pending deletion.
package session

import (
	"sync"

	"github.com/stemly/regbot/internal/identity"
)

// State is a conversation FSM state tag.
type State string

// StateIdle means no conversation is in progress for the chat.
const StateIdle State = ""

// ParentDraft accumulates parent answers until confirmation.
type ParentDraft struct {
	FirstName string
	LastName  string
	Phone     string
	City      string
	Email     string
}

// ChildDraft accumulates one child's answers. Every "add another child"
// iteration gets a fresh draft, so nothing is ever nulled field by field.
type ChildDraft struct {
	FirstName   string
	LastName    string
	DOB         string
	Grade       int
	City        string
	Interests   []string
	ExodeUserID string
	LookupPhone string
	Found       *identity.Record
}

// Session is the per-chat conversation record.
type Session struct {
	State State
	Lang  string
	Role  string

	Parent *ParentDraft
	Child  *ChildDraft

	// Pending holds ids of messages created during the current screen,
	// in insertion order. Flushed (deleted) on screen transitions.
	Pending []int

	// Editing makes the next completed field write jump back to the
	// confirmation screen instead of advancing linearly.
	Editing bool

	MenuMessageID int
}

// EnsureParent returns the parent draft, allocating it on first use.
func (s *Session) EnsureParent() *ParentDraft {
	if s.Parent == nil {
		s.Parent = &ParentDraft{}
	}
	return s.Parent
}

// EnsureChild returns the child draft, allocating it on first use.
func (s *Session) EnsureChild() *ChildDraft {
	if s.Child == nil {
		s.Child = &ChildDraft{}
	}
	return s.Child
}

// ResetChild discards the current child draft so the next loop
// iteration starts clean.
func (s *Session) ResetChild() {
	s.Child = nil
}

// Track appends message ids to the pending deletion list.
func (s *Session) Track(ids ...int) {
	for _, id := range ids {
		if id != 0 {
			s.Pending = append(s.Pending, id)
		}
	}
}

// Manager owns all sessions, keyed by chat id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewManager constructs an empty in-memory Manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[int64]*Session)}
}

// Get returns the session for a chat, creating it if necessary.
func (m *Manager) Get(chatID int64) *Session {
	m.mu.RLock()
	s, ok := m.sessions[chatID]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.sessions[chatID]; ok {
		return s
	}
	s = &Session{State: StateIdle}
	m.sessions[chatID] = s
	return s
}

// Peek returns the session without creating one.
func (m *Manager) Peek(chatID int64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[chatID]
	return s, ok
}

// Update runs fn against the chat's session under the write lock.
func (m *Manager) Update(chatID int64, fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		s = &Session{State: StateIdle}
		m.sessions[chatID] = s
	}
	fn(s)
}

// SetState replaces the FSM state for a chat.
func (m *Manager) SetState(chatID int64, st State) {
	m.Update(chatID, func(s *Session) { s.State = st })
}

// StateOf returns the current FSM state for a chat.
func (m *Manager) StateOf(chatID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[chatID]; ok {
		return s.State
	}
	return StateIdle
}

// InProgress reports whether the chat has an active conversation.
func (m *Manager) InProgress(chatID int64) bool {
	return m.StateOf(chatID) != StateIdle
}

// Clear removes the whole session for a chat (hard reset).
func (m *Manager) Clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}
