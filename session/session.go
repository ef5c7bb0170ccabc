// Package session keeps bounded per-session conversation history for the
// lifetime of the process.
package session

import (
	"sync"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a session's history.
type Turn struct {
	Role    string
	Content string
}

// Manager holds ordered history per session id, capped at a maximum number
// of exchanges (a user turn plus its assistant turn). Oldest turns are
// evicted first. Sessions are created lazily on first use and live until
// the process exits.
type Manager struct {
	maxExchanges int

	mu       sync.RWMutex
	sessions map[string]*history
}

// history serializes appends and reads for one session id; separate
// sessions never contend on each other's lock.
type history struct {
	mu    sync.Mutex
	turns []Turn
}

func NewManager(maxExchanges int) *Manager {
	if maxExchanges <= 0 {
		maxExchanges = 2
	}
	return &Manager{
		maxExchanges: maxExchanges,
		sessions:     make(map[string]*history),
	}
}

// NewSessionID returns a fresh session identifier for callers that did not
// supply one.
func (m *Manager) NewSessionID() string {
	return "session_" + uuid.NewString()
}

// History returns a copy of the session's turns in order, oldest first.
// Unknown session ids yield an empty history, never an error.
func (m *Manager) History(sessionID string) []Turn {
	m.mu.RLock()
	entry, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return append([]Turn(nil), entry.turns...)
}

// AddExchange appends a completed user/assistant pair and evicts the oldest
// turns beyond the exchange cap.
func (m *Manager) AddExchange(sessionID, userText, assistantText string) {
	entry := m.session(sessionID)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.turns = append(entry.turns,
		Turn{Role: RoleUser, Content: userText},
		Turn{Role: RoleAssistant, Content: assistantText},
	)

	maxTurns := m.maxExchanges * 2
	if len(entry.turns) > maxTurns {
		entry.turns = append([]Turn(nil), entry.turns[len(entry.turns)-maxTurns:]...)
	}
}

func (m *Manager) session(sessionID string) *history {
	m.mu.RLock()
	entry, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		return entry
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok = m.sessions[sessionID]; ok {
		return entry
	}
	entry = &history{}
	m.sessions[sessionID] = entry
	return entry
}
