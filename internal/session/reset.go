// Package session tracks per-session UI state. Its one concern today is the
// confirm-then-clear gate in front of the destructive ledger reset.
package session

import "sync"

type State int

const (
	Idle State = iota
	AwaitingConfirmation
)

// ResetManager is the confirmation state machine, keyed by session id so
// concurrent sessions never see each other's pending confirmation. State
// persists until the session's next explicit action; there is no timeout.
type ResetManager struct {
	mu       sync.Mutex
	sessions map[string]State
}

func NewResetManager() *ResetManager {
	return &ResetManager{sessions: make(map[string]State)}
}

// State reports the session's current position in the flow.
func (m *ResetManager) State(id string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Request moves the session to AwaitingConfirmation. Requesting again while
// already waiting is a no-op.
func (m *ResetManager) Request(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = AwaitingConfirmation
}

// Confirm reports whether the reset may execute: true only when the session
// was awaiting confirmation. Either way the session returns to Idle.
func (m *ResetManager) Confirm(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := m.sessions[id] == AwaitingConfirmation
	delete(m.sessions, id)
	return ok
}

// Cancel returns the session to Idle without executing.
func (m *ResetManager) Cancel(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
