package session

import "sync"

// Store provides thread-safe access to per-session state. Sessions are
// created on first access and live for the process lifetime.
type Store struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{states: make(map[string]*State)}
}

// GetOrCreate returns the state for a session, creating it if needed.
func (s *Store) GetOrCreate(sessionID string) *State {
	s.mu.RLock()
	st, ok := s.states[sessionID]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[sessionID]; ok {
		return st
	}
	st = newState(sessionID)
	s.states[sessionID] = st
	return st
}

// Get returns the state for a session, or nil if it has never been seen.
func (s *Store) Get(sessionID string) *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[sessionID]
}

// Len returns the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
