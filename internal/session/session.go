package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultMaxTurns = 8

// Turn is one question/answer exchange in a session.
type Turn struct {
	Question string
	Answer   string
	AskedAt  time.Time
}

// History holds the rolling exchange history for one session, bounded to the
// most recent maxTurns entries. Oldest turns are evicted first so the prompt
// stays bounded no matter how long a conversation runs.
type History struct {
	mu       sync.Mutex
	maxTurns int
	turns    []Turn
}

// NewHistory creates an empty history capped at maxTurns.
// If maxTurns <= 0, the default (8) is used.
func NewHistory(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &History{maxTurns: maxTurns}
}

// Append adds a turn, evicting the oldest once the cap is reached.
func (h *History) Append(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, t)
	if len(h.turns) > h.maxTurns {
		// Shift in place rather than re-slicing so the backing array does
		// not grow without bound.
		copy(h.turns, h.turns[len(h.turns)-h.maxTurns:])
		h.turns = h.turns[:h.maxTurns]
	}
}

// Snapshot returns a copy of the turns, oldest first. Reading never mutates
// the history.
func (h *History) Snapshot() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the current number of stored turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Store maps session IDs to their histories. Sessions are in-memory only and
// isolated from each other; they vanish when the process exits.
type Store struct {
	mu       sync.Mutex
	maxTurns int
	sessions map[string]*History
}

// NewStore creates a session store whose histories are capped at maxTurns.
func NewStore(maxTurns int) *Store {
	return &Store{
		maxTurns: maxTurns,
		sessions: make(map[string]*History),
	}
}

// Get returns the history for a session ID, creating it on first use.
// An empty ID gets a fresh session; the generated ID is returned alongside
// the history so the caller can hand it back to the client.
func (s *Store) Get(id string) (string, *History) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}
	h, ok := s.sessions[id]
	if !ok {
		h = NewHistory(s.maxTurns)
		s.sessions[id] = h
	}
	return id, h
}

// End discards a session's history.
func (s *Store) End(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
