// Package chat implements the retrieval-augmented product chat pipeline:
// per-session conversation memory, the Groq chat model client, and the
// AstraDB retriever.
package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one turn of a conversation, OpenAI-style.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session holds the conversation history for one chat session.
type Session struct {
	ID string

	mu         sync.Mutex
	messages   []Message
	lastActive time.Time
	maxTurns   int
}

// Append records one exchange and bounds the history to the configured
// number of turns.
func (s *Session) Append(userMsg, assistantMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages,
		Message{Role: "user", Content: userMsg},
		Message{Role: "assistant", Content: assistantMsg},
	)
	if max := s.maxTurns * 2; max > 0 && len(s.messages) > max {
		s.messages = s.messages[len(s.messages)-max:]
	}
	s.lastActive = time.Now()
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Store keys sessions by identifier. Sessions are created on first message
// and evicted after the inactivity timeout; conversation memory is never
// shared across sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	maxTurns int
}

// NewStore creates a session store with the given inactivity timeout and
// per-session turn cap.
func NewStore(ttl time.Duration, maxTurns int) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		maxTurns: maxTurns,
	}
}

// Get returns the session with the given id, creating it if needed. An empty
// id yields a fresh session with a generated identifier.
func (st *Store) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	s, ok := st.sessions[id]
	if !ok {
		s = &Session{ID: id, lastActive: time.Now(), maxTurns: st.maxTurns}
		st.sessions[id] = s
		return s
	}
	s.touch()
	return s
}

// Sweep evicts sessions idle past the timeout and returns how many were
// removed.
func (st *Store) Sweep() int {
	cutoff := time.Now().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()
	evicted := 0
	for id, s := range st.sessions {
		if s.idleSince().Before(cutoff) {
			delete(st.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
