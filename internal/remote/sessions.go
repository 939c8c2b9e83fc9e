// Package remote implements the remote-agent side of tool execution: an A2A
// streaming client, per-agent session continuity, and reassembly of partial
// updates into one display transcript.
package remote

import "sync"

// Session is the conversational identity shared by all calls to one remote
// agent. ContextID persists for the life of the conversation; TaskID tracks
// the current unit of work and is cleared when the remote task completes.
type Session struct {
	ContextID string `json:"context_id"`
	TaskID    string `json:"task_id,omitempty"`
}

// SessionStore keeps sessions keyed by agent name across otherwise
// independent, ephemeral invocations. Entries are never deleted
// automatically; they are rewritten after every call, success or not, so
// continuity degrades gracefully instead of being lost on error.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]Session)}
}

// Get returns the session for an agent; the zero Session if none exists yet.
func (s *SessionStore) Get(agent string) Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[agent]
}

// Put stores the session for an agent unconditionally.
func (s *SessionStore) Put(agent string, sess Session) {
	s.mu.Lock()
	s.sessions[agent] = sess
	s.mu.Unlock()
}
