package realtime

import "sync"

// SessionRegistry exposes the session id of the current connection to REST callers.
//
// The connection handshake is the only writer. Last write wins.
type SessionRegistry struct {
	mu sync.RWMutex
	id string
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{}
}

// Get returns the current session id, or "" before a handshake completes.
func (r *SessionRegistry) Get() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.id
}

// Set replaces the session id.
func (r *SessionRegistry) Set(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
}
