package call

import (
	"errors"
	"sync"
)

var ErrSessionExists = errors.New("a session for this call is already active")

// Registry tracks live sessions by call id. It is the only state shared
// between sessions and is owned by the server that accepts connections.
//
// A call id is reserved before its upstream is dialed and bound to the
// session once that exists, so a second listener is turned away without
// touching the upstream.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Reserve claims callID. It fails with ErrSessionExists while another
// connection holds the id, whether or not its session is running yet.
func (r *Registry) Reserve(callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[callID]; ok {
		return ErrSessionExists
	}
	r.sessions[callID] = nil
	return nil
}

// Bind attaches s to the reservation of its call id.
func (r *Registry) Bind(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.CallID] = s
}

// Release frees callID. Only the holder of the reservation calls it.
func (r *Registry) Release(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callID)
}

// Get returns the running session of callID. A reservation whose session
// has not started yet is not reported.
func (r *Registry) Get(callID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.sessions[callID]
	return s, s != nil
}

// Len counts reserved call ids, running or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll tears down every running session.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s != nil {
			sessions = append(sessions, s)
		}
	}
	r.mu.RUnlock()
	for _, s := range sessions {
		s.CleanupResources()
	}
}
