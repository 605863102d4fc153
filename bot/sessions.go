package bot

import "sync"

// sessionRegistry maps users to their active assistant conversation. All
// mutation happens under the owning user's lock; the internal mutex only
// guards the map itself.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]Session)}
}

func (r *sessionRegistry) get(userID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

func (r *sessionRegistry) set(userID string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = s
}

func (r *sessionRegistry) remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}
