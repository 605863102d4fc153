package bot

import "sync"

// lockRegistry hands out per-user mutexes. Entries are refcounted and
// removed when the last holder releases, so the map does not grow with the
// user population.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: make(map[string]*userLock)}
}

// acquire blocks until the user's lock is held and returns the release
// function.
func (r *lockRegistry) acquire(userID string) func() {
	r.mu.Lock()
	l, ok := r.locks[userID]
	if !ok {
		l = &userLock{}
		r.locks[userID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, userID)
		}
		r.mu.Unlock()
	}
}
