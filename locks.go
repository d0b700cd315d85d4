package payflow

import "sync"

// recordLocks serializes mutation per record id. Cross-id operations
// share nothing and proceed fully in parallel. Locks are created on
// first use and never reclaimed; the set of ids an instance touches is
// bounded by its retention policy.
type recordLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRecordLocks() *recordLocks {
	return &recordLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for id and returns the unlock func.
func (l *recordLocks) acquire(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
