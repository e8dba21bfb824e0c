package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strataviz/strataflow/pkg/tree"
)

// Session owns one classification tree. All access to the tree goes
// through With, which serializes on the session's mutex so concurrent
// requests against the same session never observe a half-applied mutation.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	tree     *tree.Tree
	lastUsed time.Time
}

// With runs fn while holding the session lock. fn gets the live tree;
// mutations made through it are visible to later calls.
func (s *Session) With(fn func(tr *tree.Tree) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	return fn(s.tree)
}

// SessionStore tracks per-session trees keyed by uuid. Expired sessions
// are reaped lazily on access and by Cleanup.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	catalog  *tree.Catalog
	ttl      time.Duration
}

// NewSessionStore creates a store whose sessions start with a fresh tree
// built on the given catalog.
func NewSessionStore(catalog *tree.Catalog, ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		catalog:  catalog,
		ttl:      ttl,
	}
}

// Create starts a new session with a root-only tree.
func (st *SessionStore) Create() *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		tree:      tree.New(st.catalog),
		lastUsed:  now,
	}

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the session with the given id, or false when it does not
// exist or has expired.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	expired := time.Since(s.lastUsed) > st.ttl
	s.mu.Unlock()
	if expired {
		st.Delete(id)
		return nil, false
	}
	return s, true
}

// Delete removes a session. Removing a missing id is a no-op.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Cleanup removes every expired session and returns how many were
// removed. Meant to run periodically from the server loop.
func (st *SessionStore) Cleanup() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, s := range st.sessions {
		s.mu.Lock()
		expired := now.Sub(s.lastUsed) > st.ttl
		s.mu.Unlock()
		if expired {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}
