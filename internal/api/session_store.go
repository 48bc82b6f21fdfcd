package api

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jbweber/homelab/preinstall/internal/domain"
	"github.com/jbweber/homelab/preinstall/internal/session"
)

// ErrSessionNotFound is returned for unknown session IDs
var ErrSessionNotFound = errors.New("session not found")

// SessionFactory starts a session for a host
type SessionFactory func(host domain.HostInfo) (*session.Session, error)

type lockedSession struct {
	mu sync.Mutex
	s  *session.Session
}

// SessionStore keeps live sessions in memory. Each session is driven by at
// most one request at a time.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*lockedSession
	factory  SessionFactory
}

// NewSessionStore creates an empty store that starts sessions with factory
func NewSessionStore(factory SessionFactory) *SessionStore {
	return &SessionStore{
		sessions: map[string]*lockedSession{},
		factory:  factory,
	}
}

// Create starts and stores a new session
func (st *SessionStore) Create(host domain.HostInfo) (session.Snapshot, error) {
	s, err := st.factory(host)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to start session: %w", err)
	}

	st.mu.Lock()
	st.sessions[s.ID()] = &lockedSession{s: s}
	st.mu.Unlock()

	return s.Snapshot(), nil
}

// Do runs fn with exclusive access to the session
func (st *SessionStore) Do(id string, fn func(*session.Session) error) error {
	st.mu.RLock()
	ls, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return fn(ls.s)
}

// Delete drops a session
func (st *SessionStore) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(st.sessions, id)
	return nil
}

// Len returns the number of live sessions
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
