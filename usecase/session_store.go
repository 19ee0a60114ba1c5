package usecase

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps live sessions in memory. Sessions do not survive a restart.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	entropy  *ulid.MonotonicEntropy
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		now:      time.Now,
	}
}

func (st *SessionStore) Create(buyerID string, pricing Pricing) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	id := ulid.MustNew(ulid.Timestamp(now), st.entropy).String()
	s := newSession(id, buyerID, pricing, now)
	st.sessions[id] = s
	return s
}

func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (st *SessionStore) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	return true
}

// Sweep removes sessions idle for longer than ttl and returns their ids.
func (st *SessionStore) Sweep(ttl time.Duration) []string {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	var evicted []string
	for id, s := range st.sessions {
		if s.idleSince(now) > ttl {
			delete(st.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
