// Package sessionstore keeps execution sessions in a TTL and size bounded LRU.
package sessionstore

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/flexigpt/lime-go/execmodel"
)

const (
	DefaultTTL         = 24 * time.Hour
	DefaultMaxSessions = 4096
)

// Session owns one execution model. Mu serializes executions against it.
type Session struct {
	ID    string
	Mu    sync.Mutex
	Model *execmodel.Model

	// Guarded by the owning Store's lock.
	lastUsed time.Time
	elem     *list.Element

	closed atomic.Bool
}

// Closed reports whether the session was evicted or deleted.
func (s *Session) Closed() bool { return s.closed.Load() }

// Store indexes sessions by ID. Recency order lives in a list whose front
// is the most recently used session; a zero TTL or limit disables that bound.
type Store struct {
	mu    sync.Mutex
	now   func() time.Time
	ttl   time.Duration
	limit int

	recency *list.List
	byID    map[string]*Session
}

func New() *Store {
	return &Store{
		now:     time.Now,
		ttl:     DefaultTTL,
		limit:   DefaultMaxSessions,
		recency: list.New(),
		byID:    map[string]*Session{},
	}
}

func (st *Store) SetTTL(ttl time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.ttl = max(ttl, 0)
	st.pruneLocked(st.now())
}

func (st *Store) SetMaxSessions(n int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.limit = max(n, 0)
	st.pruneLocked(st.now())
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.byID)
}

// NewSession registers a session with a fresh execution model and a UUIDv7 ID.
func (st *Store) NewSession() *Session {
	s := &Session{
		ID:    uuid.Must(uuid.NewV7()).String(),
		Model: execmodel.New(),
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	s.lastUsed = st.now()
	s.elem = st.recency.PushFront(s)
	st.byID[s.ID] = s
	st.pruneLocked(s.lastUsed)
	return s
}

// Get returns a live session and marks it most recently used.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	st.pruneLocked(now)
	s, ok := st.byID[id]
	if !ok {
		return nil, false
	}
	s.lastUsed = now
	st.recency.MoveToFront(s.elem)
	return s, true
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.byID[id]; ok {
		st.dropLocked(s)
	}
}

// pruneLocked drops sessions idle longer than the TTL, then the least
// recently used ones above the size limit.
func (st *Store) pruneLocked(now time.Time) {
	for e := st.recency.Back(); e != nil; e = st.recency.Back() {
		s := e.Value.(*Session)
		expired := st.ttl > 0 && now.Sub(s.lastUsed) > st.ttl
		over := st.limit > 0 && len(st.byID) > st.limit
		if !expired && !over {
			return
		}
		st.dropLocked(s)
	}
}

func (st *Store) dropLocked(s *Session) {
	st.recency.Remove(s.elem)
	delete(st.byID, s.ID)
	s.elem = nil
	s.closed.Store(true)
}
