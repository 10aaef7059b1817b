package session

import (
	"sync"
	"time"
)

// entry pairs a session with the lock that serializes mutations to it.
// Holding entry.mu while swapping entry.session guarantees at most one
// in-flight mutation per session. Readers (GetSession, GetAllSessions) take
// entry.mu too, so a read waits for an in-flight mutation of that session
// and then sees its committed value.
type entry struct {
	mu      sync.Mutex
	session Session
}

// Service is a concurrency-safe in-memory session store. It is grounded on
// the registry's single sync.RWMutex-guarded map pattern, extended with a
// per-entry mutex so concurrent updates to different sessions never block
// each other, while updates to the same session serialize.
type Service struct {
	mu      sync.RWMutex
	entries map[string]*entry

	ttl     time.Duration
	nowFunc func() time.Time
}

// Option configures a Service at construction.
type Option func(*Service)

// WithTTL sets the idle eviction window. Zero (the default) disables
// time-based eviction.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowFunc = now }
}

// NewService creates an empty session store.
func NewService(opts ...Option) *Service {
	s := &Service{
		entries: make(map[string]*entry),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetSession returns the session for id, and false if it doesn't exist or
// has expired under the configured TTL.
func (s *Service) GetSession(id string) (Session, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.expired(e.session) {
		return Session{}, false
	}
	return e.session, true
}

// GetOrCreateSession returns the existing session for id, creating one with
// default state if absent or expired.
func (s *Service) GetOrCreateSession(id string) Session {
	now := s.nowFunc()

	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		e = &entry{session: NewSession(id, now)}
		s.mu.Lock()
		if existing, ok := s.entries[id]; ok {
			e = existing
		} else {
			s.entries[id] = e
		}
		s.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s.expired(e.session) {
		e.session = NewSession(id, now)
	}
	e.session = e.session.touch(now)
	return e.session
}

// UpdateSession atomically applies mutate to the session's current
// committed state and stores the result, returning it. mutate must be a
// pure function of its input; it may be invoked while the entry lock is
// held so it must not call back into the Service.
func (s *Service) UpdateSession(id string, mutate func(Session) Session) Session {
	now := s.nowFunc()

	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		e = &entry{session: NewSession(id, now)}
		s.entries[id] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if s.expired(e.session) {
		e.session = NewSession(id, now)
	}
	e.session = mutate(e.session).touch(now)
	return e.session
}

// DeleteSession removes a session unconditionally.
func (s *Service) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// GetAllSessions returns a snapshot of every non-expired session, keyed by
// ID. The snapshot is safe to range over without holding any lock.
func (s *Service) GetAllSessions() map[string]Session {
	s.mu.RLock()
	ids := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		ids = append(ids, e)
	}
	s.mu.RUnlock()

	out := make(map[string]Session, len(ids))
	for _, e := range ids {
		e.mu.Lock()
		if !s.expired(e.session) {
			out[e.session.ID] = e.session
		}
		e.mu.Unlock()
	}
	return out
}

// EvictExpired removes every session whose last activity is older than the
// configured TTL, returning the count removed. Nothing in this module runs
// it on a schedule; until it is called, expired entries stay in the map and
// are only treated as absent (GetSession, GetAllSessions) or replaced
// (GetOrCreateSession, UpdateSession).
func (s *Service) EvictExpired() int {
	if s.ttl <= 0 {
		return 0
	}
	now := s.nowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		e.mu.Lock()
		stale := now.Sub(e.session.LastActiveAt) > s.ttl
		e.mu.Unlock()
		if stale {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *Service) expired(sess Session) bool {
	if s.ttl <= 0 {
		return false
	}
	return s.nowFunc().Sub(sess.LastActiveAt) > s.ttl
}
