package session

import "time"

// Session is the mutable container the service stores per session ID. Its
// State field is always replaced wholesale, never edited through a pointer,
// so readers that took a copy of Session.State before a concurrent update
// keep seeing the pre-update value.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActiveAt time.Time
	State        State
	History      []Interaction
}

// touch returns a copy with LastActiveAt bumped to now.
func (s Session) touch(now time.Time) Session {
	s.LastActiveAt = now
	return s
}

// NewSession creates a session with default state.
func NewSession(id string, now time.Time) Session {
	return Session{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
		State:        NewState(),
	}
}
