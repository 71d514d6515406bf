// Package session keeps the live conversation sessions of the process.
package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/trip-planner/internal/domain"
	"github.com/ashureev/trip-planner/internal/state"
)

// ErrTurnInProgress is returned when a second turn arrives for a session
// that is still processing one.
var ErrTurnInProgress = errors.New("turn already in progress for session")

// Session is one live conversation. Its State and Events are only touched
// by the goroutine holding the turn lock.
type Session struct {
	ID        string
	UserID    string
	State     *state.State
	Events    []domain.Message
	CreatedAt time.Time
	UpdatedAt time.Time

	turn   sync.Mutex
	inTurn atomic.Bool
}

// New creates a session with an empty state.
func New(id, userID string, now time.Time) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		State:     state.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TryBeginTurn acquires the turn lock without blocking.
func (s *Session) TryBeginTurn() error {
	if !s.turn.TryLock() {
		return ErrTurnInProgress
	}
	s.inTurn.Store(true)
	return nil
}

// EndTurn releases the turn lock.
func (s *Session) EndTurn() {
	s.inTurn.Store(false)
	s.turn.Unlock()
}

// Busy reports whether a turn is running.
func (s *Session) Busy() bool {
	return s.inTurn.Load()
}

// AppendEvent records a message in the session transcript.
func (s *Session) AppendEvent(role, content string, at time.Time) {
	s.Events = append(s.Events, domain.Message{Role: role, Content: content, Timestamp: at})
	s.UpdatedAt = at
}

// Transcript returns a copy of the session messages.
func (s *Session) Transcript() []domain.Message {
	return append([]domain.Message(nil), s.Events...)
}
