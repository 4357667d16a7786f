// Package session holds per-user application state in memory: the current
// heat-risk assessment and the mitigation plan being assembled.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/heatwise/heatwise/internal/lookup"
	"github.com/heatwise/heatwise/internal/mitigation"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Session is the state of one user. Its lookup tracker and plan have a
// single writer: every mutation happens under mu.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	lastActiveAt time.Time
	tracker      lookup.Tracker
	plan         mitigation.Plan
}

// Snapshot is a consistent read-only copy of a session.
type Snapshot struct {
	ID           string
	CreatedAt    time.Time
	LastActiveAt time.Time
	Status       lookup.Status
	Current      *lookup.Outcome
	Message      string
	Plan         []mitigation.Action
	Summary      mitigation.Summary
}

// snapshot must be called with s.mu held.
func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.lastActiveAt,
		Status:       s.tracker.Status(),
		Current:      s.tracker.Current(),
		Message:      s.tracker.Message(),
		Plan:         s.plan.Items(),
		Summary:      s.plan.Summary(),
	}
}

func (s *Session) touch(now time.Time) {
	s.lastActiveAt = now
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt
}

func (s *Session) searching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Status() == lookup.StatusSearching
}
