package featureflags

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrFlagNotFound is returned by a Store for keys it holds no value for.
var ErrFlagNotFound = errors.New("feature flag not found")

// Store holds flag values that override the defaults.
type Store interface {
	Get(ctx context.Context, key string) (*Flag, error)
	All(ctx context.Context) (map[string]*Flag, error)

	// Set stores every flag in one step and records reason with the change.
	Set(ctx context.Context, flags []*Flag, reason string) error
}

// Change is one entry of a MemoryStore's audit trail.
type Change struct {
	Key    string    `json:"key"`
	Value  any       `json:"value"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// maxHistory bounds the audit trail kept in memory.
const maxHistory = 100

// MemoryStore keeps flags in process memory; values reset on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	flags   map[string]*Flag
	history []Change
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: make(map[string]*Flag)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flag, ok := s.flags[key]
	if !ok {
		return nil, ErrFlagNotFound
	}
	cp := *flag
	return &cp, nil
}

func (s *MemoryStore) All(_ context.Context) (map[string]*Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*Flag, len(s.flags))
	for k, v := range s.flags {
		cp := *v
		out[k] = &cp
	}
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, flags []*Flag, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, flag := range flags {
		cp := *flag
		s.flags[flag.Key] = &cp
		s.history = append(s.history, Change{Key: flag.Key, Value: flag.Value, Reason: reason, At: flag.UpdatedAt})
	}
	if over := len(s.history) - maxHistory; over > 0 {
		s.history = slices.Delete(s.history, 0, over)
	}
	return nil
}

// History returns the recorded changes, newest first.
func (s *MemoryStore) History() []Change {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.history)
	slices.Reverse(out)
	return out
}

var _ Store = (*MemoryStore)(nil)
