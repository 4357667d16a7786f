package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/heatwise/heatwise/internal/lookup"
	"github.com/heatwise/heatwise/internal/mitigation"
	"github.com/heatwise/heatwise/internal/observability"
)

// Runner performs a lookup.
type Runner interface {
	Run(ctx context.Context, query string) (*lookup.Outcome, error)
}

// ServiceConfig holds configuration for the session service.
type ServiceConfig struct {
	Store   *Store
	Runner  Runner
	Logger  zerolog.Logger
	Metrics *observability.Metrics

	// TTL is how long an idle session is kept (default: 24 hours).
	TTL time.Duration

	// Clock is the time source (default: real clock).
	Clock clockwork.Clock
}

// Service coordinates session state with lookups and plan edits.
type Service struct {
	store   *Store
	runner  Runner
	logger  zerolog.Logger
	metrics *observability.Metrics
	ttl     time.Duration
	clock   clockwork.Clock
}

// NewService creates a new session service.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Store
	if store == nil {
		store = NewStore()
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Service{
		store:   store,
		runner:  cfg.Runner,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		ttl:     ttl,
		clock:   clock,
	}
}

// Create starts a new idle session with an empty plan.
func (svc *Service) Create() Snapshot {
	now := svc.clock.Now()
	s := &Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		lastActiveAt: now,
	}
	svc.store.Put(s)
	svc.metrics.SetActiveSessions(svc.store.Len())

	svc.logger.Debug().Str("session_id", s.ID).Msg("session created")

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Get returns a snapshot of the session.
func (svc *Service) Get(id string) (Snapshot, error) {
	s, err := svc.store.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// Lookup runs a lookup for the session and returns the resulting snapshot.
// A second lookup while one is running fails with lookup.ErrInFlight.
//
// The lookup is detached from ctx: if ctx ends first, Lookup returns
// ctx.Err() but the lookup still completes and updates the session.
func (svc *Service) Lookup(ctx context.Context, id, query string) (Snapshot, error) {
	s, err := svc.store.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	err = s.tracker.Begin()
	s.touch(svc.clock.Now())
	s.mu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}

	type result struct {
		snap Snapshot
		err  error
	}
	done := make(chan result, 1)

	go func() {
		out, err := svc.run(context.WithoutCancel(ctx), id, query)

		s.mu.Lock()
		if err != nil {
			s.tracker.Fail(err)
		} else {
			s.tracker.Succeed(out)
		}
		s.touch(svc.clock.Now())
		snap := s.snapshot()
		s.mu.Unlock()

		done <- result{snap: snap, err: err}
	}()

	select {
	case r := <-done:
		return r.snap, r.err
	case <-ctx.Done():
		svc.logger.Debug().Str("session_id", id).Msg("client left before lookup finished")
		return Snapshot{}, ctx.Err()
	}
}

// run calls the runner, turning a panic into a failed search so the tracker
// always leaves the searching state.
func (svc *Service) run(ctx context.Context, id, query string) (out *lookup.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			svc.logger.Error().Str("session_id", id).Interface("panic", r).Msg("lookup panicked")
			out, err = nil, fmt.Errorf("%w: %v", lookup.ErrSearchFailed, r)
		}
	}()
	return svc.runner.Run(ctx, query)
}

// AddAction appends a catalog action to the session's plan.
func (svc *Service) AddAction(id, actionID string) (Snapshot, error) {
	action, err := mitigation.Lookup(actionID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("adding %q: %w", actionID, err)
	}

	s, err := svc.store.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan.Add(action)
	s.touch(svc.clock.Now())
	return s.snapshot(), nil
}

// ClearPlan empties the session's plan.
func (svc *Service) ClearPlan(id string) (Snapshot, error) {
	s, err := svc.store.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan.Clear()
	s.touch(svc.clock.Now())
	return s.snapshot(), nil
}

// Delete discards a session.
func (svc *Service) Delete(id string) error {
	if _, err := svc.store.Get(id); err != nil {
		return err
	}
	svc.store.Delete(id)
	svc.metrics.SetActiveSessions(svc.store.Len())
	return nil
}

// Count returns the number of live sessions.
func (svc *Service) Count() int {
	return svc.store.Len()
}

// Sweep removes sessions idle for longer than the TTL.
func (svc *Service) Sweep() int {
	removed := svc.store.Sweep(svc.clock.Now().Add(-svc.ttl))
	svc.metrics.SetActiveSessions(svc.store.Len())
	if removed > 0 {
		svc.logger.Info().Int("removed", removed).Msg("expired idle sessions")
	}
	return removed
}

// RunJanitor sweeps expired sessions every interval until ctx is done.
func (svc *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := svc.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			svc.Sweep()
		}
	}
}
