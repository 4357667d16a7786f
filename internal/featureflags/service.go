package featureflags

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Update errors.
var (
	ErrUnknownFlag      = errors.New("unknown feature flag")
	ErrInvalidFlagValue = errors.New("feature flag value must be a boolean")
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Store        Store
	Logger       zerolog.Logger
	CacheTTL     time.Duration // how long flags are cached in memory
	DefaultFlags map[string]*Flag
	Clock        clockwork.Clock
}

// Service provides feature flag evaluation with caching and fallback to
// defaults. A nil *Service reports every flag as off.
type Service struct {
	store        Store
	logger       zerolog.Logger
	cacheTTL     time.Duration
	defaultFlags map[string]*Flag
	clock        clockwork.Clock

	mu          sync.RWMutex
	cache       map[string]*Flag
	cacheExpiry time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Second
	}

	defaultFlags := cfg.DefaultFlags
	if defaultFlags == nil {
		defaultFlags = DefaultFlags()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Service{
		store:        cfg.Store,
		logger:       cfg.Logger,
		cacheTTL:     cacheTTL,
		defaultFlags: defaultFlags,
		clock:        clock,
		cache:        make(map[string]*Flag),
	}
}

// GetFlag retrieves a feature flag by key from cache, then the store,
// then the defaults. Returns nil for an unknown key.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if flag := s.getCached(key); flag != nil {
		return flag
	}

	flag, err := s.store.Get(ctx, key)
	if err == nil {
		s.setCached(key, flag)
		return flag
	}

	if !errors.Is(err, ErrFlagNotFound) {
		s.logger.Warn().Err(err).Str("flag", key).Msg("failed to get feature flag from store")
	}

	if defaultFlag, ok := s.defaultFlags[key]; ok {
		return defaultFlag
	}
	return nil
}

// ListFlags returns every known flag with stored values merged over the
// defaults, ordered by key.
func (s *Service) ListFlags(ctx context.Context) []Flag {
	merged := make(map[string]*Flag, len(s.defaultFlags))
	for k, v := range s.defaultFlags {
		merged[k] = v
	}

	flags, err := s.store.All(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to list feature flags, using defaults")
	} else {
		for k, v := range flags {
			merged[k] = v
		}
		s.mu.Lock()
		s.cache = flags
		s.cacheExpiry = s.clock.Now().Add(s.cacheTTL)
		s.mu.Unlock()
	}

	return sortedFlags(merged)
}

// Update applies a batch of updates atomically. Every key must be a known
// flag and every value a boolean; otherwise nothing is stored.
func (s *Service) Update(ctx context.Context, req FlagUpdateRequest) ([]Flag, error) {
	now := s.clock.Now()
	flags := make([]*Flag, 0, len(req.Updates))
	for _, u := range req.Updates {
		if _, ok := s.defaultFlags[u.Key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFlag, u.Key)
		}
		if _, ok := u.Value.(bool); !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFlagValue, u.Key)
		}
		flags = append(flags, &Flag{Key: u.Key, Value: u.Value, UpdatedAt: now})
	}

	if err := s.store.Set(ctx, flags, req.Reason); err != nil {
		return nil, fmt.Errorf("storing flags: %w", err)
	}

	s.mu.Lock()
	for _, flag := range flags {
		s.cache[flag.Key] = flag
	}
	s.mu.Unlock()

	s.logger.Info().
		Int("count", len(flags)).
		Str("reason", req.Reason).
		Msg("feature flags updated")

	return s.ListFlags(ctx), nil
}

// History returns recent flag changes, newest first, when the store keeps
// an audit trail. Otherwise it returns nil.
func (s *Service) History() []Change {
	h, ok := s.store.(interface{ History() []Change })
	if !ok {
		return nil
	}
	return h.History()
}

// InvalidateCache clears the cached flags, forcing a refresh on next access.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Flag)
	s.cacheExpiry = time.Time{}
}

// IsEnabled returns true if the flag with the given key is truthy.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	if s == nil {
		return false
	}
	return s.GetFlag(ctx, key).BoolValue(false)
}

func (s *Service) getCached(key string) *Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.clock.Now().After(s.cacheExpiry) {
		return nil
	}
	return s.cache[key]
}

func (s *Service) setCached(key string, flag *Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[key] = flag
	if now := s.clock.Now(); s.cacheExpiry.Before(now) {
		s.cacheExpiry = now.Add(s.cacheTTL)
	}
}

func sortedFlags(m map[string]*Flag) []Flag {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]Flag, 0, len(keys))
	for _, k := range keys {
		out = append(out, *m[k])
	}
	return out
}
