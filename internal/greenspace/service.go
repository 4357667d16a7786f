package greenspace

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/heatwise/heatwise/internal/featureflags"
	"github.com/heatwise/heatwise/internal/observability"
)

// ServiceConfig holds configuration for the greenspace service.
type ServiceConfig struct {
	// Provider supplies green area outlines.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Flags gates provider calls at runtime. Optional.
	Flags FlagChecker

	// Metrics receives fallback and skip counts. Optional.
	Metrics *observability.Metrics

	// CacheTTL is how long a computed estimate is reused (default: 6 hours).
	// Land cover changes far slower than weather.
	CacheTTL time.Duration

	// Clock is the time source for cache expiry (default: real clock).
	Clock clockwork.Clock
}

// Service estimates greenspace coverage. It never fails: any error while
// fetching outlines produces a fallback Estimate.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	flags    FlagChecker
	metrics  *observability.Metrics
	cacheTTL time.Duration
	clock    clockwork.Clock

	mu    sync.RWMutex
	cache map[string]cachedEstimate
}

type cachedEstimate struct {
	estimate  Estimate
	expiresAt time.Time
}

// NewService creates a new greenspace service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 6 * time.Hour
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		flags:    cfg.Flags,
		metrics:  cfg.Metrics,
		cacheTTL: cacheTTL,
		clock:    clock,
		cache:    make(map[string]cachedEstimate),
	}
}

// Estimate returns the greenspace percentage within RadiusMeters of the
// point. Fallback estimates are never cached.
func (s *Service) Estimate(ctx context.Context, lat, lon float64) Estimate {
	center := orb.Point{lon, lat}
	circle := ReferenceCircle(center, RadiusMeters, CircleSegments)

	if s.flags != nil && s.flags.IsEnabled(ctx, featureflags.FlagDisableGreenspace) {
		s.metrics.ObserveGreenspace(true, 0)
		return fallback(circle, ErrDisabled)
	}

	key := cacheKey(lat, lon)
	if est, ok := s.cached(key); ok {
		return est
	}

	est, err := s.compute(ctx, center, circle)
	if err != nil {
		s.logger.Warn().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("greenspace estimate failed, using fallback")
		s.metrics.ObserveGreenspace(true, 0)
		return fallback(circle, err)
	}

	s.metrics.ObserveGreenspace(false, est.Skipped)
	s.store(key, est)
	return est
}

// Refresh recomputes the estimate for a point, bypassing the cache. It
// returns an error instead of a fallback so callers can count failures.
func (s *Service) Refresh(ctx context.Context, lat, lon float64) (Estimate, error) {
	center := orb.Point{lon, lat}
	est, err := s.compute(ctx, center, ReferenceCircle(center, RadiusMeters, CircleSegments))
	if err != nil {
		return Estimate{}, err
	}
	s.store(cacheKey(lat, lon), est)
	return est, nil
}

func (s *Service) compute(ctx context.Context, center orb.Point, circle orb.Ring) (est Estimate, err error) {
	// Geometry code panics on inputs it cannot handle; treat that as a
	// failed step like any other.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("computing coverage: %v", r)
		}
	}()

	elements, err := s.provider.Elements(ctx, center, RadiusMeters)
	if err != nil {
		return Estimate{}, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	rings := make([]orb.Ring, 0, len(elements))
	kept := make([]Element, 0, len(elements))
	skipped := 0
	for _, el := range elements {
		ring, err := RingFromVertices(el.Geometry)
		if err != nil {
			skipped++
			s.logger.Debug().Err(err).Int64("element_id", el.ID).Msg("skipping element")
			continue
		}
		rings = append(rings, ring)
		kept = append(kept, el)
	}

	pct, included := Coverage(circle, rings)

	fc := geojson.NewFeatureCollection()
	for _, i := range included {
		f := geojson.NewFeature(orb.Polygon{rings[i]})
		f.ID = kept[i].ID
		for k, v := range kept[i].Tags {
			f.Properties[k] = v
		}
		fc.Append(f)
	}

	s.logger.Debug().
		Int("elements", len(elements)).
		Int("included", len(included)).
		Int("skipped", skipped).
		Float64("pct", pct).
		Msg("greenspace estimated")

	return Estimate{
		Pct:      pct,
		Included: len(included),
		Skipped:  skipped,
		Circle:   circle,
		Features: fc,
	}, nil
}

func (s *Service) cached(key string) (Estimate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cache[key]
	if !ok || !s.clock.Now().Before(c.expiresAt) {
		return Estimate{}, false
	}
	return c.estimate, true
}

func (s *Service) store(key string, est Estimate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for k, c := range s.cache {
		if !now.Before(c.expiresAt) {
			delete(s.cache, k)
		}
	}
	s.cache[key] = cachedEstimate{estimate: est, expiresAt: now.Add(s.cacheTTL)}
}

// cacheKey rounds to roughly 10 m so repeated lookups of one place share an
// entry.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f:%.4f", math.Round(lat*1e4)/1e4, math.Round(lon*1e4)/1e4)
}
