package weather

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/heatwise/heatwise/internal/featureflags"
)

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger

	// Flags gates provider calls at runtime. Optional.
	Flags FlagChecker

	// CacheTTL is how long a reading counts as fresh. Default: 10 minutes.
	CacheTTL time.Duration

	// CacheGridSize is the edge of a cache cell in degrees. Points in the
	// same cell share a reading. Default: 0.02 (about 2 km).
	CacheGridSize float64

	// StaleTTL is how long after fetching a reading may still be served in
	// cached-only mode. Older entries are swept. Default: 1 hour.
	StaleTTL time.Duration

	Clock clockwork.Clock
}

// Service serves current readings from a grid-cell cache.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	flags    FlagChecker
	clock    clockwork.Clock

	ttl      time.Duration
	grid     float64
	staleTTL time.Duration

	inflight singleflight.Group

	mu        sync.RWMutex
	cells     map[cell]entry
	lastSweep time.Time
}

// cell identifies one square of the cache grid.
type cell struct{ row, col int64 }

func (c cell) String() string {
	return strconv.FormatInt(c.row, 10) + ":" + strconv.FormatInt(c.col, 10)
}

type entry struct {
	reading   *Reading
	fetchedAt time.Time
}

const sweepInterval = 5 * time.Minute

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		flags:    cfg.Flags,
		clock:    cfg.Clock,
		ttl:      cfg.CacheTTL,
		grid:     cfg.CacheGridSize,
		staleTTL: cfg.StaleTTL,
		cells:    make(map[cell]entry),
	}
	if s.ttl == 0 {
		s.ttl = 10 * time.Minute
	}
	if s.grid == 0 {
		s.grid = 0.02
	}
	if s.staleTTL == 0 {
		s.staleTTL = time.Hour
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	return s
}

// GetCurrent returns the reading for the cell containing (lat, lon). A fresh
// cached reading is returned as is. Otherwise the provider is asked, once per
// cell however many callers are waiting. A provider failure is returned as
// ErrProviderUnavailable even when the cell holds an older reading. With
// FlagCachedOnlyWeather on, the provider is never called and a stale reading
// is served instead.
func (s *Service) GetCurrent(ctx context.Context, lat, lon float64) (*Reading, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	c := s.cellOf(lat, lon)
	e, ok := s.lookup(c)
	now := s.clock.Now()
	if ok && now.Sub(e.fetchedAt) < s.ttl {
		return e.reading, nil
	}

	if s.flags != nil && s.flags.IsEnabled(ctx, featureflags.FlagCachedOnlyWeather) {
		if ok && s.usableStale(e, now) {
			s.logger.Warn().Time("fetched_at", e.fetchedAt).Msg("cached-only mode, serving stale weather")
			return e.reading, nil
		}
		return nil, ErrProviderUnavailable
	}

	v, err, _ := s.inflight.Do(c.String(), func() (any, error) {
		return s.fetch(ctx, c, lat, lon)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Reading), nil
}

// Refresh asks the provider for a new reading regardless of the cache and
// stores it.
func (s *Service) Refresh(ctx context.Context, lat, lon float64) (*Reading, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	reading, err := s.provider.GetCurrent(ctx, lat, lon)
	if err != nil {
		return nil, fmt.Errorf("refreshing weather: %w", err)
	}
	s.put(s.cellOf(lat, lon), reading)
	return reading, nil
}

func (s *Service) fetch(ctx context.Context, c cell, lat, lon float64) (*Reading, error) {
	// Another caller may have filled the cell while this one queued.
	if e, ok := s.lookup(c); ok && s.clock.Now().Sub(e.fetchedAt) < s.ttl {
		return e.reading, nil
	}

	log := s.logger.With().Str("cell", c.String()).Str("provider", s.provider.Name()).Logger()
	log.Debug().Msg("fetching weather")

	reading, err := s.provider.GetCurrent(ctx, lat, lon)
	if err == nil {
		s.put(c, reading)
		return reading, nil
	}

	log.Error().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("weather fetch failed")
	return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
}

func (s *Service) usableStale(e entry, now time.Time) bool {
	return now.Sub(e.fetchedAt) < s.staleTTL
}

func (s *Service) lookup(c cell) (entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cells[c]
	return e, ok
}

func (s *Service) put(c cell, reading *Reading) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cells[c] = entry{reading: reading, fetchedAt: now}
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now
	dropped := 0
	for k, e := range s.cells {
		if !s.usableStale(e, now) {
			delete(s.cells, k)
			dropped++
		}
	}
	if dropped > 0 {
		s.logger.Debug().Int("dropped", dropped).Msg("swept weather cache")
	}
}

func (s *Service) cellOf(lat, lon float64) cell {
	return cell{
		row: int64(math.Floor(lat / s.grid)),
		col: int64(math.Floor(lon / s.grid)),
	}
}

// InvalidateCache drops every cached reading.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.cells)
}

// CacheStats describes the cache contents.
type CacheStats struct {
	Entries      int
	FreshEntries int
	Provider     string
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	stats := CacheStats{Entries: len(s.cells), Provider: s.provider.Name()}
	for _, e := range s.cells {
		if now.Sub(e.fetchedAt) < s.ttl {
			stats.FreshEntries++
		}
	}
	return stats
}

func validateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
