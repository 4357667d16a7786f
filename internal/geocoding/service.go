package geocoding

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/heatwise/heatwise/internal/observability"
)

// ServiceConfig holds configuration for the geocoding service.
type ServiceConfig struct {
	// Provider is the geocoding data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics receives cache hit/miss counts. Optional.
	Metrics *observability.Metrics

	// CacheSize is the maximum number of cached queries (default: 1000).
	CacheSize int

	// CacheTTL is how long a resolved query stays cached (default: 24 hours).
	// Place coordinates practically never change.
	CacheTTL time.Duration

	// Clock is the time source for expiry (default: real clock).
	Clock clockwork.Clock
}

// Service resolves queries through a provider, caching non-empty results.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	metrics  *observability.Metrics
	cacheTTL time.Duration
	clock    clockwork.Clock
	cache    *lruCache
}

// NewService creates a new geocoding service.
func NewService(cfg ServiceConfig) *Service {
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 1000
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		cacheTTL: cacheTTL,
		clock:    clock,
		cache:    newLRUCache(cacheSize),
	}
}

// Geocode returns the best match for query. It returns ErrNoResults when the
// provider found nothing and ErrProviderUnavailable when the provider failed.
func (s *Service) Geocode(ctx context.Context, query string) (*Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	key := strings.ToLower(query)
	now := s.clock.Now()

	if loc, ok := s.cache.get(key, now); ok {
		s.metrics.ObserveGeocodeCache(true)
		return &loc, nil
	}
	s.metrics.ObserveGeocodeCache(false)

	s.logger.Debug().
		Str("query", query).
		Str("provider", s.provider.Name()).
		Msg("geocoding query")

	results, err := s.provider.Search(ctx, query)
	if err != nil {
		s.logger.Error().Err(err).
			Str("query", query).
			Msg("failed to geocode query")
		return nil, ErrProviderUnavailable
	}

	if len(results) == 0 {
		// Empty results are not cached so a later retry can still succeed.
		return nil, ErrNoResults
	}

	loc := results[0]
	s.cache.put(key, loc, now.Add(s.cacheTTL))

	return &loc, nil
}

// CacheLen returns the number of cached queries.
func (s *Service) CacheLen() int {
	return s.cache.len()
}

// lruCache is a thread-safe LRU of resolved locations with per-entry expiry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	value     Location
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string, now time.Time) (Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Location{}, false
	}
	if !now.Before(e.expiresAt) {
		delete(c.entries, key)
		c.unlink(e)
		return Location{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value Location, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = e
	c.pushFront(e)

	if len(c.entries) > c.maxEntries && c.tail != nil {
		delete(c.entries, c.tail.key)
		c.unlink(c.tail)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *lruCache) pushFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}
