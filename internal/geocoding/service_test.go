package geocoding_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatwise/heatwise/internal/geocoding"
)

type mockProvider struct {
	mu      sync.Mutex
	results map[string][]geocoding.Location
	err     error
	calls   int
}

func (m *mockProvider) Search(_ context.Context, query string) ([]geocoding.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.results[strings.ToLower(query)], nil
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func phoenix() geocoding.Location {
	return geocoding.Location{Lat: 33.44838, Lon: -112.07404, Name: "Phoenix", Admin1: "Arizona", Country: "United States"}
}

func TestService_Geocode(t *testing.T) {
	provider := &mockProvider{results: map[string][]geocoding.Location{"phoenix": {phoenix()}}}
	svc := geocoding.NewService(geocoding.ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	loc, err := svc.Geocode(context.Background(), "  Phoenix ")
	require.NoError(t, err)
	assert.Equal(t, phoenix(), *loc)

	// Second call with different casing is served from cache.
	_, err = svc.Geocode(context.Background(), "PHOENIX")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.callCount())
}

func TestService_Geocode_EmptyQuery(t *testing.T) {
	provider := &mockProvider{}
	svc := geocoding.NewService(geocoding.ServiceConfig{Provider: provider})

	_, err := svc.Geocode(context.Background(), "   ")
	assert.ErrorIs(t, err, geocoding.ErrEmptyQuery)
	assert.Equal(t, 0, provider.callCount())
}

func TestService_Geocode_NoResultsNotCached(t *testing.T) {
	provider := &mockProvider{results: map[string][]geocoding.Location{}}
	svc := geocoding.NewService(geocoding.ServiceConfig{Provider: provider})

	_, err := svc.Geocode(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, geocoding.ErrNoResults)
	_, err = svc.Geocode(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, geocoding.ErrNoResults)

	assert.Equal(t, 2, provider.callCount())
	assert.Equal(t, 0, svc.CacheLen())
}

func TestService_Geocode_ProviderError(t *testing.T) {
	provider := &mockProvider{err: errors.New("connection refused")}
	svc := geocoding.NewService(geocoding.ServiceConfig{Provider: provider})

	_, err := svc.Geocode(context.Background(), "Phoenix")
	assert.ErrorIs(t, err, geocoding.ErrProviderUnavailable)
}

func TestService_Geocode_CacheExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	provider := &mockProvider{results: map[string][]geocoding.Location{"phoenix": {phoenix()}}}
	svc := geocoding.NewService(geocoding.ServiceConfig{
		Provider: provider,
		CacheTTL: time.Hour,
		Clock:    clock,
	})

	_, err := svc.Geocode(context.Background(), "Phoenix")
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = svc.Geocode(context.Background(), "Phoenix")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.callCount())

	clock.Advance(2 * time.Minute)
	_, err = svc.Geocode(context.Background(), "Phoenix")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.callCount())
}

func TestService_Geocode_EvictsLeastRecentlyUsed(t *testing.T) {
	provider := &mockProvider{results: map[string][]geocoding.Location{
		"a": {{Name: "A"}},
		"b": {{Name: "B"}},
		"c": {{Name: "C"}},
	}}
	svc := geocoding.NewService(geocoding.ServiceConfig{Provider: provider, CacheSize: 2})

	for _, q := range []string{"a", "b", "a", "c"} {
		_, err := svc.Geocode(context.Background(), q)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, provider.callCount())
	assert.Equal(t, 2, svc.CacheLen())

	// "b" was least recently used and evicted; "a" survives.
	_, err := svc.Geocode(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 3, provider.callCount())

	_, err = svc.Geocode(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, 4, provider.callCount())
}

func TestLocation_DisplayName(t *testing.T) {
	assert.Equal(t, "Phoenix, Arizona, United States", phoenix().DisplayName())
	assert.Equal(t, "Monaco", geocoding.Location{Name: "Monaco", Country: " "}.DisplayName())
	assert.Equal(t, "", geocoding.Location{}.DisplayName())
}
