// Package weather provides current near-surface weather readings with caching.
package weather

import (
	"context"
	"errors"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrMissingTemperature  = errors.New("weather response has no temperature")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Reading is the current weather at a point.
type Reading struct {
	Lat float64
	Lon float64

	// TemperatureC is the 2 m air temperature in Celsius.
	TemperatureC float64

	// RelativeHumidityPct is the 2 m relative humidity (0-100), nil when
	// the provider omitted it.
	RelativeHumidityPct *float64

	ObservedAt time.Time
	FetchedAt  time.Time
}

// Provider defines the interface for weather data providers.
type Provider interface {
	// GetCurrent fetches the current reading for a location.
	GetCurrent(ctx context.Context, lat, lon float64) (*Reading, error)

	// Name returns the provider name for logging.
	Name() string
}

// FlagChecker reports whether a runtime feature flag is on.
type FlagChecker interface {
	IsEnabled(ctx context.Context, key string) bool
}
