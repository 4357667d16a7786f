// Package config loads process configuration from the environment.
package config

import (
	"strconv"
	"time"
)

// Config holds the settings shared by the API and worker binaries.
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"development" validate:"oneof=development staging production test"`
	Port     int    `envconfig:"APP_PORT" default:"8080" validate:"min=1,max=65535"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`

	Providers ProviderConfig
	Cache     CacheConfig
	Telemetry TelemetryConfig
	Security  SecurityConfig
	Sessions  SessionConfig
	Worker    WorkerConfig
}

// ProviderConfig configures the upstream data sources.
type ProviderConfig struct {
	GeocodingBaseURL string        `envconfig:"GEOCODING_BASE_URL" default:"https://geocoding-api.open-meteo.com/v1" validate:"url"`
	WeatherBaseURL   string        `envconfig:"WEATHER_BASE_URL" default:"https://api.open-meteo.com/v1" validate:"url"`
	OverpassURL      string        `envconfig:"OVERPASS_URL" default:"https://overpass-api.de/api/interpreter" validate:"url"`
	Timeout          time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s" validate:"min=1s"`
	MaxRetries       uint64        `envconfig:"PROVIDER_MAX_RETRIES" default:"3" validate:"max=10"`
}

// CacheConfig configures the provider caches.
type CacheConfig struct {
	WeatherTTL    time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"10m"`
	GeocodeSize   int           `envconfig:"GEOCODE_CACHE_SIZE" default:"1000" validate:"min=1"`
	GreenspaceTTL time.Duration `envconfig:"GREENSPACE_CACHE_TTL" default:"6h"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317" validate:"required_if=Enabled true"`
	SampleRatio  float64 `envconfig:"OTEL_TRACES_SAMPLER_ARG" default:"1" validate:"gte=0,lte=1"`
}

// SecurityConfig holds the admin and transport settings.
type SecurityConfig struct {
	// AdminToken enables the admin endpoints when set.
	AdminToken string `envconfig:"ADMIN_TOKEN" validate:"omitempty,min=16"`
	RequireTLS bool   `envconfig:"REQUIRE_TLS" default:"false"`
}

// SessionConfig configures session expiry.
type SessionConfig struct {
	TTL           time.Duration `envconfig:"SESSION_TTL" default:"24h" validate:"min=1m"`
	SweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"10m" validate:"min=1s"`
}

// WorkerConfig configures the cache pre-warm worker.
type WorkerConfig struct {
	PubSubProjectID    string        `envconfig:"PUBSUB_PROJECT_ID"`
	PubSubSubscription string        `envconfig:"PUBSUB_SUBSCRIPTION" validate:"required_with=PubSubProjectID"`
	Concurrency        int           `envconfig:"WORKER_CONCURRENCY" default:"3" validate:"min=1,max=32"`
	Interval           time.Duration `envconfig:"WORKER_INTERVAL" default:"15m" validate:"min=1m"`
}

// IsProduction reports whether the process runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
