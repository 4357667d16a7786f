// Package lookup turns a place query into a heat-risk assessment: geocode,
// fetch weather, compute the heat index, estimate greenspace, score.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/heatwise/heatwise/internal/geocoding"
	"github.com/heatwise/heatwise/internal/greenspace"
	"github.com/heatwise/heatwise/internal/heatrisk"
	"github.com/heatwise/heatwise/internal/observability"
	"github.com/heatwise/heatwise/internal/weather"
)

// Lookup errors. Every failure of the geocoding or weather step maps to one
// of these.
var (
	ErrNotFound     = errors.New("location not found")
	ErrSearchFailed = errors.New("search failed")
)

// User-facing failure messages.
const (
	MessageNotFound     = "Location not found."
	MessageSearchFailed = "Search failed. Please try again."
)

// Message returns the user-facing message for a lookup error.
func Message(err error) string {
	if errors.Is(err, ErrNotFound) {
		return MessageNotFound
	}
	return MessageSearchFailed
}

// Geocoder resolves a query to its best-matching location.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*geocoding.Location, error)
}

// WeatherSource returns the current reading at a point.
type WeatherSource interface {
	GetCurrent(ctx context.Context, lat, lon float64) (*weather.Reading, error)
}

// GreenspaceEstimator returns greenspace coverage at a point. It does not
// fail; problems surface as a fallback estimate.
type GreenspaceEstimator interface {
	Estimate(ctx context.Context, lat, lon float64) greenspace.Estimate
}

// Outcome is everything a successful lookup produced.
type Outcome struct {
	Query      string
	Location   geocoding.Location
	Reading    weather.Reading
	Greenspace greenspace.Estimate
	Assessment heatrisk.Assessment
	FinishedAt time.Time
}

// Config holds the orchestrator's collaborators.
type Config struct {
	Geocoder   Geocoder
	Weather    WeatherSource
	Greenspace GreenspaceEstimator
	Logger     zerolog.Logger
	Metrics    *observability.Metrics
	Tracer     trace.Tracer
	Now        func() time.Time
}

// Orchestrator runs lookups. The steps of one lookup run in order; there
// are no retries or timeouts at this level.
type Orchestrator struct {
	geocoder   Geocoder
	weather    WeatherSource
	greenspace GreenspaceEstimator
	logger     zerolog.Logger
	metrics    *observability.Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

// NewOrchestrator creates a lookup orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("lookup")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		geocoder:   cfg.Geocoder,
		weather:    cfg.Weather,
		greenspace: cfg.Greenspace,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		tracer:     tracer,
		now:        now,
	}
}

// Run performs one lookup. It returns ErrNotFound when geocoding matched
// nothing and ErrSearchFailed when geocoding or weather failed for any
// other reason. Greenspace problems never fail a lookup.
func (o *Orchestrator) Run(ctx context.Context, query string) (*Outcome, error) {
	start := o.now()
	ctx, span := o.tracer.Start(ctx, "lookup.run", trace.WithAttributes(attribute.String("lookup.query", query)))
	defer span.End()

	out, err := o.run(ctx, query)

	outcome := observability.OutcomeSuccess
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = observability.OutcomeNotFound
	case err != nil:
		outcome = observability.OutcomeFailed
	}
	o.metrics.ObserveLookup(outcome, o.now().Sub(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		o.logger.Info().Err(err).Str("query", query).Str("outcome", outcome).Msg("lookup failed")
		return nil, err
	}

	o.metrics.ObserveScore(out.Assessment.Score)
	span.SetAttributes(
		attribute.Int("lookup.score", out.Assessment.Score),
		attribute.Bool("lookup.greenspace_fallback", out.Greenspace.Fallback),
	)
	o.logger.Info().
		Str("query", query).
		Str("location", out.Location.DisplayName()).
		Int("score", out.Assessment.Score).
		Str("label", string(out.Assessment.Label)).
		Bool("greenspace_fallback", out.Greenspace.Fallback).
		Msg("lookup completed")

	return out, nil
}

func (o *Orchestrator) run(ctx context.Context, query string) (*Outcome, error) {
	loc, err := o.geocode(ctx, query)
	if err != nil {
		return nil, err
	}

	reading, err := o.currentWeather(ctx, loc)
	if err != nil {
		return nil, err
	}

	est := o.estimateGreenspace(ctx, loc)

	assessment := heatrisk.Assess(reading.TemperatureC, reading.RelativeHumidityPct, est.Pct)

	return &Outcome{
		Query:      query,
		Location:   *loc,
		Reading:    *reading,
		Greenspace: est,
		Assessment: assessment,
		FinishedAt: o.now(),
	}, nil
}

func (o *Orchestrator) geocode(ctx context.Context, query string) (*geocoding.Location, error) {
	ctx, span := o.tracer.Start(ctx, "lookup.geocode")
	defer span.End()

	loc, err := o.geocoder.Geocode(ctx, query)
	switch {
	case errors.Is(err, geocoding.ErrNoResults), errors.Is(err, geocoding.ErrEmptyQuery):
		return nil, fmt.Errorf("%w: %q", ErrNotFound, query)
	case err != nil:
		span.RecordError(err)
		return nil, fmt.Errorf("%w: geocoding: %w", ErrSearchFailed, err)
	case loc == nil:
		return nil, fmt.Errorf("%w: %q", ErrNotFound, query)
	}

	span.SetAttributes(attribute.Float64("geo.lat", loc.Lat), attribute.Float64("geo.lon", loc.Lon))
	return loc, nil
}

func (o *Orchestrator) currentWeather(ctx context.Context, loc *geocoding.Location) (*weather.Reading, error) {
	ctx, span := o.tracer.Start(ctx, "lookup.weather")
	defer span.End()

	reading, err := o.weather.GetCurrent(ctx, loc.Lat, loc.Lon)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: weather: %w", ErrSearchFailed, err)
	}
	if reading == nil {
		return nil, fmt.Errorf("%w: weather: %w", ErrSearchFailed, weather.ErrMissingTemperature)
	}
	return reading, nil
}

func (o *Orchestrator) estimateGreenspace(ctx context.Context, loc *geocoding.Location) greenspace.Estimate {
	ctx, span := o.tracer.Start(ctx, "lookup.greenspace")
	defer span.End()

	est := o.greenspace.Estimate(ctx, loc.Lat, loc.Lon)
	if est.Fallback {
		span.RecordError(est.Err)
	}
	span.SetAttributes(attribute.Float64("greenspace.pct", est.Pct))
	return est
}
