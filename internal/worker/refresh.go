package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/heatwise/heatwise/internal/featureflags"
	"github.com/heatwise/heatwise/internal/greenspace"
	"github.com/heatwise/heatwise/internal/observability"
	"github.com/heatwise/heatwise/internal/weather"
)

// WeatherRefresher re-fetches the weather reading for a point.
type WeatherRefresher interface {
	Refresh(ctx context.Context, lat, lon float64) (*weather.Reading, error)
}

// GreenspaceRefresher recomputes the greenspace estimate for a point.
type GreenspaceRefresher interface {
	Refresh(ctx context.Context, lat, lon float64) (greenspace.Estimate, error)
}

// FlagChecker reports whether a runtime feature flag is on.
type FlagChecker interface {
	IsEnabled(ctx context.Context, key string) bool
}

// RefreshJob re-fetches provider data for the configured targets so that
// lookups for popular places are served from cache.
type RefreshJob struct {
	config     RefreshConfig
	logger     zerolog.Logger
	weather    WeatherRefresher
	greenspace GreenspaceRefresher
	flags      FlagChecker
	metrics    *observability.Metrics
	clock      clockwork.Clock

	mu    sync.RWMutex
	stats RefreshStats
}

// RefreshStats accumulates refresh job statistics.
type RefreshStats struct {
	Runs                int64
	SuccessfulPoints    int64
	FailedPoints        int64
	WeatherRefreshes    int64
	GreenspaceRefreshes int64
	LastRunAt           time.Time
	LastRunDuration     time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config     RefreshConfig
	Logger     zerolog.Logger
	Weather    WeatherRefresher
	Greenspace GreenspaceRefresher

	// Flags skips sources switched off at runtime. Optional.
	Flags FlagChecker

	// Metrics receives one observation per source refresh. Optional.
	Metrics *observability.Metrics

	// Clock is the time source (default: real clock).
	Clock clockwork.Clock
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config = DefaultRefreshConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &RefreshJob{
		config:     config,
		logger:     cfg.Logger,
		weather:    cfg.Weather,
		greenspace: cfg.Greenspace,
		flags:      cfg.Flags,
		metrics:    cfg.Metrics,
		clock:      clock,
	}
}

// RefreshResult contains the result of one run.
type RefreshResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalPoints int
	Successful  int
	Failed      int
	Errors      []RefreshError
}

// RefreshError describes one failed source refresh.
type RefreshError struct {
	Source string
	Point  Point
	Error  string
}

type pointResult struct {
	ran        bool
	errors     []RefreshError
	weather    bool
	greenspace bool
}

// Run refreshes every configured point. Failures are counted, never
// returned; a cancelled context stops the run early.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	start := j.clock.Now()
	points := j.config.AllPoints()
	result := &RefreshResult{
		StartTime:   start,
		TotalPoints: len(points),
	}

	j.logger.Info().
		Int("total_points", result.TotalPoints).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache refresh job")

	refreshWeather := j.config.RefreshWeather && j.weather != nil && !j.flagOn(ctx, featureflags.FlagCachedOnlyWeather)
	refreshGreenspace := j.config.RefreshGreenspace && j.greenspace != nil && !j.flagOn(ctx, featureflags.FlagDisableGreenspace)

	results := make([]pointResult, len(points))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)
	for i, p := range points {
		if gctx.Err() != nil {
			break
		}
		i, p := i, p
		g.Go(func() error {
			results[i] = j.refreshPoint(gctx, p, refreshWeather, refreshGreenspace)
			return nil
		})
	}
	_ = g.Wait()

	var weatherCount, greenspaceCount int64
	for _, pr := range results {
		if !pr.ran {
			continue
		}
		if len(pr.errors) == 0 {
			result.Successful++
		} else {
			result.Failed++
		}
		if pr.weather {
			weatherCount++
		}
		if pr.greenspace {
			greenspaceCount++
		}
		result.Errors = append(result.Errors, pr.errors...)
	}

	result.EndTime = j.clock.Now()
	result.Duration = result.EndTime.Sub(start)

	j.mu.Lock()
	j.stats.Runs++
	j.stats.SuccessfulPoints += int64(result.Successful)
	j.stats.FailedPoints += int64(result.Failed)
	j.stats.WeatherRefreshes += weatherCount
	j.stats.GreenspaceRefreshes += greenspaceCount
	j.stats.LastRunAt = result.EndTime
	j.stats.LastRunDuration = result.Duration
	j.mu.Unlock()

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("cache refresh job completed")

	return result
}

func (j *RefreshJob) refreshPoint(ctx context.Context, p Point, refreshWeather, refreshGreenspace bool) pointResult {
	pr := pointResult{ran: true}

	pointCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	if refreshWeather {
		_, err := j.weather.Refresh(pointCtx, p.Lat, p.Lon)
		j.metrics.ObserveRefresh(err)
		if err != nil {
			pr.errors = append(pr.errors, RefreshError{Source: "weather", Point: p, Error: err.Error()})
		} else {
			pr.weather = true
		}
	}

	if refreshGreenspace {
		_, err := j.greenspace.Refresh(pointCtx, p.Lat, p.Lon)
		j.metrics.ObserveRefresh(err)
		if err != nil {
			pr.errors = append(pr.errors, RefreshError{Source: "greenspace", Point: p, Error: err.Error()})
		} else {
			pr.greenspace = true
		}
	}

	for _, e := range pr.errors {
		j.logger.Warn().
			Str("source", e.Source).
			Float64("lat", p.Lat).
			Float64("lon", p.Lon).
			Str("error", e.Error).
			Msg("cache refresh failed")
	}

	return pr
}

// RunEvery runs the job immediately and then on every interval tick until
// ctx is cancelled.
func (j *RefreshJob) RunEvery(ctx context.Context, interval time.Duration) {
	j.Run(ctx)

	ticker := j.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			j.Run(ctx)
		}
	}
}

// Stats returns a copy of the accumulated statistics.
func (j *RefreshJob) Stats() RefreshStats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stats
}

// Healthy reports whether the last run refreshed more points than it failed.
func (r *RefreshResult) Healthy() error {
	if r.Failed > r.Successful {
		return fmt.Errorf("too many refresh failures: %d/%d", r.Failed, r.TotalPoints)
	}
	return nil
}

func (j *RefreshJob) flagOn(ctx context.Context, key string) bool {
	return j.flags != nil && j.flags.IsEnabled(ctx, key)
}
