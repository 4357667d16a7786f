// Package main provides the entrypoint for the HeatWise API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/heatwise/heatwise/internal/api"
	"github.com/heatwise/heatwise/internal/api/middleware"
	"github.com/heatwise/heatwise/internal/config"
	"github.com/heatwise/heatwise/internal/featureflags"
	"github.com/heatwise/heatwise/internal/geocoding"
	geocodingopenmeteo "github.com/heatwise/heatwise/internal/geocoding/openmeteo"
	"github.com/heatwise/heatwise/internal/greenspace"
	"github.com/heatwise/heatwise/internal/greenspace/overpass"
	"github.com/heatwise/heatwise/internal/lookup"
	"github.com/heatwise/heatwise/internal/observability"
	"github.com/heatwise/heatwise/internal/provider/resilience"
	"github.com/heatwise/heatwise/internal/session"
	"github.com/heatwise/heatwise/internal/weather"
	weatheropenmeteo "github.com/heatwise/heatwise/internal/weather/openmeteo"
	"github.com/heatwise/heatwise/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "heatwise-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log = log.Level(level)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting HeatWise API")

	ctx := context.Background()

	tel, err := observability.InitTelemetry(ctx, observability.TelemetryConfig{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tel.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(promRegistry)

	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Store:    featureflags.NewMemoryStore(),
		Logger:   log,
		CacheTTL: 30 * time.Second,
	})

	registry := resilience.NewRegistry()
	providerClient := func(name string) *resilience.Client {
		return resilience.NewClient(resilience.ClientConfig{
			Name:       name,
			Timeout:    cfg.Providers.Timeout,
			MaxRetries: cfg.Providers.MaxRetries,
			Registry:   registry,
			Observer:   metrics.ObserveProvider,
			Logger:     log,
		})
	}

	geocoder := geocoding.NewService(geocoding.ServiceConfig{
		Provider: geocodingopenmeteo.NewClient(geocodingopenmeteo.ClientConfig{
			BaseURL:    cfg.Providers.GeocodingBaseURL,
			HTTPClient: providerClient(geocodingopenmeteo.ProviderName),
			Logger:     log,
		}),
		Logger:    log,
		Metrics:   metrics,
		CacheSize: cfg.Cache.GeocodeSize,
	})

	weatherService := weather.NewService(weather.ServiceConfig{
		Provider: weatheropenmeteo.NewClient(weatheropenmeteo.ClientConfig{
			BaseURL:    cfg.Providers.WeatherBaseURL,
			HTTPClient: providerClient(weatheropenmeteo.ProviderName),
			Logger:     log,
		}),
		Logger:   log,
		Flags:    ffService,
		CacheTTL: cfg.Cache.WeatherTTL,
	})

	greenspaceService := greenspace.NewService(greenspace.ServiceConfig{
		Provider: overpass.NewClient(overpass.ClientConfig{
			URL:        cfg.Providers.OverpassURL,
			HTTPClient: providerClient(overpass.ProviderName),
			Logger:     log,
		}),
		Logger:   log,
		Flags:    ffService,
		Metrics:  metrics,
		CacheTTL: cfg.Cache.GreenspaceTTL,
	})

	orchestrator := lookup.NewOrchestrator(lookup.Config{
		Geocoder:   geocoder,
		Weather:    weatherService,
		Greenspace: greenspaceService,
		Logger:     log,
		Metrics:    metrics,
		Tracer:     tel.Tracer,
	})

	sessions := session.NewService(session.ServiceConfig{
		Store:   session.NewStore(),
		Runner:  orchestrator,
		Logger:  log,
		Metrics: metrics,
		TTL:     cfg.Sessions.TTL,
	})

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	go sessions.RunJanitor(bgCtx, cfg.Sessions.SweepInterval)

	// Cache warming runs in this process so lookups hit the warmed caches.
	refreshConfig := worker.DefaultRefreshConfig()
	refreshConfig.Concurrency = cfg.Worker.Concurrency
	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:     refreshConfig,
		Logger:     log,
		Weather:    weatherService,
		Greenspace: greenspaceService,
		Flags:      ffService,
		Metrics:    metrics,
	})

	if cfg.Worker.PubSubProjectID != "" {
		trigger, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.PubSubProjectID,
			SubscriptionName: cfg.Worker.PubSubSubscription,
			Dispatcher:       worker.NewDispatcher(refreshJob, log),
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer trigger.Close()

		go func() {
			if err := trigger.Start(bgCtx); err != nil && bgCtx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().
			Dur("interval", cfg.Worker.Interval).
			Msg("PUBSUB_PROJECT_ID not set - warming caches on a fixed interval")
		go refreshJob.RunEvery(bgCtx, cfg.Worker.Interval)
	}

	if cfg.Security.AdminToken == "" {
		log.Warn().Msg("ADMIN_TOKEN not set - admin endpoints disabled")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            httpMetrics,
		MetricsHandler:     promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		Sessions:           sessions,
		FeatureFlagService: ffService,
		WeatherCache:       weatherService,
		CacheRefresh:       refreshJob,
		Registry:           registry,
		CriticalProviders:  []string{geocodingopenmeteo.ProviderName, weatheropenmeteo.ProviderName},
		AdminToken:         cfg.Security.AdminToken,
		RequireTLS:         cfg.Security.RequireTLS,
	})

	// A lookup holds its request for several provider round trips.
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
