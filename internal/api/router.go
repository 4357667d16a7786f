// Package api provides the HTTP API for HeatWise.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/heatwise/heatwise/internal/api/handler"
	"github.com/heatwise/heatwise/internal/api/middleware"
	"github.com/heatwise/heatwise/internal/featureflags"
	"github.com/heatwise/heatwise/internal/provider/resilience"
	"github.com/heatwise/heatwise/internal/session"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// Metrics records OpenTelemetry HTTP metrics when set.
	Metrics *middleware.Metrics

	// MetricsHandler serves /metrics when set, typically promhttp.
	MetricsHandler http.Handler

	Sessions           *session.Service
	FeatureFlagService *featureflags.Service
	Registry           *resilience.Registry
	CriticalProviders  []string

	// WeatherCache is reported in /v1/ops/status and can be cleared by an
	// operator. Optional.
	WeatherCache handler.WeatherCache

	// CacheRefresh reports cache warming in /v1/ops/status. Optional.
	CacheRefresh handler.RefreshReporter

	// AdminToken enables /v1/admin when non-empty.
	AdminToken string

	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "heatwise-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	var flags handler.FlagChecker
	if cfg.FeatureFlagService != nil {
		flags = cfg.FeatureFlagService
	}

	opsCfg := handler.OpsConfig{
		Version:      cfg.Version,
		BuildTime:    cfg.BuildTime,
		Registry:     cfg.Registry,
		Critical:     cfg.CriticalProviders,
		WeatherCache: cfg.WeatherCache,
		Refresh:      cfg.CacheRefresh,
	}
	if cfg.FeatureFlagService != nil {
		opsCfg.Flags = cfg.FeatureFlagService
	}
	if cfg.Sessions != nil {
		opsCfg.Sessions = cfg.Sessions
	}

	opsHandler := handler.NewOpsHandler(opsCfg)
	actionsHandler := handler.NewActionsHandler()
	sessionHandler := handler.NewSessionHandler(cfg.Sessions, flags, cfg.Logger)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	lookupRateLimit := middleware.RateLimitBySession(middleware.LookupRateLimit)

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.With(standardRateLimit).Get("/actions", actionsHandler.ListActions)

		r.Route("/sessions", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Use(middleware.RequireJSON)
			r.Post("/", sessionHandler.CreateSession)

			r.Route("/{"+middleware.SessionIDParam+"}", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				r.Delete("/", sessionHandler.DeleteSession)
				r.With(lookupRateLimit).Post("/lookups", sessionHandler.Lookup)
				r.Get("/map", sessionHandler.GetMap)

				r.Route("/plan", func(r chi.Router) {
					r.Get("/", sessionHandler.GetPlan)
					r.Delete("/", sessionHandler.ClearPlan)
					r.Post("/items", sessionHandler.AddPlanItem)
				})
			})
		})

		if cfg.AdminToken != "" {
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminToken(cfg.AdminToken))
				r.Use(middleware.RateLimitByIP(middleware.AdminRateLimit))

				if cfg.FeatureFlagService != nil {
					featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService, cfg.Logger)
					r.Route("/feature-flags", func(r chi.Router) {
						r.Get("/", featureFlagsHandler.ListFeatureFlags)
						r.With(middleware.RequireJSON).Put("/", featureFlagsHandler.UpdateFeatureFlags)
						r.Get("/history", featureFlagsHandler.FeatureFlagHistory)
						r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
					})
				}

				if cfg.WeatherCache != nil {
					cachesHandler := handler.NewCachesHandler(cfg.WeatherCache, cfg.Logger)
					r.Post("/caches/weather/invalidate", cachesHandler.InvalidateWeather)
				}
			})
		}
	})

	return r
}
