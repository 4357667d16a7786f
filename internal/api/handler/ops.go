package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heatwise/heatwise/internal/api/models"
	"github.com/heatwise/heatwise/internal/api/response"
	"github.com/heatwise/heatwise/internal/featureflags"
	"github.com/heatwise/heatwise/internal/provider/resilience"
	"github.com/heatwise/heatwise/internal/weather"
	"github.com/heatwise/heatwise/internal/worker"
)

// FlagLister lists feature flags with their current values.
type FlagLister interface {
	ListFlags(ctx context.Context) []featureflags.Flag
}

// SessionCounter reports the number of live sessions.
type SessionCounter interface {
	Count() int
}

// WeatherCache reports on and clears the weather reading cache.
type WeatherCache interface {
	CacheStats() weather.CacheStats
	InvalidateCache()
}

// RefreshReporter reports the cache warming runs so far.
type RefreshReporter interface {
	Stats() worker.RefreshStats
}

// OpsConfig holds the dependencies of the ops endpoints. Everything but the
// build info is optional.
type OpsConfig struct {
	Version      string
	BuildTime    string
	Registry     *resilience.Registry
	Flags        FlagLister
	Sessions     SessionCounter
	WeatherCache WeatherCache
	Refresh      RefreshReporter

	// Critical names providers a lookup cannot succeed without. Readiness
	// fails while any of their circuits is open.
	Critical []string

	Now func() time.Time
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.cfg.Now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It fails with 503 while a
// critical provider's circuit is open.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.cfg.Now()),
	}

	var open []string
	if h.cfg.Registry != nil {
		open = h.cfg.Registry.OpenCircuits(h.cfg.Critical...)
	}
	if len(open) > 0 {
		health.Status = models.HealthStatusFail
		health.Details = map[string]any{"openCircuits": open}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.cfg.Now()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}

	if h.cfg.Sessions != nil {
		detail := fmt.Sprintf("%d active", h.cfg.Sessions.Count())
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "sessions",
			Status: models.HealthStatusOK,
			Detail: &detail,
		})
	}

	if h.cfg.WeatherCache != nil {
		stats := h.cfg.WeatherCache.CacheStats()
		detail := fmt.Sprintf("%d cells, %d fresh (%s)", stats.Entries, stats.FreshEntries, stats.Provider)
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "weather_cache",
			Status: models.HealthStatusOK,
			Detail: &detail,
		})
	}

	if h.cfg.Refresh != nil {
		rs := refreshStatus(h.cfg.Refresh.Stats())
		status.Subsystems = append(status.Subsystems, rs)
		status.Status = worse(status.Status, rs.Status)
	}

	if h.cfg.Registry != nil {
		for _, ph := range h.cfg.Registry.Snapshot() {
			ps := toProviderStatus(ph)
			status.Providers = append(status.Providers, ps)
			if ps.Status != models.HealthStatusOK {
				status.Status = worse(status.Status, models.HealthStatusDegraded)
			}
		}
	}

	if h.cfg.Flags != nil {
		for _, f := range h.cfg.Flags.ListFlags(r.Context()) {
			if f.BoolValue(false) {
				status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, f.Key)
			}
		}
		if len(status.ActiveDegradationFlags) > 0 {
			status.Status = worse(status.Status, models.HealthStatusDegraded)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

// refreshStatus is degraded when cache warming has failed more points than
// it refreshed.
func refreshStatus(st worker.RefreshStats) models.SubsystemStatus {
	ss := models.SubsystemStatus{Name: "cache_refresh", Status: models.HealthStatusOK}
	var detail string
	if st.Runs == 0 {
		detail = "no runs yet"
	} else {
		detail = fmt.Sprintf("%d runs, %d points refreshed, %d failed, last at %s",
			st.Runs, st.SuccessfulPoints, st.FailedPoints, st.LastRunAt.UTC().Format(time.RFC3339))
	}
	if st.FailedPoints > st.SuccessfulPoints {
		ss.Status = models.HealthStatusDegraded
	}
	ss.Detail = &detail
	return ss
}

func toProviderStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            ph.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        ph.CircuitState.String(),
		ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
		LastLatencyMs:       ph.LastLatency.Milliseconds(),
		LastSuccessAt:       models.TimestampPtr(ph.LastSuccessAt),
		LastFailureAt:       models.TimestampPtr(ph.LastFailureAt),
	}
	switch ph.Level() {
	case resilience.LevelUnhealthy:
		ps.Status = models.HealthStatusFail
	case resilience.LevelDegraded:
		ps.Status = models.HealthStatusDegraded
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}

// worse returns the more severe of two statuses.
func worse(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
