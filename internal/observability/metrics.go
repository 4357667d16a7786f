package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "heatwise"

// Lookup outcomes used as the "outcome" label.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
)

// Metrics holds the Prometheus collectors for the lookup pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Lookups             *prometheus.CounterVec // labels: outcome={success,not_found,failed}
	LookupDuration      prometheus.Histogram
	RiskScores          prometheus.Histogram
	GreenspaceFallbacks prometheus.Counter
	GreenspaceSkipped   prometheus.Counter
	GeocodeCache        *prometheus.CounterVec   // labels: result={hit,miss}
	ProviderRequests    *prometheus.CounterVec   // labels: provider, outcome={success,error}
	ProviderDuration    *prometheus.HistogramVec // labels: provider
	ActiveSessions      prometheus.Gauge
	CacheRefreshes      *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Location lookups by outcome.",
		}, []string{"outcome"}),
		LookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "End-to-end duration of a location lookup.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RiskScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Distribution of computed heat-risk scores.",
			Buckets:   []float64{15, 30, 45, 60, 75, 90, 100},
		}),
		GreenspaceFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "greenspace_fallbacks_total",
			Help:      "Greenspace estimates that fell back to the default percentage.",
		}),
		GreenspaceSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "greenspace_skipped_elements_total",
			Help:      "Overpass elements discarded as malformed or degenerate.",
		}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Upstream provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Upstream provider call duration including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
		CacheRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_refreshes_total",
			Help:      "Worker cache pre-warm attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.Lookups,
		m.LookupDuration,
		m.RiskScores,
		m.GreenspaceFallbacks,
		m.GreenspaceSkipped,
		m.GeocodeCache,
		m.ProviderRequests,
		m.ProviderDuration,
		m.ActiveSessions,
		m.CacheRefreshes,
	)

	return m
}

// ObserveLookup records a finished lookup.
func (m *Metrics) ObserveLookup(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(outcome).Inc()
	m.LookupDuration.Observe(elapsed.Seconds())
}

// ObserveScore records a computed risk score.
func (m *Metrics) ObserveScore(score int) {
	if m == nil {
		return
	}
	m.RiskScores.Observe(float64(score))
}

// ObserveGreenspace records the outcome of one greenspace estimate.
func (m *Metrics) ObserveGreenspace(fallback bool, skipped int) {
	if m == nil {
		return
	}
	if fallback {
		m.GreenspaceFallbacks.Inc()
	}
	m.GreenspaceSkipped.Add(float64(skipped))
}

// ObserveGeocodeCache records a cache hit or miss.
func (m *Metrics) ObserveGeocodeCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.GeocodeCache.WithLabelValues(result).Inc()
}

// ObserveProvider records one upstream call. Its signature matches the
// resilient client's result observer.
func (m *Metrics) ObserveProvider(provider string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, outcomeLabel(err)).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveRefresh records one worker pre-warm attempt.
func (m *Metrics) ObserveRefresh(err error) {
	if m == nil {
		return
	}
	m.CacheRefreshes.WithLabelValues(outcomeLabel(err)).Inc()
}

// SetActiveSessions sets the in-memory session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
