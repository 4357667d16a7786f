package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatwise/heatwise/internal/geocoding"
	"github.com/heatwise/heatwise/internal/greenspace"
	"github.com/heatwise/heatwise/internal/heatrisk"
	"github.com/heatwise/heatwise/internal/lookup"
	"github.com/heatwise/heatwise/internal/mitigation"
	"github.com/heatwise/heatwise/internal/observability"
	"github.com/heatwise/heatwise/internal/session"
	"github.com/heatwise/heatwise/internal/weather"
)

// fakeRunner returns queued results in order. When gate is set, each Run
// blocks until a value is sent on it.
type fakeRunner struct {
	mu      sync.Mutex
	results []runResult
	gate    chan struct{}
	ctxErrs []error
}

type runResult struct {
	out *lookup.Outcome
	err error
}

func (f *fakeRunner) Run(ctx context.Context, query string) (*lookup.Outcome, error) {
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	r := f.results[0]
	f.results = f.results[1:]
	return r.out, r.err
}

func outcome(query string, score int) *lookup.Outcome {
	return &lookup.Outcome{
		Query:      query,
		Assessment: heatrisk.Assessment{Score: score, Label: heatrisk.LabelFor(score)},
	}
}

func newService(t *testing.T, runner session.Runner, clock clockwork.Clock) (*session.Service, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return session.NewService(session.ServiceConfig{
		Runner:  runner,
		Logger:  zerolog.Nop(),
		Metrics: metrics,
		TTL:     time.Hour,
		Clock:   clock,
	}), metrics
}

func TestService_Create(t *testing.T) {
	svc, metrics := newService(t, &fakeRunner{}, clockwork.NewFakeClock())

	snap := svc.Create()
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, lookup.StatusIdle, snap.Status)
	assert.Nil(t, snap.Current)
	assert.Empty(t, snap.Plan)
	assert.Equal(t, 0, snap.Summary.ItemCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActiveSessions))

	got, err := svc.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
}

func TestService_Get_Unknown(t *testing.T) {
	svc, _ := newService(t, &fakeRunner{}, clockwork.NewFakeClock())

	_, err := svc.Get("nope")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestService_Lookup_Success(t *testing.T) {
	runner := &fakeRunner{results: []runResult{{out: outcome("Seville", 63)}}}
	svc, _ := newService(t, runner, clockwork.NewFakeClock())
	id := svc.Create().ID

	snap, err := svc.Lookup(context.Background(), id, "Seville")
	require.NoError(t, err)
	assert.Equal(t, lookup.StatusSuccess, snap.Status)
	require.NotNil(t, snap.Current)
	assert.Equal(t, 63, snap.Current.Assessment.Score)
	assert.Empty(t, snap.Message)
}

func TestService_Lookup_FailureKeepsPreviousAssessment(t *testing.T) {
	runner := &fakeRunner{results: []runResult{
		{out: outcome("Seville", 63)},
		{err: lookup.ErrNotFound},
		{err: lookup.ErrSearchFailed},
	}}
	svc, _ := newService(t, runner, clockwork.NewFakeClock())
	id := svc.Create().ID

	_, err := svc.Lookup(context.Background(), id, "Seville")
	require.NoError(t, err)

	snap, err := svc.Lookup(context.Background(), id, "Atlantis")
	assert.ErrorIs(t, err, lookup.ErrNotFound)
	assert.Equal(t, lookup.StatusFailed, snap.Status)
	assert.Equal(t, lookup.MessageNotFound, snap.Message)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "Seville", snap.Current.Query)

	snap, err = svc.Lookup(context.Background(), id, "Madrid")
	assert.ErrorIs(t, err, lookup.ErrSearchFailed)
	assert.Equal(t, lookup.MessageSearchFailed, snap.Message)
	assert.Equal(t, "Seville", snap.Current.Query)
}

func TestService_Lookup_InFlight(t *testing.T) {
	runner := &fakeRunner{
		results: []runResult{{out: outcome("Seville", 63)}},
		gate:    make(chan struct{}),
	}
	svc, _ := newService(t, runner, clockwork.NewFakeClock())
	id := svc.Create().ID

	done := make(chan error, 1)
	go func() {
		_, err := svc.Lookup(context.Background(), id, "Seville")
		done <- err
	}()

	require.Eventually(t, func() bool {
		snap, _ := svc.Get(id)
		return snap.Status == lookup.StatusSearching
	}, time.Second, 5*time.Millisecond)

	_, err := svc.Lookup(context.Background(), id, "Madrid")
	assert.ErrorIs(t, err, lookup.ErrInFlight)

	close(runner.gate)
	require.NoError(t, <-done)

	snap, err := svc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, lookup.StatusSuccess, snap.Status)
}

func TestService_Lookup_CompletesAfterClientLeaves(t *testing.T) {
	runner := &fakeRunner{
		results: []runResult{{out: outcome("Seville", 63)}},
		gate:    make(chan struct{}),
	}
	svc, _ := newService(t, runner, clockwork.NewFakeClock())
	id := svc.Create().ID

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Lookup(ctx, id, "Seville")
	assert.ErrorIs(t, err, context.Canceled)

	close(runner.gate)
	require.Eventually(t, func() bool {
		snap, _ := svc.Get(id)
		return snap.Status == lookup.StatusSuccess
	}, time.Second, 5*time.Millisecond)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []error{nil}, runner.ctxErrs)
}

func TestService_Lookup_UnknownSession(t *testing.T) {
	svc, _ := newService(t, &fakeRunner{}, clockwork.NewFakeClock())

	_, err := svc.Lookup(context.Background(), "nope", "Seville")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestService_Plan(t *testing.T) {
	svc, _ := newService(t, &fakeRunner{}, clockwork.NewFakeClock())
	id := svc.Create().ID

	_, err := svc.AddAction(id, "trees")
	require.NoError(t, err)
	snap, err := svc.AddAction(id, "coolroof")
	require.NoError(t, err)

	assert.Len(t, snap.Plan, 2)
	assert.Equal(t, 18, snap.Summary.TotalHeatDrop)
	assert.Equal(t, 175.0, snap.Summary.TotalCO2Kg)

	_, err = svc.AddAction(id, "lasers")
	assert.ErrorIs(t, err, mitigation.ErrUnknownAction)

	_, err = svc.AddAction("nope", "trees")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	snap, err = svc.ClearPlan(id)
	require.NoError(t, err)
	assert.Empty(t, snap.Plan)
	assert.Equal(t, 0, snap.Summary.TotalHeatDrop)
}

func TestService_PlanIndependentOfLookup(t *testing.T) {
	runner := &fakeRunner{results: []runResult{{err: lookup.ErrNotFound}}}
	svc, _ := newService(t, runner, clockwork.NewFakeClock())
	id := svc.Create().ID

	_, err := svc.AddAction(id, "shade")
	require.NoError(t, err)

	snap, _ := svc.Lookup(context.Background(), id, "Atlantis")
	assert.Len(t, snap.Plan, 1)
}

func TestService_Delete(t *testing.T) {
	svc, metrics := newService(t, &fakeRunner{}, clockwork.NewFakeClock())
	id := svc.Create().ID

	require.NoError(t, svc.Delete(id))
	assert.ErrorIs(t, svc.Delete(id), session.ErrSessionNotFound)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveSessions))
}

func TestService_Sweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc, metrics := newService(t, &fakeRunner{}, clock)

	stale := svc.Create().ID
	clock.Advance(45 * time.Minute)
	fresh := svc.Create().ID
	clock.Advance(30 * time.Minute)

	assert.Equal(t, 1, svc.Sweep())

	_, err := svc.Get(stale)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = svc.Get(fresh)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActiveSessions))
}

func TestService_SweepKeepsActivity(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc, _ := newService(t, &fakeRunner{}, clock)

	id := svc.Create().ID
	clock.Advance(50 * time.Minute)
	snap, err := svc.AddAction(id, "water")
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), snap.LastActiveAt)
	clock.Advance(50 * time.Minute)

	assert.Equal(t, 0, svc.Sweep())
}

type panicRunner struct{}

func (panicRunner) Run(context.Context, string) (*lookup.Outcome, error) {
	panic("nil geometry")
}

func TestService_Lookup_PanicFailsSearch(t *testing.T) {
	svc, _ := newService(t, panicRunner{}, clockwork.NewFakeClock())
	id := svc.Create().ID

	snap, err := svc.Lookup(context.Background(), id, "Seville")
	require.ErrorIs(t, err, lookup.ErrSearchFailed)
	assert.ErrorContains(t, err, "nil geometry")
	assert.Equal(t, lookup.StatusFailed, snap.Status)
	assert.Equal(t, lookup.MessageSearchFailed, snap.Message)

	got, err := svc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, lookup.StatusFailed, got.Status)
}

// amsterdamGeocoder resolves queries to points in central Amsterdam.
type amsterdamGeocoder map[string]geocoding.Location

func (g amsterdamGeocoder) Geocode(_ context.Context, query string) (*geocoding.Location, error) {
	loc, ok := g[query]
	if !ok {
		return nil, geocoding.ErrNoResults
	}
	return &loc, nil
}

type switchableWeather struct {
	mu  sync.Mutex
	err error
}

func (p *switchableWeather) Name() string { return "switchable" }

func (p *switchableWeather) GetCurrent(_ context.Context, lat, lon float64) (*weather.Reading, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	h := 60.0
	return &weather.Reading{Lat: lat, Lon: lon, TemperatureC: 30, RelativeHumidityPct: &h}, nil
}

func (p *switchableWeather) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

type fixedGreenspace float64

func (g fixedGreenspace) Estimate(context.Context, float64, float64) greenspace.Estimate {
	return greenspace.Estimate{Pct: float64(g)}
}

func TestService_Lookup_WeatherOutageFailsSearch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	provider := &switchableWeather{}
	weatherSvc := weather.NewService(weather.ServiceConfig{
		Provider: provider,
		Logger:   zerolog.Nop(),
		Clock:    clock,
	})
	orchestrator := lookup.NewOrchestrator(lookup.Config{
		Geocoder: amsterdamGeocoder{
			"Dam Square": {Lat: 52.3702, Lon: 4.8952, Name: "Dam Square", Country: "Netherlands"},
			"Centraal":   {Lat: 52.3790, Lon: 4.8990, Name: "Centraal", Country: "Netherlands"},
		},
		Weather:    weatherSvc,
		Greenspace: fixedGreenspace(20),
		Logger:     zerolog.Nop(),
		Now:        clock.Now,
	})
	svc, _ := newService(t, orchestrator, clock)
	id := svc.Create().ID

	first, err := svc.Lookup(context.Background(), id, "Dam Square")
	require.NoError(t, err)
	require.NotNil(t, first.Current)

	provider.setErr(errors.New("upstream 503"))
	clock.Advance(30 * time.Minute)

	snap, err := svc.Lookup(context.Background(), id, "Centraal")
	require.ErrorIs(t, err, lookup.ErrSearchFailed)
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)
	assert.Equal(t, lookup.StatusFailed, snap.Status)
	assert.Equal(t, lookup.MessageSearchFailed, snap.Message)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "Dam Square", snap.Current.Query)
	assert.Equal(t, first.Current.Assessment, snap.Current.Assessment)
}
