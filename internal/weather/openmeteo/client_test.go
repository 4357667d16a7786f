package openmeteo_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatwise/heatwise/internal/provider/resilience"
	"github.com/heatwise/heatwise/internal/weather"
	"github.com/heatwise/heatwise/internal/weather/openmeteo"
)

var fixedNow = time.Date(2026, 7, 14, 13, 5, 0, 0, time.UTC)

func newTestClient(url string) *openmeteo.Client {
	cfg := resilience.DefaultClientConfig("test")
	cfg.MaxRetries = 1
	return openmeteo.NewClient(openmeteo.ClientConfig{
		BaseURL:    url,
		HTTPClient: resilience.NewClient(cfg),
		Now:        func() time.Time { return fixedNow },
	})
}

func TestClient_GetCurrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast", r.URL.Path)
		assert.Equal(t, "37.382830", r.URL.Query().Get("latitude"))
		assert.Equal(t, "-5.973170", r.URL.Query().Get("longitude"))
		assert.Equal(t, "temperature_2m,relative_humidity_2m", r.URL.Query().Get("current"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"latitude":37.38,"longitude":-5.97,"current":{"time":"2026-07-14T13:00","interval":900,"temperature_2m":38.4,"relative_humidity_2m":22}}`))
	}))
	defer server.Close()

	reading, err := newTestClient(server.URL).GetCurrent(context.Background(), 37.38283, -5.97317)
	require.NoError(t, err)

	assert.Equal(t, 38.4, reading.TemperatureC)
	require.NotNil(t, reading.RelativeHumidityPct)
	assert.Equal(t, 22.0, *reading.RelativeHumidityPct)
	assert.Equal(t, time.Date(2026, 7, 14, 13, 0, 0, 0, time.UTC), reading.ObservedAt)
	assert.Equal(t, fixedNow, reading.FetchedAt)
	assert.InDelta(t, 37.38283, reading.Lat, 1e-9)
}

func TestClient_GetCurrent_MissingHumidity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"current":{"time":"2026-07-14T13:00","temperature_2m":29.0}}`))
	}))
	defer server.Close()

	reading, err := newTestClient(server.URL).GetCurrent(context.Background(), 10, 10)
	require.NoError(t, err)
	assert.Nil(t, reading.RelativeHumidityPct)
}

func TestClient_GetCurrent_MissingTemperature(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no current block", `{"latitude":1}`},
		{"no temperature", `{"current":{"relative_humidity_2m":50}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).GetCurrent(context.Background(), 10, 10)
			assert.True(t, errors.Is(err, weather.ErrMissingTemperature))
		})
	}
}

func TestClient_GetCurrent_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetCurrent(context.Background(), 10, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 429")
}

func TestClient_GetCurrent_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).GetCurrent(ctx, 10, 10)
	assert.Error(t, err)
}

func TestClient_Name(t *testing.T) {
	assert.Equal(t, openmeteo.ProviderName, openmeteo.NewClient(openmeteo.ClientConfig{}).Name())
}
