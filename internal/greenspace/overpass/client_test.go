package overpass_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatwise/heatwise/internal/greenspace/overpass"
	"github.com/heatwise/heatwise/internal/provider/resilience"
)

func newTestClient(url string) *overpass.Client {
	cfg := resilience.DefaultClientConfig("test")
	cfg.MaxRetries = 1
	return overpass.NewClient(overpass.ClientConfig{
		URL:        url,
		HTTPClient: resilience.NewClient(cfg),
	})
}

func TestBuildQuery(t *testing.T) {
	q := overpass.BuildQuery(orb.Point{4.895168, 52.370216}, 1500)

	assert.True(t, strings.HasPrefix(q, "[out:json]"))
	assert.True(t, strings.HasSuffix(q, "out geom;"))
	for _, tag := range overpass.GreenTags {
		assert.Contains(t, q, "way"+tag+"(around:1500,52.370216,4.895168);")
	}
}

func TestClient_Elements(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostForm.Get("data"), `way["leisure"="park"](around:1500,52.370216,4.895168);`)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"version": 0.6,
			"elements": [
				{
					"type": "way",
					"id": 7345262,
					"tags": {"leisure": "park", "name": "Vondelpark"},
					"geometry": [
						{"lat": 52.3600, "lon": 4.8680},
						{"lat": 52.3600, "lon": 4.8700},
						{"lat": 52.3580, "lon": 4.8700},
						{"lat": 52.3600, "lon": 4.8680}
					]
				},
				{"type": "way", "id": 2, "geometry": [{"lat": 1, "lon": 1}]}
			]
		}`))
	}))
	defer server.Close()

	elements, err := newTestClient(server.URL).Elements(context.Background(), orb.Point{4.895168, 52.370216}, 1500)
	require.NoError(t, err)
	require.Len(t, elements, 2)

	park := elements[0]
	assert.Equal(t, "way", park.Type)
	assert.Equal(t, int64(7345262), park.ID)
	assert.Equal(t, "Vondelpark", park.Tags["name"])
	require.Len(t, park.Geometry, 4)
	assert.Equal(t, 52.3580, park.Geometry[2].Lat)
	assert.Len(t, elements[1].Geometry, 1)
}

func TestClient_Elements_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"elements": []}`))
	}))
	defer server.Close()

	elements, err := newTestClient(server.URL).Elements(context.Background(), orb.Point{0, 0}, 1500)
	require.NoError(t, err)
	assert.Empty(t, elements)
}

func TestClient_Elements_RetriesWithFullBody(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseForm())
		assert.NotEmpty(t, r.PostForm.Get("data"))
		if calls == 1 {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		_, _ = w.Write([]byte(`{"elements": []}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Elements(context.Background(), orb.Point{0, 0}, 1500)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestClient_Elements_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Elements(context.Background(), orb.Point{0, 0}, 1500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 429")
}

func TestClient_Elements_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>rate limited</html>`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Elements(context.Background(), orb.Point{0, 0}, 1500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}
