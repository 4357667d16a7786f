// Package openmeteo implements weather.Provider on the Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/heatwise/heatwise/internal/provider/resilience"
	"github.com/heatwise/heatwise/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "open-meteo-forecast"

	// DefaultBaseURL is the Open-Meteo forecast API base URL.
	DefaultBaseURL = "https://api.open-meteo.com/v1"

	// Open-Meteo reports times as ISO 8601 without seconds, in GMT by default.
	timeLayout = "2006-01-02T15:04"
)

// ClientConfig holds configuration for the Open-Meteo weather client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to Open-Meteo).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger

	// Now returns the fetch timestamp (default: time.Now).
	Now func() time.Time
}

// Client is an Open-Meteo forecast API client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new Open-Meteo weather client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetCurrent fetches the current 2 m temperature and relative humidity.
func (c *Client) GetCurrent(ctx context.Context, lat, lon float64) (*weather.Reading, error) {
	params := url.Values{
		"latitude":  {strconv.FormatFloat(lat, 'f', 6, 64)},
		"longitude": {strconv.FormatFloat(lon, 'f', 6, 64)},
		"current":   {"temperature_2m,relative_humidity_2m"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/forecast?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return c.toReading(lat, lon, &body)
}

func (c *Client) toReading(lat, lon float64, body *forecastResponse) (*weather.Reading, error) {
	if body.Current == nil || body.Current.Temperature2m == nil {
		return nil, weather.ErrMissingTemperature
	}

	fetchedAt := c.now().UTC()
	observedAt := fetchedAt
	if body.Current.Time != "" {
		if t, err := time.Parse(timeLayout, body.Current.Time); err == nil {
			observedAt = t
		} else {
			c.logger.Debug().Str("time", body.Current.Time).Msg("unparseable observation time")
		}
	}

	return &weather.Reading{
		Lat:                 lat,
		Lon:                 lon,
		TemperatureC:        *body.Current.Temperature2m,
		RelativeHumidityPct: body.Current.RelativeHumidity2m,
		ObservedAt:          observedAt,
		FetchedAt:           fetchedAt,
	}, nil
}

type forecastResponse struct {
	Latitude  float64            `json:"latitude"`
	Longitude float64            `json:"longitude"`
	Current   *currentConditions `json:"current"`
}

type currentConditions struct {
	Time               string   `json:"time"`
	Temperature2m      *float64 `json:"temperature_2m"`
	RelativeHumidity2m *float64 `json:"relative_humidity_2m"`
}
