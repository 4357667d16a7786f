// Package openmeteo implements geocoding.Provider on the Open-Meteo
// geocoding API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/heatwise/heatwise/internal/geocoding"
	"github.com/heatwise/heatwise/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "open-meteo-geocoding"

	// DefaultBaseURL is the Open-Meteo geocoding API base URL.
	DefaultBaseURL = "https://geocoding-api.open-meteo.com/v1"
)

// ClientConfig holds configuration for the Open-Meteo geocoding client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to Open-Meteo).
	BaseURL string

	// Language for place names (default: "en").
	Language string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Open-Meteo geocoding API client.
type Client struct {
	baseURL    string
	language   string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Open-Meteo geocoding client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	language := cfg.Language
	if language == "" {
		language = "en"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		language:   language,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Search resolves a free-text query to at most one location. A response
// without a results array means no match.
func (c *Client) Search(ctx context.Context, query string) ([]geocoding.Location, error) {
	params := url.Values{
		"name":     {query},
		"count":    {"1"},
		"language": {c.language},
		"format":   {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), http.NoBody)
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

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	locations := make([]geocoding.Location, 0, len(body.Results))
	for _, r := range body.Results {
		if r.Latitude == nil || r.Longitude == nil {
			c.logger.Debug().Str("name", r.Name).Msg("skipping geocoding result without coordinates")
			continue
		}
		locations = append(locations, geocoding.Location{
			Lat:     *r.Latitude,
			Lon:     *r.Longitude,
			Name:    r.Name,
			Admin1:  r.Admin1,
			Country: r.Country,
		})
	}

	return locations, nil
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Name      string   `json:"name"`
	Admin1    string   `json:"admin1"`
	Country   string   `json:"country"`
}
