// Package overpass implements greenspace.Provider on the OpenStreetMap
// Overpass API.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/heatwise/heatwise/internal/greenspace"
	"github.com/heatwise/heatwise/internal/provider/resilience"
)

const (
	// ProviderName identifies this greenspace provider.
	ProviderName = "overpass"

	// DefaultURL is the public Overpass interpreter endpoint.
	DefaultURL = "https://overpass-api.de/api/interpreter"
)

// GreenTags are the OSM way selectors counted as greenspace.
var GreenTags = []string{
	`["leisure"="park"]`,
	`["landuse"="forest"]`,
	`["natural"="wood"]`,
	`["landuse"="grass"]`,
	`["leisure"="garden"]`,
}

// ClientConfig holds configuration for the Overpass client.
type ClientConfig struct {
	// URL is the interpreter endpoint (optional, defaults to DefaultURL).
	URL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Overpass API client.
type Client struct {
	url        string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Overpass client.
func NewClient(cfg ClientConfig) *Client {
	endpoint := cfg.URL
	if endpoint == "" {
		endpoint = DefaultURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		url:        endpoint,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// BuildQuery returns the Overpass QL query for green ways within radius
// meters of center, with inline geometry.
func BuildQuery(center orb.Point, radiusMeters float64) string {
	around := fmt.Sprintf("(around:%s,%s,%s)",
		strconv.FormatFloat(radiusMeters, 'f', -1, 64),
		strconv.FormatFloat(center.Lat(), 'f', 6, 64),
		strconv.FormatFloat(center.Lon(), 'f', 6, 64),
	)

	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	for _, tag := range GreenTags {
		b.WriteString("  way")
		b.WriteString(tag)
		b.WriteString(around)
		b.WriteString(";\n")
	}
	b.WriteString(");\nout geom;")
	return b.String()
}

// Elements fetches green ways around center.
func (c *Client) Elements(ctx context.Context, center orb.Point, radiusMeters float64) ([]greenspace.Element, error) {
	form := url.Values{"data": {BuildQuery(center, radiusMeters)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body interpreterResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if body.Remark != "" {
		// Overpass reports query timeouts as a 200 with a remark.
		c.logger.Warn().Str("remark", body.Remark).Msg("overpass returned a remark")
	}

	elements := make([]greenspace.Element, 0, len(body.Elements))
	for _, el := range body.Elements {
		elements = append(elements, greenspace.Element{
			Type:     el.Type,
			ID:       el.ID,
			Tags:     el.Tags,
			Geometry: el.Geometry,
		})
	}
	return elements, nil
}

type interpreterResponse struct {
	Remark   string            `json:"remark"`
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type     string              `json:"type"`
	ID       int64               `json:"id"`
	Tags     map[string]string   `json:"tags"`
	Geometry []greenspace.Vertex `json:"geometry"`
}
