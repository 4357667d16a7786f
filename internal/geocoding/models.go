// Package geocoding resolves free-text place queries to coordinates.
package geocoding

import (
	"context"
	"errors"
	"strings"
)

// Geocoding errors.
var (
	ErrEmptyQuery          = errors.New("empty geocoding query")
	ErrNoResults           = errors.New("no geocoding results")
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
)

// Location is a resolved place.
type Location struct {
	Lat     float64
	Lon     float64
	Name    string
	Admin1  string
	Country string
}

// DisplayName joins the place name, first-level region and country,
// skipping empty parts.
func (l Location) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.Name, l.Admin1, l.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Provider defines the interface for geocoding data providers.
type Provider interface {
	// Search returns candidate locations for a query, best match first.
	// An empty slice with a nil error means nothing matched.
	Search(ctx context.Context, query string) ([]Location, error)

	// Name returns the provider name for logging.
	Name() string
}
