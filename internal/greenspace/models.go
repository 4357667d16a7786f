// Package greenspace estimates the share of green land cover around a point.
package greenspace

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Greenspace errors.
var (
	ErrMalformedGeometry   = errors.New("malformed element geometry")
	ErrProviderUnavailable = errors.New("greenspace provider unavailable")
	ErrDisabled            = errors.New("greenspace estimation disabled")
)

const (
	// RadiusMeters is the radius of the reference circle.
	RadiusMeters = 1500.0

	// CircleSegments is the number of vertices used to approximate the circle.
	CircleSegments = 48

	// FallbackPct is reported when no estimate could be computed.
	FallbackPct = 30.0
)

// Vertex is one point of an element outline as returned by the provider.
type Vertex struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Element is a green area outline.
type Element struct {
	Type     string
	ID       int64
	Tags     map[string]string
	Geometry []Vertex
}

// Provider fetches green area outlines within a radius of a point.
type Provider interface {
	Elements(ctx context.Context, center orb.Point, radiusMeters float64) ([]Element, error)

	// Name returns the provider name for logging.
	Name() string
}

// FlagChecker reports whether a runtime feature flag is on.
type FlagChecker interface {
	IsEnabled(ctx context.Context, key string) bool
}

// Estimate is the outcome of one greenspace estimation. When Fallback is
// set, Pct is FallbackPct and Err holds the cause.
type Estimate struct {
	Pct      float64
	Fallback bool
	Err      error

	// Included counts polygons whose centroid fell inside the circle.
	Included int

	// Skipped counts elements discarded as malformed or degenerate.
	Skipped int

	// Circle is the closed reference ring, (lon, lat).
	Circle orb.Ring

	// Features holds the included polygons for map display. Nil on fallback.
	Features *geojson.FeatureCollection
}

func fallback(circle orb.Ring, err error) Estimate {
	return Estimate{
		Pct:      FallbackPct,
		Fallback: true,
		Err:      err,
		Circle:   circle,
	}
}
