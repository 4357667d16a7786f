package greenspace

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// ReferenceCircle returns a closed geodesic ring of the given radius around
// center, with segments vertices plus the closing vertex.
func ReferenceCircle(center orb.Point, radiusMeters float64, segments int) orb.Ring {
	ring := make(orb.Ring, 0, segments+1)
	for i := 0; i < segments; i++ {
		bearing := float64(i) * -360 / float64(segments)
		ring = append(ring, geo.PointAtBearingAndDistance(center, bearing, radiusMeters))
	}
	return append(ring, ring[0])
}

// RingFromVertices builds a closed ring from an element outline, closing it
// if needed. Outlines with fewer than three distinct positions, or with
// out-of-range or non-finite coordinates, are rejected with
// ErrMalformedGeometry.
func RingFromVertices(vertices []Vertex) (orb.Ring, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("%w: %d vertices", ErrMalformedGeometry, len(vertices))
	}

	ring := make(orb.Ring, 0, len(vertices)+1)
	for _, v := range vertices {
		if !validCoordinate(v.Lat, v.Lon) {
			return nil, fmt.Errorf("%w: coordinate (%v, %v)", ErrMalformedGeometry, v.Lat, v.Lon)
		}
		ring = append(ring, orb.Point{v.Lon, v.Lat})
	}

	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	if len(ring) < 4 {
		return nil, fmt.Errorf("%w: ring closes after %d vertices", ErrMalformedGeometry, len(ring)-1)
	}
	return ring, nil
}

// Centroid returns the mean of the ring's vertices, ignoring the closing
// vertex.
func Centroid(r orb.Ring) orb.Point {
	n := len(r)
	if n > 1 && r[0] == r[n-1] {
		n--
	}
	if n == 0 {
		return orb.Point{}
	}

	var sumLon, sumLat float64
	for _, p := range r[:n] {
		sumLon += p[0]
		sumLat += p[1]
	}
	return orb.Point{sumLon / float64(n), sumLat / float64(n)}
}

// Coverage returns the percentage of circle covered by rings whose centroid
// lies inside it, and which rings those were. Each included ring counts with
// its full area. The result is clamped to [0, 100]; non-finite ratios
// count as 0.
func Coverage(circle orb.Ring, rings []orb.Ring) (float64, []int) {
	circleArea := geo.Area(circle)

	var green float64
	var included []int
	for i, r := range rings {
		if !planar.RingContains(circle, Centroid(r)) {
			continue
		}
		green += geo.Area(r)
		included = append(included, i)
	}

	pct := green / circleArea * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		pct = 0
	}
	return math.Max(0, math.Min(100, pct)), included
}

func validCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
