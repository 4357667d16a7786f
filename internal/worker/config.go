// Package worker keeps provider caches warm for frequently searched places.
package worker

import (
	"cmp"
	"slices"
	"time"
)

// RefreshTarget is a place whose readings are kept warm.
type RefreshTarget struct {
	// Name is the human-readable name of the target.
	Name string

	// Points are the lat/lon coordinates to refresh, usually city centres.
	Points []Point

	// Priority determines refresh order (lower = higher priority).
	Priority int
}

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// RefreshConfig holds configuration for the cache refresh job.
type RefreshConfig struct {
	// Targets are the places to refresh.
	// If empty, uses DefaultRefreshTargets.
	Targets []RefreshTarget

	// Concurrency is the number of points refreshed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds the refresh of a single point.
	// Default: 30 seconds
	Timeout time.Duration

	// RefreshWeather enables weather refresh.
	RefreshWeather bool

	// RefreshGreenspace enables greenspace refresh.
	RefreshGreenspace bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Targets:           DefaultRefreshTargets(),
		Concurrency:       3,
		Timeout:           30 * time.Second,
		RefreshWeather:    true,
		RefreshGreenspace: true,
	}
}

// DefaultRefreshTargets returns hot cities that are searched often in summer.
func DefaultRefreshTargets() []RefreshTarget {
	return []RefreshTarget{
		{Name: "Seville", Priority: 1, Points: []Point{{Lat: 37.3886, Lon: -5.9823}}},
		{Name: "Madrid", Priority: 1, Points: []Point{{Lat: 40.4168, Lon: -3.7038}}},
		{Name: "Athens", Priority: 1, Points: []Point{{Lat: 37.9838, Lon: 23.7275}}},
		{Name: "Rome", Priority: 1, Points: []Point{{Lat: 41.9028, Lon: 12.4964}}},
		{Name: "Phoenix", Priority: 1, Points: []Point{{Lat: 33.4484, Lon: -112.0740}}},
		{Name: "Las Vegas", Priority: 2, Points: []Point{{Lat: 36.1699, Lon: -115.1398}}},
		{Name: "Houston", Priority: 2, Points: []Point{{Lat: 29.7604, Lon: -95.3698}}},
		{Name: "Dubai", Priority: 2, Points: []Point{{Lat: 25.2048, Lon: 55.2708}}},
		{Name: "Delhi", Priority: 2, Points: []Point{{Lat: 28.6139, Lon: 77.2090}}},
		{Name: "Cairo", Priority: 3, Points: []Point{{Lat: 30.0444, Lon: 31.2357}}},
		{Name: "Bangkok", Priority: 3, Points: []Point{{Lat: 13.7563, Lon: 100.5018}}},
		{Name: "Lisbon", Priority: 3, Points: []Point{{Lat: 38.7223, Lon: -9.1393}}},
	}
}

// AllPoints returns all points from all targets, ordered by priority.
func (c RefreshConfig) AllPoints() []Point {
	targets := make([]RefreshTarget, len(c.Targets))
	copy(targets, c.Targets)
	slices.SortStableFunc(targets, func(a, b RefreshTarget) int {
		return cmp.Compare(a.Priority, b.Priority)
	})

	var points []Point
	for _, target := range targets {
		points = append(points, target.Points...)
	}
	return points
}

// TotalPoints returns the total number of points to refresh.
func (c RefreshConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}
