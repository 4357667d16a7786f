package models

import "github.com/paulmach/orb/geojson"

// Session is the state of one user session.
type Session struct {
	ID           string      `json:"id"`
	CreatedAt    Timestamp   `json:"createdAt"`
	LastActiveAt Timestamp   `json:"lastActiveAt"`
	Status       string      `json:"status"`
	Assessment   *Assessment `json:"assessment,omitempty"`
	Message      string      `json:"message,omitempty"`
	Plan         PlanSummary `json:"plan"`
}

// LookupRequest is the body of POST /v1/sessions/{sessionID}/lookups.
type LookupRequest struct {
	Query string `json:"query" validate:"required,max=200"`
}

// Assessment is the result of a successful lookup.
type Assessment struct {
	Query      string     `json:"query"`
	Location   Location   `json:"location"`
	Weather    Weather    `json:"weather"`
	Greenspace Greenspace `json:"greenspace"`
	HeatIndexC float64    `json:"heatIndexC"`
	Score      int        `json:"score"`
	Label      string     `json:"label"`
	FinishedAt Timestamp  `json:"finishedAt"`
}

// Location is a geocoded place.
type Location struct {
	Point
	Name        string `json:"name"`
	Admin1      string `json:"admin1,omitempty"`
	Country     string `json:"country,omitempty"`
	DisplayName string `json:"displayName"`
}

// Weather is the current weather used for an assessment.
type Weather struct {
	TemperatureC        float64   `json:"temperatureC"`
	RelativeHumidityPct *float64  `json:"relativeHumidityPct"`
	HumidityAssumed     bool      `json:"humidityAssumed"`
	ObservedAt          Timestamp `json:"observedAt"`
}

// Greenspace is the greenspace estimate used for an assessment.
type Greenspace struct {
	Pct      float64 `json:"pct"`
	Fallback bool    `json:"fallback"`
	Included int     `json:"included"`
	Skipped  int     `json:"skipped"`
}

// MapLayer is what a map client draws for an assessment: the reference
// circle as an encoded polyline and the counted green areas as GeoJSON.
type MapLayer struct {
	Center         Point                      `json:"center"`
	RadiusMeters   float64                    `json:"radiusMeters"`
	CirclePolyline string                     `json:"circlePolyline"`
	Features       *geojson.FeatureCollection `json:"features,omitempty"`
}
