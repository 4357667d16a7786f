package heatrisk

import "math"

// Label is the qualitative risk bucket for a score.
type Label string

const (
	LabelLow      Label = "Low"
	LabelModerate Label = "Moderate"
	LabelElevated Label = "Elevated"
	LabelHigh     Label = "High"
)

// Score weighting and normalisation.
const (
	heatWeight       = 0.7
	greenspaceWeight = 0.3

	// Heat index range (°C) mapped linearly onto 0-100.
	heatIndexFloorC = 15.0
	heatIndexSpanC  = 32.0
)

// Score combines a heat index (°C) and a greenspace percentage into an
// integer risk score in [0, 100]. Less greenspace means more risk.
func Score(heatIndexC, greenspacePct float64) int {
	heatScore := clamp((heatIndexC-heatIndexFloorC)/heatIndexSpanC*100, 0, 100)
	g := clamp(greenspacePct, 0, 100)

	raw := heatWeight*heatScore + greenspaceWeight*(100-g)
	return int(clamp(math.Round(raw), 0, 100))
}

// LabelFor maps a score onto its risk label.
func LabelFor(score int) Label {
	switch {
	case score >= 75:
		return LabelHigh
	case score >= 60:
		return LabelElevated
	case score >= 45:
		return LabelModerate
	default:
		return LabelLow
	}
}

// clamp bounds v to [lo, hi]. NaN collapses to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
