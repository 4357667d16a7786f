package heatrisk

// Assessment is the result of scoring one location.
type Assessment struct {
	HeatIndexC    float64
	GreenspacePct float64
	Score         int
	Label         Label
}

// Assess builds an Assessment from a temperature, an optional humidity and a
// greenspace percentage. The greenspace value is clamped to [0, 100].
func Assess(tempC float64, humidity *float64, greenspacePct float64) Assessment {
	hi := HeatIndexC(tempC, humidity)
	g := clamp(greenspacePct, 0, 100)
	score := Score(hi, g)

	return Assessment{
		HeatIndexC:    hi,
		GreenspacePct: g,
		Score:         score,
		Label:         LabelFor(score),
	}
}
