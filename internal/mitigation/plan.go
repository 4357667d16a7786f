package mitigation

import "slices"

// KgCO2PerMile is the average passenger car emission used for the
// miles-not-driven equivalent.
const KgCO2PerMile = 0.404

// Plan is an ordered list of chosen actions. Adding the same action twice
// keeps both entries.
type Plan struct {
	items []Action
}

// Add appends an action to the plan.
func (p *Plan) Add(a Action) {
	p.items = append(p.items, a.clone())
}

// Clear removes every item.
func (p *Plan) Clear() {
	p.items = nil
}

// Items returns a copy of the plan entries in insertion order.
func (p *Plan) Items() []Action {
	out := make([]Action, len(p.items))
	for i, a := range p.items {
		out[i] = a.clone()
	}
	return out
}

// Summary aggregates the impact of a plan.
type Summary struct {
	ItemCount       int
	TotalHeatDrop   int
	TotalCO2Kg      float64
	MilesEquivalent float64
	SDGTags         []int
}

// Summary returns the aggregated impact of the current items.
func (p *Plan) Summary() Summary {
	return Summarize(p.items)
}

// Summarize aggregates the impact of a list of actions.
func Summarize(items []Action) Summary {
	s := Summary{ItemCount: len(items), SDGTags: []int{}}

	for _, a := range items {
		s.TotalHeatDrop += a.HeatDrop
		s.TotalCO2Kg += a.CO2SavedKg
		for _, tag := range a.SDGTags {
			if !slices.Contains(s.SDGTags, tag) {
				s.SDGTags = append(s.SDGTags, tag)
			}
		}
	}

	slices.Sort(s.SDGTags)
	s.MilesEquivalent = s.TotalCO2Kg / KgCO2PerMile

	return s
}
