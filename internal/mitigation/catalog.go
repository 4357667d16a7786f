// Package mitigation holds the heat-mitigation action catalog and plan totals.
package mitigation

import (
	"errors"
	"slices"
)

// ErrUnknownAction is returned when an action ID is not in the catalog.
var ErrUnknownAction = errors.New("unknown mitigation action")

// Action is a single heat-mitigation measure with its estimated impact.
type Action struct {
	ID    string
	Label string

	// HeatDrop is the relative cooling impact on a 1-10 scale.
	HeatDrop int

	// CO2SavedKg is the estimated annual CO2 saving in kilograms.
	CO2SavedKg float64

	// SDGTags lists the UN Sustainable Development Goals the action supports.
	SDGTags []int
}

var catalog = []Action{
	{ID: "shade", Label: "Install shade structures", HeatDrop: 6, CO2SavedKg: 5, SDGTags: []int{3, 11}},
	{ID: "coolroof", Label: "Apply a cool (reflective) roof", HeatDrop: 8, CO2SavedKg: 150, SDGTags: []int{7, 11, 13}},
	{ID: "water", Label: "Add a water feature or misting", HeatDrop: 5, CO2SavedKg: 2, SDGTags: []int{3, 6, 11}},
	{ID: "trees", Label: "Plant street trees", HeatDrop: 10, CO2SavedKg: 25, SDGTags: []int{11, 13, 15}},
	{ID: "permeable", Label: "Replace asphalt with permeable paving", HeatDrop: 4, CO2SavedKg: 15, SDGTags: []int{6, 11}},
	{ID: "greenroof", Label: "Build a green roof", HeatDrop: 7, CO2SavedKg: 60, SDGTags: []int{11, 13, 15}},
}

// Catalog returns the available actions ordered by cooling impact, then by
// CO2 saving. Ties keep catalog order.
func Catalog() []Action {
	out := make([]Action, len(catalog))
	for i, a := range catalog {
		out[i] = a.clone()
	}

	slices.SortStableFunc(out, func(a, b Action) int {
		if a.HeatDrop != b.HeatDrop {
			return b.HeatDrop - a.HeatDrop
		}
		switch {
		case a.CO2SavedKg > b.CO2SavedKg:
			return -1
		case a.CO2SavedKg < b.CO2SavedKg:
			return 1
		}
		return 0
	})

	return out
}

// Lookup returns the catalog action with the given ID.
func Lookup(id string) (Action, error) {
	for _, a := range catalog {
		if a.ID == id {
			return a.clone(), nil
		}
	}
	return Action{}, ErrUnknownAction
}

func (a Action) clone() Action {
	a.SDGTags = slices.Clone(a.SDGTags)
	return a
}
