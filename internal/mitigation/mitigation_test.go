package mitigation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatwise/heatwise/internal/mitigation"
)

func TestCatalog_Order(t *testing.T) {
	actions := mitigation.Catalog()
	require.Len(t, actions, 6)

	ids := make([]string, len(actions))
	for i, a := range actions {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"trees", "coolroof", "greenroof", "shade", "water", "permeable"}, ids)

	for i := 1; i < len(actions); i++ {
		prev, cur := actions[i-1], actions[i]
		if prev.HeatDrop == cur.HeatDrop {
			assert.GreaterOrEqual(t, prev.CO2SavedKg, cur.CO2SavedKg)
		} else {
			assert.Greater(t, prev.HeatDrop, cur.HeatDrop)
		}
	}
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	actions := mitigation.Catalog()
	actions[0].SDGTags[0] = 99
	actions[0].HeatDrop = 0

	again := mitigation.Catalog()
	assert.Equal(t, 10, again[0].HeatDrop)
	assert.NotContains(t, again[0].SDGTags, 99)
}

func TestLookup(t *testing.T) {
	a, err := mitigation.Lookup("coolroof")
	require.NoError(t, err)
	assert.Equal(t, 8, a.HeatDrop)
	assert.Equal(t, 150.0, a.CO2SavedKg)

	_, err = mitigation.Lookup("jetpack")
	assert.ErrorIs(t, err, mitigation.ErrUnknownAction)
}

func TestPlan_EmptySummary(t *testing.T) {
	var p mitigation.Plan
	s := p.Summary()

	assert.Equal(t, 0, s.ItemCount)
	assert.Equal(t, 0, s.TotalHeatDrop)
	assert.Equal(t, 0.0, s.TotalCO2Kg)
	assert.Equal(t, 0.0, s.MilesEquivalent)
	assert.Empty(t, s.SDGTags)
}

func TestPlan_TreesAndCoolRoof(t *testing.T) {
	trees, err := mitigation.Lookup("trees")
	require.NoError(t, err)
	coolroof, err := mitigation.Lookup("coolroof")
	require.NoError(t, err)

	var p mitigation.Plan
	p.Add(trees)
	p.Add(coolroof)
	s := p.Summary()

	assert.Equal(t, 2, s.ItemCount)
	assert.Equal(t, 18, s.TotalHeatDrop)
	assert.Equal(t, 175.0, s.TotalCO2Kg)
	assert.InDelta(t, 433.2, s.MilesEquivalent, 0.05)
	assert.Equal(t, []int{7, 11, 13, 15}, s.SDGTags)
}

func TestPlan_DuplicatesCounted(t *testing.T) {
	trees, err := mitigation.Lookup("trees")
	require.NoError(t, err)

	var p mitigation.Plan
	p.Add(trees)
	p.Add(trees)

	s := p.Summary()
	assert.Equal(t, 2, s.ItemCount)
	assert.Equal(t, 20, s.TotalHeatDrop)
	assert.Equal(t, 50.0, s.TotalCO2Kg)
	assert.Len(t, p.Items(), 2)
}

func TestPlan_Clear(t *testing.T) {
	shade, err := mitigation.Lookup("shade")
	require.NoError(t, err)

	var p mitigation.Plan
	p.Add(shade)
	p.Clear()

	assert.Empty(t, p.Items())
	assert.Equal(t, mitigation.Summary{SDGTags: []int{}}, p.Summary())
}
