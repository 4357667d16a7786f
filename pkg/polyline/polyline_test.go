package polyline_test

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatwise/heatwise/pkg/polyline"
)

// The worked example from Google's algorithm documentation.
const googleExample = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

var googlePoints = []orb.Point{
	{-120.2, 38.5},
	{-120.95, 40.7},
	{-126.453, 43.252},
}

func TestEncode_GoogleExample(t *testing.T) {
	assert.Equal(t, googleExample, polyline.Encode(googlePoints))
}

func TestDecode_GoogleExample(t *testing.T) {
	points, err := polyline.Decode(googleExample)
	require.NoError(t, err)
	require.Len(t, points, len(googlePoints))

	for i, want := range googlePoints {
		assert.InDelta(t, want.Lat(), points[i].Lat(), 1e-9)
		assert.InDelta(t, want.Lon(), points[i].Lon(), 1e-9)
	}
}

func TestEncode_Empty(t *testing.T) {
	assert.Equal(t, "", polyline.Encode(nil))
	assert.Equal(t, "", polyline.Encode([]orb.Point{}))

	points, err := polyline.Decode("")
	require.NoError(t, err)
	assert.Nil(t, points)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"truncated value", "_p~iF~ps|"},
		{"unpaired latitude", "_p~iF"},
		{"invalid byte", "_p~iF\x01\x01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := polyline.Decode(tt.encoded)
			assert.ErrorIs(t, err, polyline.ErrMalformed)
		})
	}
}

func TestEncodeRing_RoundTrip(t *testing.T) {
	center := orb.Point{-5.9845, 37.3891}
	ring := orb.Ring{
		geo.PointAtBearingAndDistance(center, 0, 1500),
		geo.PointAtBearingAndDistance(center, 120, 1500),
		geo.PointAtBearingAndDistance(center, 240, 1500),
	}
	ring = append(ring, ring[0])

	points, err := polyline.Decode(polyline.EncodeRing(ring))
	require.NoError(t, err)
	require.Len(t, points, len(ring))

	for i := range ring {
		assert.InDelta(t, ring[i].Lat(), points[i].Lat(), 1e-5)
		assert.InDelta(t, ring[i].Lon(), points[i].Lon(), 1e-5)
	}
	assert.Equal(t, points[0], points[len(points)-1])
}
