// Package polyline encodes point sequences with Google's polyline algorithm
// at 5-decimal precision. Points are orb.Points, so longitude comes first in
// memory while the wire format stays latitude-first.
//
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

// ErrMalformed is returned when an encoded string ends mid-value or holds
// an unpaired coordinate.
var ErrMalformed = errors.New("malformed polyline")

const factor = 1e5

// Encode encodes points into a polyline string. An empty input encodes to "".
func Encode(points []orb.Point) string {
	if len(points) == 0 {
		return ""
	}

	buf := make([]byte, 0, len(points)*6)
	var prevLat, prevLon int
	for _, p := range points {
		lat := int(math.Round(p.Lat() * factor))
		lon := int(math.Round(p.Lon() * factor))

		buf = appendValue(buf, lat-prevLat)
		buf = appendValue(buf, lon-prevLon)

		prevLat, prevLon = lat, lon
	}
	return string(buf)
}

// EncodeRing encodes a ring, closing vertex included.
func EncodeRing(r orb.Ring) string {
	return Encode(r)
}

// Decode decodes a polyline string. An empty string decodes to nil.
func Decode(encoded string) ([]orb.Point, error) {
	if encoded == "" {
		return nil, nil
	}

	var points []orb.Point
	var lat, lon int
	for i := 0; i < len(encoded); {
		dLat, next, ok := readValue(encoded, i)
		if !ok {
			return nil, ErrMalformed
		}
		dLon, next, ok := readValue(encoded, next)
		if !ok {
			return nil, ErrMalformed
		}
		i = next

		lat += dLat
		lon += dLon
		points = append(points, orb.Point{float64(lon) / factor, float64(lat) / factor})
	}
	return points, nil
}

func appendValue(buf []byte, v int) []byte {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		buf = append(buf, byte((u&0x1f)|0x20)+63)
		u >>= 5
	}
	return append(buf, byte(u)+63)
}

// readValue reads one zig-zag value starting at i. ok is false if the
// string ends before the value's final chunk.
func readValue(encoded string, i int) (v, next int, ok bool) {
	var result, shift int
	for i < len(encoded) {
		b := int(encoded[i]) - 63
		i++
		if b < 0 || b > 0x3f {
			return 0, i, false
		}
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), i, true
			}
			return result >> 1, i, true
		}
	}
	return 0, i, false
}
