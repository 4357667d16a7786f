// Package heatrisk turns weather and land cover into a heat-risk score.
package heatrisk

import "math"

// Below this apparent temperature (°F) the regression is not applied.
const rothfuszThresholdF = 80.0

// DefaultHumidityPct is assumed when a reading carries no relative humidity.
const DefaultHumidityPct = 50.0

// HeatIndexC returns the apparent temperature in Celsius for an air
// temperature in Celsius and an optional relative humidity in percent.
// A nil humidity is treated as DefaultHumidityPct.
func HeatIndexC(tempC float64, humidity *float64) float64 {
	r := DefaultHumidityPct
	if humidity != nil {
		r = *humidity
	}

	t := celsiusToFahrenheit(tempC)
	if t < rothfuszThresholdF {
		return tempC
	}

	hi := RothfuszF(t, r)

	// NWS adjustments for dry and for humid air.
	if r < 13 && t >= 80 && t <= 112 {
		hi -= ((13 - r) / 4) * math.Sqrt((17-math.Abs(t-95))/17)
	}
	if r > 85 && t >= 80 && t <= 87 {
		hi -= ((r - 85) / 10) * ((87 - t) / 5)
	}

	return fahrenheitToCelsius(hi)
}

// RothfuszF evaluates the unadjusted Rothfusz regression for a temperature
// in Fahrenheit and relative humidity in percent.
func RothfuszF(t, r float64) float64 {
	return -42.379 +
		2.04901523*t +
		10.14333127*r -
		0.22475541*t*r -
		6.83783e-3*t*t -
		5.481717e-2*r*r +
		1.22874e-3*t*t*r +
		8.5282e-4*t*r*r -
		1.99e-6*t*t*r*r
}

func celsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

func fahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}
