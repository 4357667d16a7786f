// Package featureflags provides runtime kill switches for the lookup pipeline.
package featureflags

import "time"

// Flag keys. Every flag is a boolean switch that is off by default.
const (
	// FlagDisableGreenspace skips the Overpass query and uses the fallback
	// greenspace percentage for every lookup.
	FlagDisableGreenspace = "disable_greenspace"

	// FlagCachedOnlyWeather serves weather only from cache, never calling
	// the provider.
	FlagCachedOnlyWeather = "cached_only_weather"

	// FlagDisableLookups rejects new lookups while upstreams are down.
	FlagDisableLookups = "disable_lookups"
)

// Flag is the current value of one switch.
type Flag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FlagUpdate sets one flag.
type FlagUpdate struct {
	Key   string `json:"key" validate:"required"`
	Value any    `json:"value"`
}

// FlagUpdateRequest is a batch of updates applied together.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates" validate:"required,min=1,dive"`
	Reason  string       `json:"reason"`
}

// BoolValue reports the flag as a boolean. A nil flag or a non-bool value
// yields def.
func (f *Flag) BoolValue(def bool) bool {
	if f == nil {
		return def
	}
	if v, ok := f.Value.(bool); ok {
		return v
	}
	return def
}

// DefaultFlags returns a fresh set of every known flag, all off.
func DefaultFlags() map[string]*Flag {
	keys := []string{FlagDisableGreenspace, FlagCachedOnlyWeather, FlagDisableLookups}
	out := make(map[string]*Flag, len(keys))
	for _, k := range keys {
		out[k] = &Flag{Key: k, Value: false}
	}
	return out
}
