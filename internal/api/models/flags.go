package models

// FeatureFlag is a runtime feature flag.
type FeatureFlag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// FeatureFlagChange is one entry of the flag audit trail.
type FeatureFlagChange struct {
	Key    string    `json:"key"`
	Value  any       `json:"value"`
	Reason string    `json:"reason,omitempty"`
	At     Timestamp `json:"at"`
}

// FeatureFlagHistory lists flag changes, newest first.
type FeatureFlagHistory struct {
	Items []FeatureFlagChange `json:"items"`
}

// FeatureFlagList is the set of known feature flags.
type FeatureFlagList struct {
	Items []FeatureFlag `json:"items"`
}
