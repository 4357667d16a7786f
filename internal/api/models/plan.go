package models

// Action is a mitigation action from the catalog.
type Action struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	HeatDrop   int     `json:"heatDrop"`
	CO2SavedKg float64 `json:"co2SavedKg"`
	SDGTags    []int   `json:"sdgTags"`
}

// ActionList is the action catalog.
type ActionList struct {
	Items []Action `json:"items"`
}

// PlanItemRequest is the body of POST /v1/sessions/{sessionID}/plan/items.
type PlanItemRequest struct {
	ActionID string `json:"actionId" validate:"required"`
}

// PlanSummary is a session's plan with its aggregate impact.
type PlanSummary struct {
	Items           []Action `json:"items"`
	ItemCount       int      `json:"itemCount"`
	TotalHeatDrop   int      `json:"totalHeatDrop"`
	TotalCO2Kg      float64  `json:"totalCo2Kg"`
	MilesEquivalent float64  `json:"milesEquivalent"`
	SDGTags         []int    `json:"sdgTags"`
}
