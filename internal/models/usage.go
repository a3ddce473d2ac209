package models

import "time"

// Usage event kinds.
const (
	UsagePlacesSearch = "places_search"
	UsagePlaceDetails = "place_details"
	UsageAITokens     = "ai_tokens"
	UsageWebSearch    = "web_search"
)

// Attribution identifies who a metered call is billed to.
type Attribution struct {
	WorkspaceID string `json:"workspaceId"`
	UserID      string `json:"userId"`
}

// IsZero reports a missing attribution; such calls are not metered.
func (a Attribution) IsZero() bool {
	return a.WorkspaceID == "" && a.UserID == ""
}

// UsageEvent is an append-only record of metered consumption.
type UsageEvent struct {
	ID           string                 `json:"id"`
	WorkspaceID  string                 `json:"workspaceId"`
	UserID       string                 `json:"userId"`
	Kind         string                 `json:"kind"`
	Quantity     int                    `json:"quantity"`
	Provider     string                 `json:"provider,omitempty"`
	Model        string                 `json:"model,omitempty"`
	InputTokens  int                    `json:"inputTokens,omitempty"`
	OutputTokens int                    `json:"outputTokens,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}
