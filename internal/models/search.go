package models

import "time"

// Presence filter values for HasWebsite / HasPhone.
const (
	PresenceAny = ""
	PresenceYes = "yes"
	PresenceNo  = "no"
)

// Resolution tiers a search can be answered from.
const (
	SourceCache    = "cache"
	SourceLocalDB  = "local_db"
	SourceExternal = "external"
)

// SearchRequest is the caller's discovery intent.
type SearchRequest struct {
	TextQuery  string  `json:"textQuery"`
	Category   string  `json:"category,omitempty"`
	PageSize   int     `json:"pageSize,omitempty"`
	PageToken  string  `json:"pageToken,omitempty"`
	City       string  `json:"city,omitempty"`
	State      string  `json:"state,omitempty"`
	Country    string  `json:"country,omitempty"`
	RadiusKm   float64 `json:"radiusKm,omitempty"`
	HasWebsite string  `json:"hasWebsite,omitempty"`
	HasPhone   string  `json:"hasPhone,omitempty"`
}

// HasLocation reports whether a city was supplied for location bias.
func (r SearchRequest) HasLocation() bool {
	return r.City != ""
}

// SearchResult is one page of resolved places.
type SearchResult struct {
	Places        []PlaceRecord `json:"places"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
	FromCache     bool          `json:"fromCache,omitempty"`
	FromLocalDB   bool          `json:"fromLocalDb,omitempty"`
}

// AllPagesResult aggregates a multi-page walk.
type AllPagesResult struct {
	Places       []PlaceRecord `json:"places"`
	TotalFetched int           `json:"totalFetched"`
}

// Coordinates is a geocoded point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SearchFilters is the audit copy of the filters a search ran with.
type SearchFilters struct {
	Category   string  `json:"category,omitempty"`
	HasWebsite string  `json:"hasWebsite,omitempty"`
	HasPhone   string  `json:"hasPhone,omitempty"`
	City       string  `json:"city,omitempty"`
	State      string  `json:"state,omitempty"`
	Country    string  `json:"country,omitempty"`
	RadiusKm   float64 `json:"radiusKm,omitempty"`
	PageSize   int     `json:"pageSize,omitempty"`
	PageToken  bool    `json:"pageToken,omitempty"`
}

// SearchHistory is one auditable search execution.
type SearchHistory struct {
	ID           string        `json:"id"`
	WorkspaceID  string        `json:"workspaceId"`
	UserID       string        `json:"userId"`
	Query        string        `json:"query"`
	Filters      SearchFilters `json:"filters"`
	ResultsCount int           `json:"resultsCount"`
	Source       string        `json:"source"`
	Billable     bool          `json:"billable"`
	CreatedAt    time.Time     `json:"createdAt"`
}
