package models

import "strings"

// Business status values reported by the places provider.
const (
	BusinessStatusOperational       = "OPERATIONAL"
	BusinessStatusClosedTemporarily = "CLOSED_TEMPORARILY"
	BusinessStatusClosedPermanently = "CLOSED_PERMANENTLY"
)

// PlaceRecord is a discovered business as returned by one fetch.
type PlaceRecord struct {
	ExternalID         string   `json:"externalId"`
	Name               string   `json:"name"`
	Address            string   `json:"address"`
	Phone              string   `json:"phone,omitempty"`
	InternationalPhone string   `json:"internationalPhone,omitempty"`
	Website            string   `json:"website,omitempty"`
	Rating             float64  `json:"rating"`
	ReviewCount        int      `json:"reviewCount"`
	Categories         []string `json:"categories,omitempty"`
	BusinessStatus     string   `json:"businessStatus,omitempty"`
	Latitude           float64  `json:"latitude,omitempty"`
	Longitude          float64  `json:"longitude,omitempty"`
	MapsURL            string   `json:"mapsUrl,omitempty"`
}

// HasWebsite reports a non-blank website.
func (p PlaceRecord) HasWebsite() bool {
	return strings.TrimSpace(p.Website) != ""
}

// HasPhone reports any phone number.
func (p PlaceRecord) HasPhone() bool {
	return p.Phone != "" || p.InternationalPhone != ""
}

// ScoreFactors records which opportunity heuristics fired for a place.
type ScoreFactors struct {
	NoWebsite          bool `json:"noWebsite"`
	NoPhone            bool `json:"noPhone"`
	LowRating          bool `json:"lowRating"`
	FewReviews         bool `json:"fewReviews"`
	BelowMedianReviews bool `json:"belowMedianReviews"`
	MobilePhone        bool `json:"mobilePhone"`
	Operational        bool `json:"operational"`
}

// ScoredPlace is a PlaceRecord ranked by opportunity score. It is derived
// on every scoring pass and never stored.
type ScoredPlace struct {
	PlaceRecord
	Score   int          `json:"score"`
	Factors ScoreFactors `json:"factors"`
	Rank    int          `json:"rank"`
}
