package runsearch

import "lead-pipeline/internal/models"

type Input struct {
	UserID     string  `json:"userId"`
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
	// MaxPlaces > 0 walks pages up to that many places.
	MaxPlaces int `json:"maxPlaces,omitempty"`
}

func (in Input) request() models.SearchRequest {
	return models.SearchRequest{
		TextQuery:  in.TextQuery,
		Category:   in.Category,
		PageSize:   in.PageSize,
		PageToken:  in.PageToken,
		City:       in.City,
		State:      in.State,
		Country:    in.Country,
		RadiusKm:   in.RadiusKm,
		HasWebsite: in.HasWebsite,
		HasPhone:   in.HasPhone,
	}
}

type Output struct {
	Places        []models.PlaceRecord `json:"places"`
	ResultCount   int                  `json:"resultCount"`
	NextPageToken string               `json:"nextPageToken,omitempty"`
	Source        string               `json:"source"`
	TotalFetched  int                  `json:"totalFetched,omitempty"`
}
