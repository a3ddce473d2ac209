package scoreplaces

import "lead-pipeline/internal/models"

type Input struct {
	Places []models.PlaceRecord `json:"places"`
	TopN   int                  `json:"topN,omitempty"`
}

type Output struct {
	Scored        []models.ScoredPlace `json:"scored"`
	ScoredCount   int                  `json:"scoredCount"`
	MedianReviews int                  `json:"medianReviews"`
	AvgRating     float64              `json:"avgRating"`
	TopScore      int                  `json:"topScore"`
}
