// Package scoring ranks places by sales opportunity. Everything here is
// pure and deterministic.
package scoring

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"lead-pipeline/internal/models"
)

// Factor weights. The sum is capped at MaxScore.
const (
	WeightNoWebsite          = 25
	WeightNoPhone            = 15
	WeightLowRating          = 15
	WeightFewReviews         = 20
	WeightBelowMedianReviews = 10
	WeightMobilePhone        = 5
	WeightOperational        = 5

	MaxScore = 100
)

const (
	lowRatingThreshold   = 3.5
	fewReviewsThreshold  = 10
	medianReviewFraction = 0.3
	medianCohortSize     = 10
)

var nonDigits = regexp.MustCompile(`\D`)

// Result is the output of ScoreAndRankPlaces.
type Result struct {
	Scored        []models.ScoredPlace `json:"scored"`
	MedianReviews int                  `json:"medianReviews"`
	AvgRating     float64              `json:"avgRating"`
}

// ComputeFactors evaluates every heuristic for place against the cohort median.
func ComputeFactors(place models.PlaceRecord, medianReviews int) models.ScoreFactors {
	phone := place.Phone
	if phone == "" {
		phone = place.InternationalPhone
	}
	return models.ScoreFactors{
		NoWebsite:          strings.TrimSpace(place.Website) == "",
		NoPhone:            strings.TrimSpace(phone) == "",
		LowRating:          place.Rating > 0 && place.Rating < lowRatingThreshold,
		FewReviews:         place.ReviewCount < fewReviewsThreshold,
		BelowMedianReviews: medianReviews > 0 && float64(place.ReviewCount) < float64(medianReviews)*medianReviewFraction,
		MobilePhone:        IsMobilePhone(phone),
		Operational:        place.BusinessStatus == models.BusinessStatusOperational,
	}
}

// ComputeScore sums the weights of the factors that fired, capped at MaxScore.
func ComputeScore(f models.ScoreFactors) int {
	score := 0
	if f.NoWebsite {
		score += WeightNoWebsite
	}
	if f.NoPhone {
		score += WeightNoPhone
	}
	if f.LowRating {
		score += WeightLowRating
	}
	if f.FewReviews {
		score += WeightFewReviews
	}
	if f.BelowMedianReviews {
		score += WeightBelowMedianReviews
	}
	if f.MobilePhone {
		score += WeightMobilePhone
	}
	if f.Operational {
		score += WeightOperational
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// IsMobilePhone reports a Brazilian mobile number: an area code followed
// by a nine-digit subscriber number starting with 9. A leading country
// code 55 and trunk prefix 0 are ignored.
func IsMobilePhone(phone string) bool {
	digits := nonDigits.ReplaceAllString(phone, "")
	switch {
	case len(digits) == 13 && strings.HasPrefix(digits, "55"):
		digits = digits[2:]
	case len(digits) == 12 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}
	return len(digits) == 11 && digits[2] == '9'
}

// MedianReviews takes up to the ten most reviewed places (reviews > 0) and
// returns the element at floor(n/2) of that descending list.
func MedianReviews(places []models.PlaceRecord) int {
	counts := make([]int, 0, len(places))
	for _, p := range places {
		if p.ReviewCount > 0 {
			counts = append(counts, p.ReviewCount)
		}
	}
	if len(counts) == 0 {
		return 0
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))
	if len(counts) > medianCohortSize {
		counts = counts[:medianCohortSize]
	}
	return counts[len(counts)/2]
}

// AverageRating is the mean of ratings above zero, rounded to one decimal.
func AverageRating(places []models.PlaceRecord) float64 {
	var sum float64
	var n int
	for _, p := range places {
		if p.Rating > 0 {
			sum += p.Rating
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*10) / 10
}

// ScoreAndRankPlaces drops records without id or name, scores the rest,
// and orders them by descending score keeping input order on ties. Ranks
// are 1-based. topN <= 0 keeps every record.
func ScoreAndRankPlaces(places []models.PlaceRecord, topN int) Result {
	valid := make([]models.PlaceRecord, 0, len(places))
	for _, p := range places {
		if strings.TrimSpace(p.ExternalID) == "" || strings.TrimSpace(p.Name) == "" {
			continue
		}
		valid = append(valid, p)
	}

	median := MedianReviews(valid)
	scored := make([]models.ScoredPlace, 0, len(valid))
	for _, p := range valid {
		factors := ComputeFactors(p, median)
		scored = append(scored, models.ScoredPlace{
			PlaceRecord: p,
			Score:       ComputeScore(factors),
			Factors:     factors,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if topN > 0 && len(scored) > topN {
		scored = scored[:topN]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}

	return Result{
		Scored:        scored,
		MedianReviews: median,
		AvgRating:     AverageRating(valid),
	}
}
