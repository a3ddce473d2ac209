package intelligence

import (
	"context"
	"fmt"
	"strings"

	"lead-pipeline/internal/models"
)

var leadSchema = mustSchema(`{
	"type": "object",
	"required": ["summary", "priority"],
	"properties": {
		"summary": {"type": "string"},
		"priority": {"type": "string", "enum": ["high", "medium", "low"]},
		"painPoints": {"type": "array", "items": {"type": "string"}},
		"pitch": {"type": "string"}
	}
}`)

type LeadAnalysis struct {
	ExternalID string   `json:"externalId"`
	Summary    string   `json:"summary"`
	Priority   string   `json:"priority"`
	PainPoints []string `json:"painPoints"`
	Pitch      string   `json:"pitch"`
	Enriched   bool     `json:"enriched,omitempty"`
	Degraded   bool     `json:"degraded,omitempty"`
}

// priorityFor derives a priority from the score alone.
func priorityFor(score int) string {
	switch {
	case score >= 70:
		return "high"
	case score >= 40:
		return "medium"
	default:
		return "low"
	}
}

func factorList(f models.ScoreFactors) []string {
	var out []string
	if f.NoWebsite {
		out = append(out, "no website")
	}
	if f.NoPhone {
		out = append(out, "no phone listed")
	}
	if f.LowRating {
		out = append(out, "low rating")
	}
	if f.FewReviews {
		out = append(out, "few reviews")
	}
	if f.BelowMedianReviews {
		out = append(out, "far fewer reviews than competitors")
	}
	if f.MobilePhone {
		out = append(out, "mobile phone as main contact")
	}
	return out
}

// AnalyzeLead writes a sales angle for one scored place. When the model
// answer is unusable the result falls back to the score factors.
func (s *Service) AnalyzeLead(ctx context.Context, place models.ScoredPlace, attr models.Attribution) (*LeadAnalysis, error) {
	place, enriched := s.enrich(ctx, place, attr)
	factors := factorList(place.Factors)
	fallback := &LeadAnalysis{
		ExternalID: place.ExternalID,
		Summary:    fmt.Sprintf("%s scored %d.", place.Name, place.Score),
		Priority:   priorityFor(place.Score),
		PainPoints: factors,
		Enriched:   enriched,
		Degraded:   true,
	}

	prompt := fmt.Sprintf(`Analyse this business as a sales lead for digital marketing services.
Name: %s
Address: %s
Categories: %s
Rating: %.1f (%d reviews)
Website: %s
Phone: %s
Opportunity score: %d/100
Signals: %s
Return JSON with: summary, priority (high|medium|low), painPoints, pitch.`,
		place.Name, place.Address, strings.Join(place.Categories, ", "), place.Rating, place.ReviewCount,
		orNone(place.Website), orNone(place.Phone), place.Score, orNone(strings.Join(factors, "; ")))

	var analysis LeadAnalysis
	ok, err := s.analyze(ctx, models.RoleLeadAnalysis, prompt, leadSchema, attr, &analysis)
	if err != nil {
		return nil, err
	}
	if !ok {
		return fallback, nil
	}
	analysis.ExternalID = place.ExternalID
	analysis.Enriched = enriched
	return &analysis, nil
}

// enrich fills a missing website or phone from the place details. The score
// is kept; only the contact factors the details disprove are cleared. A
// failed lookup leaves the lead as scored.
func (s *Service) enrich(ctx context.Context, place models.ScoredPlace, attr models.Attribution) (models.ScoredPlace, bool) {
	if s.details == nil || place.ExternalID == "" || (place.HasWebsite() && place.HasPhone()) {
		return place, false
	}

	details, err := s.details.PlaceDetails(ctx, place.ExternalID)
	if err != nil {
		s.logger.Warn("place details failed, analysing lead as scored", map[string]interface{}{
			"externalId": place.ExternalID,
			"error":      err.Error(),
		})
		return place, false
	}
	if s.usage != nil {
		s.usage.Record(ctx, models.UsageEvent{
			WorkspaceID: attr.WorkspaceID,
			UserID:      attr.UserID,
			Kind:        models.UsagePlaceDetails,
			Quantity:    1,
			Provider:    "places",
			Metadata:    map[string]interface{}{"externalId": place.ExternalID},
		})
	}

	enriched := false
	if !place.HasWebsite() && details.HasWebsite() {
		place.Website = details.Website
		place.Factors.NoWebsite = false
		enriched = true
	}
	if !place.HasPhone() && details.HasPhone() {
		place.Phone = details.Phone
		place.InternationalPhone = details.InternationalPhone
		place.Factors.NoPhone = false
		enriched = true
	}
	return place, enriched
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}
