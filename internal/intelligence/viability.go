package intelligence

import (
	"context"
	"fmt"
	"strings"

	errs "lead-pipeline/internal/common/errors"
	"lead-pipeline/internal/models"
)

var viabilitySchema = mustSchema(`{
	"type": "object",
	"required": ["viabilityScore", "verdict", "summary"],
	"properties": {
		"viabilityScore": {"type": "integer", "minimum": 0, "maximum": 100},
		"verdict": {"type": "string", "enum": ["viable", "uncertain", "not_viable"]},
		"summary": {"type": "string"},
		"strengths": {"type": "array", "items": {"type": "string"}},
		"weaknesses": {"type": "array", "items": {"type": "string"}},
		"recommendations": {"type": "array", "items": {"type": "string"}}
	}
}`)

type ViabilityAnalysis struct {
	ViabilityScore  int      `json:"viabilityScore"`
	Verdict         string   `json:"verdict"`
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
}

type ViabilityReport struct {
	Idea        string            `json:"idea"`
	Subject     Subject           `json:"subject"`
	Competitors int               `json:"competitors"`
	AvgRating   float64           `json:"avgRating"`
	Analysis    ViabilityAnalysis `json:"analysis"`
	Degraded    bool              `json:"degraded,omitempty"`
}

func neutralViabilityAnalysis() ViabilityAnalysis {
	return ViabilityAnalysis{
		ViabilityScore: 50,
		Verdict:        "uncertain",
		Summary:        "Viability could not be assessed right now.",
	}
}

// ViabilityReport estimates whether idea can succeed in subject's market,
// using the local competition as evidence.
func (s *Service) ViabilityReport(ctx context.Context, idea string, subject Subject, attr models.Attribution) (*ViabilityReport, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return nil, errs.NewInvalidRequestError("business idea is required")
	}

	ranked, err := s.scoredMarket(ctx, subject, attr, 10)
	if err != nil {
		return nil, err
	}

	report := &ViabilityReport{
		Idea:        idea,
		Subject:     subject,
		Competitors: len(ranked.Scored),
		AvgRating:   ranked.AvgRating,
		Analysis:    neutralViabilityAnalysis(),
	}

	webCtx := s.webContext(ctx, models.RoleViability, []string{
		idea + " " + subject.where() + " mercado",
		subject.label() + " Reclame Aqui",
	}, attr)

	prompt := withContext(fmt.Sprintf(`Evaluate the viability of this business idea: "%s".
Target market: "%s". Existing competitors found: %d. Their average rating: %.1f. Median reviews: %d.
Competitors:
%s
Return JSON with: viabilityScore (0-100), verdict (viable|uncertain|not_viable), summary, strengths, weaknesses, recommendations.`,
		idea, subject.label(), len(ranked.Scored), ranked.AvgRating, ranked.MedianReviews, placeLines(ranked.Scored, 10)), webCtx)

	var analysis ViabilityAnalysis
	ok, err := s.analyze(ctx, models.RoleViability, prompt, viabilitySchema, attr, &analysis)
	if err != nil {
		return nil, err
	}
	if ok {
		report.Analysis = analysis
	} else {
		report.Degraded = true
	}
	return report, nil
}
