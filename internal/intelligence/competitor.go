package intelligence

import (
	"context"
	"fmt"

	"lead-pipeline/internal/models"
)

var competitorSchema = mustSchema(`{
	"type": "object",
	"required": ["summary", "saturation"],
	"properties": {
		"summary": {"type": "string"},
		"saturation": {"type": "string", "enum": ["low", "medium", "high"]},
		"strongestCompetitors": {"type": "array", "items": {"type": "string"}},
		"gaps": {"type": "array", "items": {"type": "string"}},
		"recommendations": {"type": "array", "items": {"type": "string"}}
	}
}`)

type CompetitorAnalysis struct {
	Summary              string   `json:"summary"`
	Saturation           string   `json:"saturation"`
	StrongestCompetitors []string `json:"strongestCompetitors"`
	Gaps                 []string `json:"gaps"`
	Recommendations      []string `json:"recommendations"`
}

type CompetitorReport struct {
	Subject       Subject              `json:"subject"`
	Competitors   []models.ScoredPlace `json:"competitors"`
	MedianReviews int                  `json:"medianReviews"`
	AvgRating     float64              `json:"avgRating"`
	Analysis      CompetitorAnalysis   `json:"analysis"`
	Degraded      bool                 `json:"degraded,omitempty"`
}

func neutralCompetitorAnalysis() CompetitorAnalysis {
	return CompetitorAnalysis{
		Summary:    "Competitor analysis is not available for this market right now.",
		Saturation: "unknown",
	}
}

// CompetitorReport ranks the businesses already serving subject and asks
// the competitor_analysis role to describe the field.
func (s *Service) CompetitorReport(ctx context.Context, subject Subject, attr models.Attribution, topN int) (*CompetitorReport, error) {
	ranked, err := s.scoredMarket(ctx, subject, attr, topN)
	if err != nil {
		return nil, err
	}

	report := &CompetitorReport{
		Subject:       subject,
		Competitors:   ranked.Scored,
		MedianReviews: ranked.MedianReviews,
		AvgRating:     ranked.AvgRating,
		Analysis:      neutralCompetitorAnalysis(),
	}
	if len(ranked.Scored) == 0 {
		report.Degraded = true
		return report, nil
	}

	webCtx := s.webContext(ctx, models.RoleCompetitorAnalysis, []string{
		subject.label() + " avaliações Google",
		subject.label() + " Instagram",
	}, attr)

	prompt := withContext(fmt.Sprintf(`Analyse the competition for "%s".
Median reviews among the top businesses: %d. Average rating: %.1f.
Businesses (rank, name, rating, website, opportunity score):
%s
Return JSON with: summary, saturation (low|medium|high), strongestCompetitors, gaps, recommendations.`,
		subject.label(), ranked.MedianReviews, ranked.AvgRating, placeLines(ranked.Scored, 15)), webCtx)

	var analysis CompetitorAnalysis
	ok, err := s.analyze(ctx, models.RoleCompetitorAnalysis, prompt, competitorSchema, attr, &analysis)
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
