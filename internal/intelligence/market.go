package intelligence

import (
	"context"
	"fmt"
	"math"

	"lead-pipeline/internal/models"
)

// OpportunityThreshold is the score from which a place counts as an
// opportunity in market statistics.
const OpportunityThreshold = 60

var marketSchema = mustSchema(`{
	"type": "object",
	"required": ["summary", "demandLevel", "opportunityScore"],
	"properties": {
		"summary": {"type": "string"},
		"demandLevel": {"type": "string", "enum": ["low", "medium", "high"]},
		"opportunityScore": {"type": "integer", "minimum": 0, "maximum": 100},
		"trends": {"type": "array", "items": {"type": "string"}},
		"risks": {"type": "array", "items": {"type": "string"}}
	}
}`)

// MarketStats are computed from the ranked places, without AI.
type MarketStats struct {
	Total            int     `json:"total"`
	WithoutWebsite   int     `json:"withoutWebsite"`
	WithoutPhone     int     `json:"withoutPhone"`
	Opportunities    int     `json:"opportunities"`
	WithoutWebsitePc float64 `json:"withoutWebsitePct"`
	AvgRating        float64 `json:"avgRating"`
	MedianReviews    int     `json:"medianReviews"`
}

type MarketAnalysis struct {
	Summary          string   `json:"summary"`
	DemandLevel      string   `json:"demandLevel"`
	OpportunityScore int      `json:"opportunityScore"`
	Trends           []string `json:"trends"`
	Risks            []string `json:"risks"`
}

type MarketReport struct {
	Subject  Subject        `json:"subject"`
	Stats    MarketStats    `json:"stats"`
	Analysis MarketAnalysis `json:"analysis"`
	Degraded bool           `json:"degraded,omitempty"`
}

func neutralMarketAnalysis() MarketAnalysis {
	return MarketAnalysis{
		Summary:     "Market analysis is not available for this market right now.",
		DemandLevel: "unknown",
	}
}

func marketStats(scored []models.ScoredPlace, median int, avg float64) MarketStats {
	stats := MarketStats{Total: len(scored), MedianReviews: median, AvgRating: avg}
	for _, p := range scored {
		if p.Factors.NoWebsite {
			stats.WithoutWebsite++
		}
		if p.Factors.NoPhone {
			stats.WithoutPhone++
		}
		if p.Score >= OpportunityThreshold {
			stats.Opportunities++
		}
	}
	if stats.Total > 0 {
		stats.WithoutWebsitePc = math.Round(float64(stats.WithoutWebsite)*1000/float64(stats.Total)) / 10
	}
	return stats
}

// MarketReport summarises the digital maturity of subject's market and
// asks the market_analysis role for demand and risks.
func (s *Service) MarketReport(ctx context.Context, subject Subject, attr models.Attribution) (*MarketReport, error) {
	ranked, err := s.scoredMarket(ctx, subject, attr, 0)
	if err != nil {
		return nil, err
	}

	report := &MarketReport{
		Subject:  subject,
		Stats:    marketStats(ranked.Scored, ranked.MedianReviews, ranked.AvgRating),
		Analysis: neutralMarketAnalysis(),
	}
	if report.Stats.Total == 0 {
		report.Degraded = true
		return report, nil
	}

	webCtx := s.webContext(ctx, models.RoleMarketAnalysis, []string{
		subject.label() + " mercado tendências",
		subject.label() + " avaliações Google",
	}, attr)

	st := report.Stats
	prompt := withContext(fmt.Sprintf(`Assess the market for "%s".
Businesses found: %d. Without website: %d (%.1f%%). Without phone: %d.
High-opportunity businesses (score >= %d): %d. Average rating: %.1f. Median reviews: %d.
Top businesses:
%s
Return JSON with: summary, demandLevel (low|medium|high), opportunityScore (0-100), trends, risks.`,
		subject.label(), st.Total, st.WithoutWebsite, st.WithoutWebsitePc, st.WithoutPhone,
		OpportunityThreshold, st.Opportunities, st.AvgRating, st.MedianReviews, placeLines(ranked.Scored, 10)), webCtx)

	var analysis MarketAnalysis
	ok, err := s.analyze(ctx, models.RoleMarketAnalysis, prompt, marketSchema, attr, &analysis)
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
