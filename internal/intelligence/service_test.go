package intelligence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"lead-pipeline/internal/ai"
	errs "lead-pipeline/internal/common/errors"
	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/models"
	"lead-pipeline/internal/webcontext"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearch struct {
	places   []models.PlaceRecord
	err      error
	requests []models.SearchRequest
}

func (f *fakeSearch) RunSearch(ctx context.Context, req models.SearchRequest, identity models.Identity) (*models.SearchResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.SearchResult{Places: f.places}, nil
}

type fakeCompleter struct {
	text    string
	err     error
	roles   []models.AIRole
	prompts []string
}

func (f *fakeCompleter) GenerateCompletion(ctx context.Context, role models.AIRole, opts ai.CompletionOptions) (*ai.CompletionResult, error) {
	f.roles = append(f.roles, role)
	f.prompts = append(f.prompts, opts.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &ai.CompletionResult{Text: f.text}, nil
}

type fakeWeb struct {
	context string
	roles   []models.AIRole
	queries [][]string
}

func (f *fakeWeb) GetWebContextForRole(ctx context.Context, role models.AIRole, queries []string, opts webcontext.Options) string {
	f.roles = append(f.roles, role)
	f.queries = append(f.queries, queries)
	return f.context
}

func market(n int) []models.PlaceRecord {
	out := make([]models.PlaceRecord, n)
	for i := range out {
		out[i] = models.PlaceRecord{
			ExternalID:     fmt.Sprintf("p%d", i),
			Name:           fmt.Sprintf("Padaria %d", i),
			ReviewCount:    i * 3,
			Rating:         4.2,
			BusinessStatus: models.BusinessStatusOperational,
		}
		if i%2 == 0 {
			out[i].Website = "https://example.com"
		}
	}
	return out
}

var attr = models.Attribution{WorkspaceID: "ws-1", UserID: "u-1"}

func TestCompetitorReport(t *testing.T) {
	search := &fakeSearch{places: market(8)}
	completer := &fakeCompleter{text: "```json\n{\"summary\":\"crowded\",\"saturation\":\"high\",\"gaps\":[\"delivery\"]}\n```"}
	web := &fakeWeb{context: "## Reviews\n- something"}
	svc := NewService(search, completer, web, logger.NewTestLogger(t))

	report, err := svc.CompetitorReport(context.Background(), Subject{Query: "padarias", City: "Recife"}, attr, 5)
	require.NoError(t, err)
	assert.False(t, report.Degraded)
	assert.Equal(t, "high", report.Analysis.Saturation)
	assert.Equal(t, []string{"delivery"}, report.Analysis.Gaps)
	assert.Len(t, report.Competitors, 5)

	assert.Equal(t, []models.AIRole{models.RoleCompetitorAnalysis}, completer.roles)
	assert.Equal(t, []models.AIRole{models.RoleCompetitorAnalysis}, web.roles)
	assert.Contains(t, completer.prompts[0], "padarias in Recife")
	assert.Contains(t, completer.prompts[0], "Web context:")
	assert.Equal(t, "Recife", search.requests[0].City)
}

func TestCompetitorReport_InvalidJSONFallsBackToPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "prose", text: "The market looks busy."},
		{name: "schema violation", text: `{"summary":"x","saturation":"extreme"}`},
		{name: "missing field", text: `{"summary":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeSearch{places: market(4)}, &fakeCompleter{text: tt.text}, nil, logger.NewTestLogger(t))
			report, err := svc.CompetitorReport(context.Background(), Subject{Query: "padarias"}, attr, 0)
			require.NoError(t, err)
			assert.True(t, report.Degraded)
			assert.Equal(t, neutralCompetitorAnalysis(), report.Analysis)
			assert.Len(t, report.Competitors, 4)
		})
	}
}

func TestCompetitorReport_NoPlacesSkipsAI(t *testing.T) {
	completer := &fakeCompleter{}
	svc := NewService(&fakeSearch{}, completer, nil, logger.NewTestLogger(t))

	report, err := svc.CompetitorReport(context.Background(), Subject{Query: "x"}, attr, 0)
	require.NoError(t, err)
	assert.True(t, report.Degraded)
	assert.Empty(t, completer.roles)
}

func TestReports_PropagateSearchAndProviderErrors(t *testing.T) {
	quotaErr := errs.NewQuotaExceededError("ws-1", 100, 100)
	svc := NewService(&fakeSearch{err: quotaErr}, &fakeCompleter{}, nil, logger.NewTestLogger(t))
	_, err := svc.MarketReport(context.Background(), Subject{Query: "x"}, attr)
	assert.True(t, errs.IsCode(err, errs.ErrCodeQuotaExceeded))

	providerErr := errs.NewAIProviderFailedError("gemini", errors.New("503"))
	svc = NewService(&fakeSearch{places: market(3)}, &fakeCompleter{err: providerErr}, nil, logger.NewTestLogger(t))
	_, err = svc.ViabilityReport(context.Background(), "bakery", Subject{Query: "padarias"}, attr)
	assert.True(t, errs.IsCode(err, errs.ErrCodeAIProviderFailed))
}

func TestMarketReport(t *testing.T) {
	completer := &fakeCompleter{text: `{"summary":"growing","demandLevel":"medium","opportunityScore":72,"trends":["delivery apps"]}`}
	svc := NewService(&fakeSearch{places: market(10)}, completer, &fakeWeb{}, logger.NewTestLogger(t))

	report, err := svc.MarketReport(context.Background(), Subject{Query: "padarias"}, attr)
	require.NoError(t, err)
	assert.False(t, report.Degraded)
	assert.Equal(t, 72, report.Analysis.OpportunityScore)
	assert.Equal(t, 10, report.Stats.Total)
	assert.Equal(t, 5, report.Stats.WithoutWebsite)
	assert.Equal(t, 50.0, report.Stats.WithoutWebsitePc)
	assert.Equal(t, 10, report.Stats.WithoutPhone)
	assert.Equal(t, []models.AIRole{models.RoleMarketAnalysis}, completer.roles)
}

func TestMarketReport_OutOfRangeScoreIsRejected(t *testing.T) {
	completer := &fakeCompleter{text: `{"summary":"s","demandLevel":"high","opportunityScore":140}`}
	svc := NewService(&fakeSearch{places: market(3)}, completer, nil, logger.NewTestLogger(t))

	report, err := svc.MarketReport(context.Background(), Subject{Query: "padarias"}, attr)
	require.NoError(t, err)
	assert.True(t, report.Degraded)
	assert.Equal(t, neutralMarketAnalysis(), report.Analysis)
}

func TestViabilityReport(t *testing.T) {
	completer := &fakeCompleter{text: `Sure! {"viabilityScore":64,"verdict":"viable","summary":"room for one more","strengths":["foot traffic"]}`}
	web := &fakeWeb{}
	svc := NewService(&fakeSearch{places: market(6)}, completer, web, logger.NewTestLogger(t))

	report, err := svc.ViabilityReport(context.Background(), " artisan bakery ", Subject{Query: "padarias", City: "Olinda"}, attr)
	require.NoError(t, err)
	assert.Equal(t, "artisan bakery", report.Idea)
	assert.Equal(t, 6, report.Competitors)
	assert.Equal(t, "viable", report.Analysis.Verdict)
	assert.Equal(t, []models.AIRole{models.RoleViability}, web.roles)
}

func TestViabilityReport_RequiresIdea(t *testing.T) {
	svc := NewService(&fakeSearch{}, &fakeCompleter{}, nil, logger.NewTestLogger(t))
	_, err := svc.ViabilityReport(context.Background(), "  ", Subject{Query: "x"}, attr)
	assert.True(t, errs.IsCode(err, errs.ErrCodeInvalidRequest))
}

func TestCompanyReport(t *testing.T) {
	completer := &fakeCompleter{text: `{"summary":"solid","reputation":"mixed","risks":["two lawsuits"]}`}
	web := &fakeWeb{context: "## Legal records (Jusbrasil)\n- case"}
	svc := NewService(nil, completer, web, logger.NewTestLogger(t))

	report, err := svc.CompanyReport(context.Background(), Company{Name: "Padaria Central", City: "Recife"}, attr)
	require.NoError(t, err)
	assert.True(t, report.HasContext)
	assert.Equal(t, "mixed", report.Analysis.Reputation)

	require.Len(t, web.queries, 1)
	assert.Len(t, web.queries[0], 6)
	assert.Equal(t, []models.AIRole{models.RoleCompanyAnalysis}, web.roles)
	assert.True(t, strings.HasSuffix(web.queries[0][0], "Reclame Aqui"))
}

func TestCompanyQueries_EachHasSourceLabel(t *testing.T) {
	queries := companyQueries(Company{Name: "Padaria Pão Quente", City: "São Paulo"})
	want := []string{
		"Reputation (Reclame Aqui)",
		"Legal records (Jusbrasil)",
		"Company registry (CNPJ)",
		"Social (Instagram)",
		"Social (LinkedIn)",
		"Reviews (Google)",
	}
	require.Len(t, queries, len(want))
	for i, q := range queries {
		assert.Equal(t, want[i], webcontext.LabelForQuery(q), q)
	}
}

func TestAnalyzeLead(t *testing.T) {
	place := models.ScoredPlace{
		PlaceRecord: models.PlaceRecord{ExternalID: "p1", Name: "Padaria Central"},
		Score:       75,
		Factors:     models.ScoreFactors{NoWebsite: true, FewReviews: true},
	}

	completer := &fakeCompleter{text: `{"summary":"needs a site","priority":"high","pitch":"launch a landing page"}`}
	svc := NewService(nil, completer, nil, logger.NewTestLogger(t))
	lead, err := svc.AnalyzeLead(context.Background(), place, attr)
	require.NoError(t, err)
	assert.Equal(t, "p1", lead.ExternalID)
	assert.Equal(t, "high", lead.Priority)
	assert.False(t, lead.Degraded)
	assert.Contains(t, completer.prompts[0], "no website; few reviews")

	svc = NewService(nil, &fakeCompleter{text: "no idea"}, nil, logger.NewTestLogger(t))
	fallback, err := svc.AnalyzeLead(context.Background(), place, attr)
	require.NoError(t, err)
	assert.True(t, fallback.Degraded)
	assert.Equal(t, "high", fallback.Priority)
	assert.Equal(t, []string{"no website", "few reviews"}, fallback.PainPoints)
}

type fakeDetails struct {
	record *models.PlaceRecord
	err    error
	ids    []string
}

func (f *fakeDetails) PlaceDetails(ctx context.Context, id string) (*models.PlaceRecord, error) {
	f.ids = append(f.ids, id)
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

type recordedUsage struct {
	events []models.UsageEvent
}

func (r *recordedUsage) Record(ctx context.Context, e models.UsageEvent) {
	r.events = append(r.events, e)
}

func TestAnalyzeLead_EnrichesMissingContact(t *testing.T) {
	place := models.ScoredPlace{
		PlaceRecord: models.PlaceRecord{ExternalID: "p1", Name: "Padaria Central"},
		Score:       80,
		Factors:     models.ScoreFactors{NoWebsite: true, NoPhone: true, FewReviews: true},
	}
	answer := `{"summary":"needs reviews","priority":"medium"}`

	t.Run("details fill the gaps", func(t *testing.T) {
		details := &fakeDetails{record: &models.PlaceRecord{ExternalID: "p1", Website: "https://padariacentral.com.br", Phone: "(11) 3333-4444"}}
		usage := &recordedUsage{}
		completer := &fakeCompleter{text: answer}
		svc := NewService(nil, completer, nil, logger.NewTestLogger(t)).WithDetails(details, usage)

		lead, err := svc.AnalyzeLead(context.Background(), place, attr)
		require.NoError(t, err)
		assert.True(t, lead.Enriched)
		assert.Equal(t, []string{"p1"}, details.ids)
		assert.Contains(t, completer.prompts[0], "Website: https://padariacentral.com.br")
		assert.Contains(t, completer.prompts[0], "Phone: (11) 3333-4444")
		assert.Contains(t, completer.prompts[0], "Signals: few reviews\n")

		require.Len(t, usage.events, 1)
		assert.Equal(t, models.UsagePlaceDetails, usage.events[0].Kind)
		assert.Equal(t, 1, usage.events[0].Quantity)
		assert.Equal(t, "ws-1", usage.events[0].WorkspaceID)
	})

	t.Run("complete lead skips the lookup", func(t *testing.T) {
		details := &fakeDetails{}
		usage := &recordedUsage{}
		svc := NewService(nil, &fakeCompleter{text: answer}, nil, logger.NewTestLogger(t)).WithDetails(details, usage)

		full := place
		full.Website = "https://example.com"
		full.Phone = "(11) 3333-4444"
		lead, err := svc.AnalyzeLead(context.Background(), full, attr)
		require.NoError(t, err)
		assert.False(t, lead.Enriched)
		assert.Empty(t, details.ids)
		assert.Empty(t, usage.events)
	})

	t.Run("lookup failure keeps the scored lead", func(t *testing.T) {
		details := &fakeDetails{err: errors.New("places: details failed")}
		usage := &recordedUsage{}
		svc := NewService(nil, &fakeCompleter{text: "not json"}, nil, logger.NewTestLogger(t)).WithDetails(details, usage)

		lead, err := svc.AnalyzeLead(context.Background(), place, attr)
		require.NoError(t, err)
		assert.True(t, lead.Degraded)
		assert.False(t, lead.Enriched)
		assert.Equal(t, []string{"no website", "no phone listed", "few reviews"}, lead.PainPoints)
		assert.Empty(t, usage.events)
	})
}
