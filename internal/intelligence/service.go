// Package intelligence composes search, scoring, web context and AI
// completions into prospecting reports.
package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lead-pipeline/internal/ai"
	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/models"
	"lead-pipeline/internal/scoring"
	"lead-pipeline/internal/webcontext"

	"github.com/xeipuuv/gojsonschema"
)

// Searcher is implemented by *search.Orchestrator.
type Searcher interface {
	RunSearch(ctx context.Context, req models.SearchRequest, identity models.Identity) (*models.SearchResult, error)
}

// Completer is implemented by *ai.Resolver.
type Completer interface {
	GenerateCompletion(ctx context.Context, role models.AIRole, opts ai.CompletionOptions) (*ai.CompletionResult, error)
}

// WebContext is implemented by *webcontext.Aggregator.
type WebContext interface {
	GetWebContextForRole(ctx context.Context, role models.AIRole, queries []string, opts webcontext.Options) string
}

// Details is implemented by *places.Client.
type Details interface {
	PlaceDetails(ctx context.Context, id string) (*models.PlaceRecord, error)
}

// UsageRecorder is implemented by *usage.Recorder.
type UsageRecorder interface {
	Record(ctx context.Context, event models.UsageEvent)
}

type Service struct {
	search  Searcher
	ai      Completer
	web     WebContext
	details Details
	usage   UsageRecorder
	logger  logger.Logger
}

// NewService builds the report service. web may be nil, in which case
// reports are generated without web context.
func NewService(search Searcher, completer Completer, web WebContext, log logger.Logger) *Service {
	return &Service{
		search: search,
		ai:     completer,
		web:    web,
		logger: log.WithFields(map[string]interface{}{"component": "intelligence"}),
	}
}

// WithDetails lets AnalyzeLead fill a missing website or phone from the
// place details before prompting. Each lookup is metered through usage,
// which may be nil.
func (s *Service) WithDetails(details Details, usage UsageRecorder) *Service {
	s.details = details
	s.usage = usage
	return s
}

// Subject is the market a report looks at.
type Subject struct {
	Query    string  `json:"query"`
	Category string  `json:"category,omitempty"`
	City     string  `json:"city,omitempty"`
	State    string  `json:"state,omitempty"`
	Country  string  `json:"country,omitempty"`
	RadiusKm float64 `json:"radiusKm,omitempty"`
}

func (s Subject) request() models.SearchRequest {
	return models.SearchRequest{
		TextQuery: s.Query,
		Category:  s.Category,
		PageSize:  20,
		City:      s.City,
		State:     s.State,
		Country:   s.Country,
		RadiusKm:  s.RadiusKm,
	}
}

func (s Subject) where() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.City, s.State, s.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (s Subject) label() string {
	if w := s.where(); w != "" {
		return s.Query + " in " + w
	}
	return s.Query
}

// scoredMarket runs one search for subject and ranks the results.
func (s *Service) scoredMarket(ctx context.Context, subject Subject, attr models.Attribution, topN int) (*scoring.Result, error) {
	res, err := s.search.RunSearch(ctx, subject.request(), models.Identity{UserID: attr.UserID})
	if err != nil {
		return nil, err
	}
	ranked := scoring.ScoreAndRankPlaces(res.Places, topN)
	return &ranked, nil
}

func (s *Service) webContext(ctx context.Context, role models.AIRole, queries []string, attr models.Attribution) string {
	if s.web == nil {
		return ""
	}
	return s.web.GetWebContextForRole(ctx, role, queries, webcontext.Options{Attribution: attr})
}

// analyze asks the model for a JSON object matching schema and decodes it
// into out. It reports false when the answer could not be parsed or did
// not validate; provider failures are returned as errors.
func (s *Service) analyze(ctx context.Context, role models.AIRole, prompt string, schema *gojsonschema.Schema, attr models.Attribution, out interface{}) (bool, error) {
	res, err := s.ai.GenerateCompletion(ctx, role, ai.CompletionOptions{
		System:          systemPrompt,
		Prompt:          prompt,
		MaxOutputTokens: 1500,
		JSON:            true,
		Attribution:     attr,
	})
	if err != nil {
		return false, err
	}

	var doc map[string]interface{}
	if err := ai.ExtractJSON(res.Text, &doc); err != nil {
		s.logger.Warn("analysis was not valid JSON", map[string]interface{}{
			"role":  string(role),
			"error": err.Error(),
		})
		return false, nil
	}

	if err := validate(schema, doc); err != nil {
		s.logger.Warn("analysis failed schema validation", map[string]interface{}{
			"role":  string(role),
			"error": err.Error(),
		})
		return false, nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.logger.Warn("analysis did not decode", map[string]interface{}{
			"role":  string(role),
			"error": err.Error(),
		})
		return false, nil
	}
	return true, nil
}

func validate(schema *gojsonschema.Schema, doc map[string]interface{}) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			msgs[i] = desc.String()
		}
		return fmt.Errorf("analysis validation failed: %v", msgs)
	}
	return nil
}

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid analysis schema: %v", err))
	}
	return schema
}

const systemPrompt = `You are a B2B sales intelligence analyst for small and medium local businesses in Brazil.
Answer with a single JSON object that follows the requested fields exactly. Do not add commentary.`

// placeLines renders ranked places for a prompt.
func placeLines(scored []models.ScoredPlace, max int) string {
	var sb strings.Builder
	for i, p := range scored {
		if max > 0 && i >= max {
			break
		}
		website := "no website"
		if p.HasWebsite() {
			website = p.Website
		}
		fmt.Fprintf(&sb, "%d. %s | rating %.1f (%d reviews) | %s | opportunity %d\n",
			p.Rank, p.Name, p.Rating, p.ReviewCount, website, p.Score)
	}
	return sb.String()
}

func withContext(prompt, webCtx string) string {
	if webCtx == "" {
		return prompt
	}
	return prompt + "\n\nWeb context:\n" + webCtx
}
