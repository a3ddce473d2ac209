// Package webcontext fans labeled queries out to a web search provider and
// formats the grouped results as prompt context.
package webcontext

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lead-pipeline/internal/ai"
	"lead-pipeline/internal/common/config"
	httpclient "lead-pipeline/internal/common/http"
	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/common/metrics"
	"lead-pipeline/internal/models"

	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseURL         = "https://www.googleapis.com/customsearch/v1"
	defaultMaxQueries      = 5
	companyMaxQueries      = 6
	defaultResultsPerQuery = 5
	maxResultsPerQuery     = 10
)

// ConfigStore returns the enabled, most recently updated web search
// configuration for a role, or nil.
type ConfigStore interface {
	LatestWebSearchConfig(ctx context.Context, role models.AIRole) (*models.WebSearchProviderConfig, error)
}

// Options tune one aggregation. Zero values use the configured defaults.
type Options struct {
	MaxQueries      int
	ResultsPerQuery int
	Attribution     models.Attribution
}

// Item is one search hit.
type Item struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Section groups the hits of one query.
type Section struct {
	Label string
	Query string
	Items []Item
}

type Aggregator struct {
	store  ConfigStore
	cfg    config.WebSearchConfig
	http   *httpclient.Client
	usage  ai.UsageRecorder
	logger logger.Logger
}

// NewAggregator builds an aggregator. usage may be nil.
func NewAggregator(store ConfigStore, cfg config.WebSearchConfig, usage ai.UsageRecorder, log logger.Logger) *Aggregator {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Aggregator{
		store:  store,
		cfg:    cfg,
		http:   httpclient.NewClient(timeout),
		usage:  usage,
		logger: log.WithFields(map[string]interface{}{"component": "web-context"}),
	}
}

// MaxQueriesForRole is the per-call query cap.
func (a *Aggregator) MaxQueriesForRole(role models.AIRole) int {
	if n, ok := a.cfg.RoleMaxQueries[string(role)]; ok && n > 0 {
		return n
	}
	if role == models.RoleCompanyAnalysis {
		return companyMaxQueries
	}
	if a.cfg.DefaultMaxQuery > 0 {
		return a.cfg.DefaultMaxQuery
	}
	return defaultMaxQueries
}

// GetWebContextForRole returns formatted context, or "" when the role has
// no web search configuration, no usable queries were given, or nothing
// came back. It never fails; individual query errors are dropped.
func (a *Aggregator) GetWebContextForRole(ctx context.Context, role models.AIRole, queries []string, opts Options) string {
	sections := a.Search(ctx, role, queries, opts)
	return Format(sections)
}

// Search runs the queries and returns their non-empty sections in query order.
func (a *Aggregator) Search(ctx context.Context, role models.AIRole, queries []string, opts Options) []Section {
	cleaned := cleanQueries(queries)
	if len(cleaned) == 0 {
		return nil
	}

	provider := a.lookupConfig(ctx, role)
	if provider == nil {
		return nil
	}

	limit := opts.MaxQueries
	if limit <= 0 {
		limit = a.MaxQueriesForRole(role)
	}
	if len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}

	perQuery := opts.ResultsPerQuery
	if perQuery <= 0 {
		perQuery = a.cfg.ResultsPerQuery
	}
	if perQuery <= 0 {
		perQuery = defaultResultsPerQuery
	}
	if perQuery > maxResultsPerQuery {
		perQuery = maxResultsPerQuery
	}

	results := make([][]Item, len(cleaned))
	succeeded := make([]bool, len(cleaned))

	var g errgroup.Group
	for i, q := range cleaned {
		g.Go(func() error {
			items, err := a.runQuery(ctx, provider, q, perQuery)
			if err != nil {
				metrics.WebSearchQueries.WithLabelValues("failure").Inc()
				a.logger.Debug("web query failed", map[string]interface{}{
					"role":  string(role),
					"query": q,
					"error": err.Error(),
				})
				return nil
			}
			metrics.WebSearchQueries.WithLabelValues("success").Inc()
			results[i] = items
			succeeded[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var sections []Section
	var queriesRun int
	for i, q := range cleaned {
		if succeeded[i] {
			queriesRun++
		}
		if len(results[i]) == 0 {
			continue
		}
		sections = append(sections, Section{Label: LabelForQuery(q), Query: q, Items: results[i]})
	}

	a.recordUsage(ctx, role, provider, opts.Attribution, queriesRun)
	return sections
}

func (a *Aggregator) lookupConfig(ctx context.Context, role models.AIRole) *models.WebSearchProviderConfig {
	if a.store == nil {
		return nil
	}
	for _, candidate := range ai.FallbackChain(role) {
		cfg, err := a.store.LatestWebSearchConfig(ctx, candidate)
		if err != nil {
			a.logger.Warn("web search config lookup failed", map[string]interface{}{
				"role":  string(candidate),
				"error": err.Error(),
			})
			return nil
		}
		if cfg != nil && cfg.Enabled && cfg.APIKey != "" {
			return cfg
		}
	}
	return nil
}

type searchResponse struct {
	Items []Item `json:"items"`
}

func (a *Aggregator) runQuery(ctx context.Context, provider *models.WebSearchProviderConfig, query string, num int) ([]Item, error) {
	base := provider.BaseURL
	if base == "" {
		base = a.cfg.BaseURL
	}
	if base == "" {
		base = defaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	params := u.Query()
	params.Set("key", provider.APIKey)
	params.Set("cx", provider.EngineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))
	u.RawQuery = params.Encode()

	resp, err := a.http.SendJSON(ctx, http.MethodGet, u.String(), nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("web search returned %d: %s", resp.StatusCode, string(resp.Body))
	}

	var out searchResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(out.Items))
	for _, it := range out.Items {
		if strings.TrimSpace(it.Title) == "" && strings.TrimSpace(it.Link) == "" {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func (a *Aggregator) recordUsage(ctx context.Context, role models.AIRole, provider *models.WebSearchProviderConfig, attr models.Attribution, queries int) {
	if a.usage == nil || attr.IsZero() {
		return
	}
	a.usage.Record(ctx, models.UsageEvent{
		WorkspaceID: attr.WorkspaceID,
		UserID:      attr.UserID,
		Kind:        models.UsageWebSearch,
		Quantity:    queries,
		Provider:    provider.Provider,
		Metadata:    map[string]interface{}{"role": string(role)},
	})
}

func cleanQueries(queries []string) []string {
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// Format renders sections as headed blocks. No sections yields "".
func Format(sections []Section) string {
	var blocks []string
	for _, s := range sections {
		if len(s.Items) == 0 {
			continue
		}
		var sb strings.Builder
		sb.WriteString("### ")
		sb.WriteString(s.Label)
		sb.WriteString("\n")
		for _, it := range s.Items {
			fmt.Fprintf(&sb, "- %s\n  %s\n", strings.TrimSpace(it.Title), strings.TrimSpace(it.Link))
			if snippet := strings.TrimSpace(it.Snippet); snippet != "" {
				fmt.Fprintf(&sb, "  %s\n", snippet)
			}
		}
		blocks = append(blocks, strings.TrimRight(sb.String(), "\n"))
	}
	return strings.Join(blocks, "\n\n")
}
