package webcontext

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"lead-pipeline/internal/common/config"
	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	configs map[models.AIRole]*models.WebSearchProviderConfig
}

func (f *fakeStore) LatestWebSearchConfig(ctx context.Context, role models.AIRole) (*models.WebSearchProviderConfig, error) {
	return f.configs[role], nil
}

type fakeUsage struct {
	mu     sync.Mutex
	events []models.UsageEvent
}

func (f *fakeUsage) Record(ctx context.Context, event models.UsageEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

var attribution = models.Attribution{WorkspaceID: "ws-1", UserID: "u-1"}

func storeFor(role models.AIRole, baseURL string) *fakeStore {
	return &fakeStore{configs: map[models.AIRole]*models.WebSearchProviderConfig{
		role: {Role: role, Provider: "google_cse", APIKey: "key", EngineID: "cx-1", BaseURL: baseURL, Enabled: true},
	}}
}

func TestLabelForQuery(t *testing.T) {
	assert.Equal(t, "Reputation (Reclame Aqui)", LabelForQuery("Padaria Central reclame aqui"))
	assert.Equal(t, "Legal records (Jusbrasil)", LabelForQuery("padaria central site:jusbrasil.com.br"))
	assert.Equal(t, "Company registry (CNPJ)", LabelForQuery("Padaria Central CNPJ"))
	assert.Equal(t, "Social (Instagram)", LabelForQuery("padaria central instagram"))
	assert.Equal(t, "Social (LinkedIn)", LabelForQuery("padaria central linkedin"))
	assert.Equal(t, "Reviews (Google)", LabelForQuery("padaria central google reviews"))
	assert.Equal(t, "Web search: padaria central", LabelForQuery("  padaria central "))

	// Company report queries, one per source.
	tests := map[string]string{
		"Padaria Pão Quente São Paulo Reclame Aqui":        "Reputation (Reclame Aqui)",
		"Padaria Pão Quente São Paulo Jusbrasil processos": "Legal records (Jusbrasil)",
		"Padaria Pão Quente CNPJ":                          "Company registry (CNPJ)",
		"Padaria Pão Quente São Paulo Instagram":           "Social (Instagram)",
		"Padaria Pão Quente LinkedIn":                      "Social (LinkedIn)",
		"Padaria Pão Quente São Paulo avaliações Google":   "Reviews (Google)",
		"Padaria Pão Quente avaliações no Google":          "Reviews (Google)",
		"Padaria Pão Quente avaliações de clientes":        "Web search: Padaria Pão Quente avaliações de clientes",
	}
	for query, want := range tests {
		assert.Equal(t, want, LabelForQuery(query), query)
	}
}

func TestGetWebContext_NoConfigMakesNoCalls(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	usage := &fakeUsage{}
	agg := NewAggregator(&fakeStore{}, config.WebSearchConfig{BaseURL: srv.URL}, usage, logger.NewTestLogger(t))

	out := agg.GetWebContextForRole(context.Background(), models.RoleViability, []string{"padaria"}, Options{Attribution: attribution})
	assert.Equal(t, "", out)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Empty(t, usage.events)

	nilStore := NewAggregator(nil, config.WebSearchConfig{BaseURL: srv.URL}, usage, logger.NewTestLogger(t))
	assert.Equal(t, "", nilStore.GetWebContextForRole(context.Background(), models.RoleViability, []string{"padaria"}, Options{}))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestGetWebContext_EmptyQueries(t *testing.T) {
	agg := NewAggregator(storeFor(models.RoleViability, "http://127.0.0.1:1"), config.WebSearchConfig{}, nil, logger.NewTestLogger(t))
	assert.Equal(t, "", agg.GetWebContextForRole(context.Background(), models.RoleViability, []string{" ", ""}, Options{}))
}

func TestGetWebContext_SectionsInQueryOrderAndFailuresDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("key"))
		assert.Equal(t, "cx-1", q.Get("cx"))
		query := q.Get("q")
		switch {
		case strings.Contains(query, "broken"):
			w.WriteHeader(http.StatusInternalServerError)
		case strings.Contains(query, "nothing"):
			_, _ = w.Write([]byte(`{"items":[]}`))
		default:
			fmt.Fprintf(w, `{"items":[{"title":"Result for %s","link":"https://example.com/%d","snippet":"about %s"}]}`, query, len(query), query)
		}
	}))
	defer srv.Close()

	usage := &fakeUsage{}
	agg := NewAggregator(storeFor(models.RoleViability, srv.URL), config.WebSearchConfig{}, usage, logger.NewTestLogger(t))

	out := agg.GetWebContextForRole(context.Background(), models.RoleViability, []string{
		"padaria central reclame aqui",
		"broken query",
		"nothing here",
		"padaria central instagram",
	}, Options{Attribution: attribution})

	reclame := strings.Index(out, "### Reputation (Reclame Aqui)")
	insta := strings.Index(out, "### Social (Instagram)")
	require.GreaterOrEqual(t, reclame, 0)
	require.Greater(t, insta, reclame)
	assert.NotContains(t, out, "broken")
	assert.NotContains(t, out, "nothing here")
	assert.Contains(t, out, "- Result for padaria central instagram\n  https://example.com/")
	assert.Contains(t, out, "  about padaria central reclame aqui")

	require.Len(t, usage.events, 1)
	assert.Equal(t, models.UsageWebSearch, usage.events[0].Kind)
	// the failed query is not counted, the empty one is
	assert.Equal(t, 3, usage.events[0].Quantity)
}

func TestGetWebContext_CapsQueries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"items":[{"title":"t","link":"l"}]}`))
	}))
	defer srv.Close()

	queries := []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7", "q8"}

	agg := NewAggregator(storeFor(models.RoleViability, srv.URL), config.WebSearchConfig{}, nil, logger.NewTestLogger(t))
	agg.GetWebContextForRole(context.Background(), models.RoleViability, queries, Options{})
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, 0)
	company := NewAggregator(storeFor(models.RoleCompanyAnalysis, srv.URL), config.WebSearchConfig{}, nil, logger.NewTestLogger(t))
	company.GetWebContextForRole(context.Background(), models.RoleCompanyAnalysis, queries, Options{})
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
}

func TestGetWebContext_UsesFallbackRoleConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"title":"t","link":"l"}]}`))
	}))
	defer srv.Close()

	agg := NewAggregator(storeFor(models.RoleViability, srv.URL), config.WebSearchConfig{}, nil, logger.NewTestLogger(t))
	out := agg.GetWebContextForRole(context.Background(), models.RoleCompanyAnalysis, []string{"padaria cnpj"}, Options{})
	assert.Contains(t, out, "### Company registry (CNPJ)")
}

func TestFormat_AllEmpty(t *testing.T) {
	assert.Equal(t, "", Format([]Section{{Label: "x"}, {Label: "y"}}))
	assert.Equal(t, "", Format(nil))
}
