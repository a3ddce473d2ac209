package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"lead-pipeline/internal/common/config"
	errs "lead-pipeline/internal/common/errors"
	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigStore struct {
	configs map[models.AIRole]*models.AIProviderConfig
	lookups []models.AIRole
	err     error
}

func (f *fakeConfigStore) LatestAIConfig(ctx context.Context, role models.AIRole) (*models.AIProviderConfig, error) {
	f.lookups = append(f.lookups, role)
	if f.err != nil {
		return nil, f.err
	}
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

func TestFallbackChain(t *testing.T) {
	assert.Equal(t, []models.AIRole{models.RoleCompanyAnalysis, models.RoleViability}, FallbackChain(models.RoleCompanyAnalysis))
	assert.Equal(t, []models.AIRole{models.RoleCompetitorAnalysis, models.RoleLeadAnalysis}, FallbackChain(models.RoleCompetitorAnalysis))
	assert.Equal(t, []models.AIRole{models.RoleViability}, FallbackChain(models.RoleViability))
}

func TestResolve_ExactRole(t *testing.T) {
	store := &fakeConfigStore{configs: map[models.AIRole]*models.AIProviderConfig{
		models.RoleViability: {ID: "cfg-1", Role: models.RoleViability, Provider: models.ProviderOpenAI, Model: "gpt-4o", APIKey: "sk", Enabled: true},
	}}
	r := NewResolver(store, config.AIConfig{}, nil, logger.NewTestLogger(t))

	res, err := r.Resolve(context.Background(), models.RoleViability)
	require.NoError(t, err)
	assert.Equal(t, SourceStore, res.Config.Source)
	assert.Equal(t, models.ProviderOpenAI, res.Adapter.Provider())
	assert.Equal(t, "gpt-4o", res.Adapter.Model())
}

func TestResolve_CompanyAnalysisFallsBackToViability(t *testing.T) {
	store := &fakeConfigStore{configs: map[models.AIRole]*models.AIProviderConfig{
		models.RoleViability: {ID: "cfg-v", Role: models.RoleViability, Provider: models.ProviderGemini, Model: "gemini-2.5-pro", APIKey: "g", Enabled: true},
	}}
	r := NewResolver(store, config.AIConfig{GeminiAPIKey: "env-key"}, nil, logger.NewTestLogger(t))

	res, err := r.Resolve(context.Background(), models.RoleCompanyAnalysis)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Config.Source)
	assert.Equal(t, "cfg-v", res.Config.ConfigID)
	assert.Equal(t, "gemini-2.5-pro", res.Config.Model)
	assert.Equal(t, models.RoleCompanyAnalysis, res.Config.Role)
	assert.Equal(t, []models.AIRole{models.RoleCompanyAnalysis, models.RoleViability}, store.lookups)
}

func TestResolve_EnvironmentFallback(t *testing.T) {
	r := NewResolver(&fakeConfigStore{}, config.AIConfig{
		GeminiAPIKey:  "env-key",
		DefaultModels: map[string]string{"market_analysis": "gemini-custom"},
	}, nil, logger.NewTestLogger(t))

	res, err := r.Resolve(context.Background(), models.RoleLeadAnalysis)
	require.NoError(t, err)
	assert.Equal(t, SourceEnvironment, res.Config.Source)
	assert.Equal(t, models.ProviderGemini, res.Config.Provider)
	assert.Equal(t, "gemini-2.0-flash", res.Config.Model)

	res, err = r.Resolve(context.Background(), models.RoleMarketAnalysis)
	require.NoError(t, err)
	assert.Equal(t, "gemini-custom", res.Config.Model)
}

func TestResolve_MissingConfigNamesRole(t *testing.T) {
	r := NewResolver(&fakeConfigStore{}, config.AIConfig{}, nil, logger.NewTestLogger(t))

	_, err := r.Resolve(context.Background(), models.RoleCompanyAnalysis)
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrCodeAIConfigMissing))
	assert.Contains(t, err.Error(), "company_analysis")
}

func TestResolve_CloudflareEnvNeedsAccount(t *testing.T) {
	r := NewResolver(nil, config.AIConfig{DefaultProvider: "cloudflare", CloudflareAPIToken: "tok"}, nil, logger.NewTestLogger(t))
	_, err := r.Resolve(context.Background(), models.RoleLeadAnalysis)
	assert.True(t, errs.IsCode(err, errs.ErrCodeAIConfigMissing))
}

func TestResolve_UnsupportedProvider(t *testing.T) {
	store := &fakeConfigStore{configs: map[models.AIRole]*models.AIProviderConfig{
		models.RoleViability: {Provider: "anthropic-ish", Model: "m", APIKey: "k", Enabled: true},
	}}
	r := NewResolver(store, config.AIConfig{}, nil, logger.NewTestLogger(t))
	_, err := r.Resolve(context.Background(), models.RoleViability)
	assert.True(t, errs.IsCode(err, errs.ErrCodeUnsupportedProvider))
}

func TestGenerateCompletion_RecordsUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk", r.Header.Get("Authorization"))

		var req chatRequest
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Equal(t, 300, req.MaxTokens)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  {\"ok\":true}  "}}],"usage":{"prompt_tokens":12,"completion_tokens":4}}`))
	}))
	defer srv.Close()

	store := &fakeConfigStore{configs: map[models.AIRole]*models.AIProviderConfig{
		models.RoleLeadAnalysis: {Provider: models.ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "sk", BaseURL: srv.URL, Enabled: true},
	}}
	usage := &fakeUsage{}
	r := NewResolver(store, config.AIConfig{}, usage, logger.NewTestLogger(t))

	res, err := r.GenerateCompletion(context.Background(), models.RoleLeadAnalysis, CompletionOptions{
		System:          "you are an analyst",
		Prompt:          "analyse",
		MaxOutputTokens: 300,
		JSON:            true,
		Attribution:     models.Attribution{WorkspaceID: "ws-1", UserID: "u-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, res.Text)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 12, res.Usage.InputTokens)

	require.Len(t, usage.events, 1)
	assert.Equal(t, models.UsageAITokens, usage.events[0].Kind)
	assert.Equal(t, 16, usage.events[0].Quantity)
	assert.Equal(t, "ws-1", usage.events[0].WorkspaceID)
}

func TestGenerateCompletion_WrapsProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	r := NewResolver(nil, config.AIConfig{GeminiAPIKey: "g", GeminiBaseURL: srv.URL}, &fakeUsage{}, logger.NewTestLogger(t))
	_, err := r.GenerateCompletion(context.Background(), models.RoleViability, CompletionOptions{Prompt: "x"})
	require.Error(t, err)

	stdErr, ok := errs.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, errs.ErrCodeAIProviderFailed, stdErr.Code)
	assert.Equal(t, errs.CategoryRateLimit, stdErr.Metadata["category"])

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
}

func TestClassifyProviderError(t *testing.T) {
	assert.Equal(t, errs.CategoryAuth, ClassifyProviderError(&ProviderError{Provider: "openai", StatusCode: 401, Body: "invalid api key"}))
	assert.Equal(t, errs.CategoryRateLimit, ClassifyProviderError(&ProviderError{Provider: "gemini", StatusCode: 429}))
	assert.Equal(t, errs.CategoryUnavailable, ClassifyProviderError(&ProviderError{Provider: "gemini", StatusCode: 503, Body: "overloaded"}))
	assert.Equal(t, errs.CategoryUnknown, ClassifyProviderError(nil))
}
