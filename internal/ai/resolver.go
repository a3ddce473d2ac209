package ai

import (
	"context"
	"strings"
	"time"

	"lead-pipeline/internal/common/config"
	errs "lead-pipeline/internal/common/errors"
	httpclient "lead-pipeline/internal/common/http"
	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/common/metrics"
	"lead-pipeline/internal/common/observability"
	"lead-pipeline/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

// Where a resolved configuration came from.
const (
	SourceStore       = "store"
	SourceFallback    = "fallback"
	SourceEnvironment = "environment"
)

// ConfigStore returns the enabled, most recently updated configuration
// for a role, or nil when there is none.
type ConfigStore interface {
	LatestAIConfig(ctx context.Context, role models.AIRole) (*models.AIProviderConfig, error)
}

// UsageRecorder accepts usage events without blocking.
type UsageRecorder interface {
	Record(ctx context.Context, event models.UsageEvent)
}

// fallbackParents lists the role consulted when a role has no configuration of its own.
var fallbackParents = map[models.AIRole]models.AIRole{
	models.RoleCompanyAnalysis:    models.RoleViability,
	models.RoleMarketAnalysis:     models.RoleViability,
	models.RoleCompetitorAnalysis: models.RoleLeadAnalysis,
}

// roleDefaultModels are used with process credentials when no stored
// configuration exists and the config file does not name a model.
var roleDefaultModels = map[models.ProviderKind]map[models.AIRole]string{
	models.ProviderGemini: {
		models.RoleLeadAnalysis:       "gemini-2.0-flash",
		models.RoleCompetitorAnalysis: "gemini-2.0-flash",
		models.RoleViability:          "gemini-2.5-flash",
		models.RoleCompanyAnalysis:    "gemini-2.5-flash",
		models.RoleMarketAnalysis:     "gemini-2.5-flash",
	},
	models.ProviderOpenAI: {
		models.RoleLeadAnalysis: "gpt-4o-mini",
		models.RoleViability:    "gpt-4o",
	},
	models.ProviderCloudflare: {
		models.RoleLeadAnalysis: "@cf/meta/llama-3.1-8b-instruct",
	},
}

var providerDefaultModels = map[models.ProviderKind]string{
	models.ProviderGemini:     "gemini-2.0-flash",
	models.ProviderOpenAI:     "gpt-4o-mini",
	models.ProviderCloudflare: "@cf/meta/llama-3.1-8b-instruct",
}

// FallbackChain is the ordered list of roles consulted for role.
func FallbackChain(role models.AIRole) []models.AIRole {
	chain := []models.AIRole{role}
	seen := map[models.AIRole]bool{role: true}
	for parent, ok := fallbackParents[role]; ok && !seen[parent]; parent, ok = fallbackParents[parent] {
		chain = append(chain, parent)
		seen[parent] = true
	}
	return chain
}

// ResolvedConfig is recomputed on every call so configuration changes
// apply to the next request.
type ResolvedConfig struct {
	Role      models.AIRole       `json:"role"`
	Provider  models.ProviderKind `json:"provider"`
	Model     string              `json:"model"`
	APIKey    string              `json:"-"`
	AccountID string              `json:"accountId,omitempty"`
	BaseURL   string              `json:"baseUrl,omitempty"`
	Source    string              `json:"source"`
	ConfigID  string              `json:"configId,omitempty"`
}

// Resolution pairs a configuration with its adapter.
type Resolution struct {
	Config  ResolvedConfig
	Adapter Adapter
}

type Resolver struct {
	store  ConfigStore
	env    config.AIConfig
	http   *httpclient.Client
	usage  UsageRecorder
	logger logger.Logger
}

// NewResolver builds a resolver. usage may be nil.
func NewResolver(store ConfigStore, env config.AIConfig, usage UsageRecorder, log logger.Logger) *Resolver {
	timeout := time.Duration(env.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Resolver{
		store:  store,
		env:    env,
		http:   httpclient.NewClient(timeout),
		usage:  usage,
		logger: log.WithFields(map[string]interface{}{"component": "ai-resolver"}),
	}
}

// Resolve finds the configuration for role and builds its adapter.
func (r *Resolver) Resolve(ctx context.Context, role models.AIRole) (*Resolution, error) {
	cfg, err := r.resolveConfig(ctx, role)
	if err != nil {
		return nil, err
	}
	adapter, err := NewAdapter(*cfg, r.http)
	if err != nil {
		return nil, err
	}
	return &Resolution{Config: *cfg, Adapter: adapter}, nil
}

func (r *Resolver) resolveConfig(ctx context.Context, role models.AIRole) (*ResolvedConfig, error) {
	if r.store != nil {
		for i, candidate := range FallbackChain(role) {
			stored, err := r.store.LatestAIConfig(ctx, candidate)
			if err != nil {
				return nil, errs.NewStoreFailedError("ai_config_lookup", err)
			}
			if stored == nil || !stored.Enabled {
				continue
			}
			source := SourceStore
			if i > 0 {
				source = SourceFallback
				r.logger.Debug("using fallback role configuration", map[string]interface{}{
					"role":     string(role),
					"resolved": string(candidate),
				})
			}
			return &ResolvedConfig{
				Role:      role,
				Provider:  stored.Provider,
				Model:     stored.Model,
				APIKey:    stored.APIKey,
				AccountID: stored.AccountID,
				BaseURL:   stored.BaseURL,
				Source:    source,
				ConfigID:  stored.ID,
			}, nil
		}
	}

	if cfg := r.environmentConfig(role); cfg != nil {
		return cfg, nil
	}
	return nil, errs.NewAIConfigMissingError(string(role))
}

func (r *Resolver) environmentConfig(role models.AIRole) *ResolvedConfig {
	provider := models.ProviderKind(strings.ToLower(r.env.DefaultProvider))
	if provider == "" {
		provider = models.ProviderGemini
	}

	cfg := &ResolvedConfig{Role: role, Provider: provider, Source: SourceEnvironment}
	switch provider {
	case models.ProviderGemini:
		cfg.APIKey, cfg.BaseURL = r.env.GeminiAPIKey, r.env.GeminiBaseURL
	case models.ProviderOpenAI:
		cfg.APIKey, cfg.BaseURL = r.env.OpenAIAPIKey, r.env.OpenAIBaseURL
	case models.ProviderCloudflare:
		if r.env.CloudflareAccountID == "" {
			return nil
		}
		cfg.APIKey, cfg.AccountID, cfg.BaseURL = r.env.CloudflareAPIToken, r.env.CloudflareAccountID, r.env.CloudflareBaseURL
	default:
		return nil
	}
	if cfg.APIKey == "" {
		return nil
	}

	cfg.Model = r.env.DefaultModels[string(role)]
	if cfg.Model == "" {
		cfg.Model = roleDefaultModels[provider][role]
	}
	if cfg.Model == "" {
		cfg.Model = providerDefaultModels[provider]
	}
	return cfg
}

// NewAdapter dispatches on the provider kind.
func NewAdapter(cfg ResolvedConfig, client *httpclient.Client) (Adapter, error) {
	switch cfg.Provider {
	case models.ProviderGemini:
		return newGeminiAdapter(cfg, client), nil
	case models.ProviderOpenAI:
		return newOpenAIAdapter(cfg, client), nil
	case models.ProviderCloudflare:
		return newCloudflareAdapter(cfg, client), nil
	default:
		return nil, errs.NewUnsupportedProviderError(string(cfg.Provider))
	}
}

// GenerateCompletion resolves role and runs one completion. Token usage is
// recorded when opts carries an attribution.
func (r *Resolver) GenerateCompletion(ctx context.Context, role models.AIRole, opts CompletionOptions) (result *CompletionResult, err error) {
	ctx, finish := observability.Track(ctx, "ai.generate_completion", attribute.String("role", string(role)))
	defer func() { finish(err) }()

	res, err := r.Resolve(ctx, role)
	if err != nil {
		return nil, err
	}

	provider := string(res.Config.Provider)
	result, err = res.Adapter.Complete(ctx, opts)
	if err != nil {
		r.logger.Warn("completion failed", map[string]interface{}{
			"role":     string(role),
			"provider": provider,
			"model":    res.Config.Model,
			"category": ClassifyProviderError(err),
			"error":    err.Error(),
		})
		if _, ok := errs.AsStandard(err); ok {
			return nil, err
		}
		return nil, errs.NewAIProviderFailedError(provider, err)
	}

	if result.Usage != nil {
		metrics.AITokens.WithLabelValues(provider, "input").Add(float64(result.Usage.InputTokens))
		metrics.AITokens.WithLabelValues(provider, "output").Add(float64(result.Usage.OutputTokens))
		if r.usage != nil && !opts.Attribution.IsZero() {
			r.usage.Record(ctx, models.UsageEvent{
				WorkspaceID:  opts.Attribution.WorkspaceID,
				UserID:       opts.Attribution.UserID,
				Kind:         models.UsageAITokens,
				Quantity:     result.Usage.InputTokens + result.Usage.OutputTokens,
				Provider:     provider,
				Model:        res.Config.Model,
				InputTokens:  result.Usage.InputTokens,
				OutputTokens: result.Usage.OutputTokens,
				Metadata:     map[string]interface{}{"role": string(role)},
			})
		}
	}
	return result, nil
}
