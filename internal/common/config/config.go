// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Places        PlacesConfig            `mapstructure:"places"`
	Geocoding     GeocodingConfig         `mapstructure:"geocoding"`
	Search        SearchConfig            `mapstructure:"search"`
	AI            AIConfig                `mapstructure:"ai"`
	WebSearch     WebSearchConfig         `mapstructure:"web_search"`
	Quota         QuotaConfig             `mapstructure:"quota"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	Plaintext      bool   `mapstructure:"plaintext"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	SQLite        SQLiteConfig        `mapstructure:"sqlite"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	ConnLifetime   int    `mapstructure:"conn_lifetime"` // milliseconds
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// SQLiteConfig configures the embedded store used for local runs.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	Index      string   `mapstructure:"index"`
	MaxRetries int      `mapstructure:"max_retries"`
}

// RedisConfig points at the cache and rate counter. An empty address
// disables both.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// --- Pipeline Configuration ---

// PlacesConfig configures the external places-search provider.
type PlacesConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	LanguageCode   string `mapstructure:"language_code"`
	RegionCode     string `mapstructure:"region_code"`
	MaxPageSize    int    `mapstructure:"max_page_size"`
	Timeout        int    `mapstructure:"timeout"` // milliseconds
	SearchAttempts int    `mapstructure:"search_attempts"`
	DetailAttempts int    `mapstructure:"detail_attempts"`
	PageDelay      int    `mapstructure:"page_delay"`  // milliseconds
	TokenTTL       int    `mapstructure:"token_ttl"`   // milliseconds
	TokenSweepAt   int    `mapstructure:"token_sweep"` // table size that triggers eviction
}

// GeocodingConfig configures the geocoding collaborator.
type GeocodingConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Timeout  int    `mapstructure:"timeout"`   // milliseconds
	CacheTTL int    `mapstructure:"cache_ttl"` // milliseconds
}

// SearchConfig tunes tiered resolution.
type SearchConfig struct {
	CacheTTL           int    `mapstructure:"cache_ttl"` // milliseconds
	CacheMinResults    int    `mapstructure:"cache_min_results"`
	LocalMinCandidates int    `mapstructure:"local_min_candidates"`
	LocalMinFiltered   int    `mapstructure:"local_min_filtered"`
	MaxRadiusKm        int    `mapstructure:"max_radius_km"`
	TokenPacing        int    `mapstructure:"token_pacing"` // milliseconds
	LocalBackend       string `mapstructure:"local_backend"` // postgres, sqlite or elasticsearch
	BackgroundTimeout  int    `mapstructure:"background_timeout"` // milliseconds

	LocationScopedCache bool `mapstructure:"location_scoped_cache"`
}

// AIConfig holds process-level AI credentials used when no stored
// configuration exists for a role.
type AIConfig struct {
	DefaultProvider     string            `mapstructure:"default_provider"`
	GeminiAPIKey        string            `mapstructure:"gemini_api_key"`
	GeminiBaseURL       string            `mapstructure:"gemini_base_url"`
	OpenAIAPIKey        string            `mapstructure:"openai_api_key"`
	OpenAIBaseURL       string            `mapstructure:"openai_base_url"`
	CloudflareAccountID string            `mapstructure:"cloudflare_account_id"`
	CloudflareAPIToken  string            `mapstructure:"cloudflare_api_token"`
	CloudflareBaseURL   string            `mapstructure:"cloudflare_base_url"`
	DefaultModels       map[string]string `mapstructure:"default_models"`
	Timeout             int               `mapstructure:"timeout"` // milliseconds
}

// WebSearchConfig tunes the web context aggregator.
type WebSearchConfig struct {
	BaseURL         string         `mapstructure:"base_url"`
	Timeout         int            `mapstructure:"timeout"` // milliseconds
	DefaultMaxQuery int            `mapstructure:"default_max_queries"`
	RoleMaxQueries  map[string]int `mapstructure:"role_max_queries"`
	ResultsPerQuery int            `mapstructure:"results_per_query"`
}

// QuotaConfig tunes the rate/quota guard.
type QuotaConfig struct {
	RateLimitPerMinute int     `mapstructure:"rate_limit_per_minute"`
	WarningThreshold   float64 `mapstructure:"warning_threshold"`
}

// NotificationConfig holds settings for quota notifications.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled    bool     `mapstructure:"enabled"`
		From       string   `mapstructure:"from"`
		Recipients []string `mapstructure:"recipients"`
	} `mapstructure:"ses"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	MetricsAddress string `mapstructure:"metrics_address"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
