// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml,
// expands ${VAR} placeholders and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // environment overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env", "../../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills credentials from the conventional environment
// variables when the YAML left them empty.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Places.APIKey, "GOOGLE_PLACES_API_KEY")
	setIfEmpty(&cfg.Geocoding.APIKey, "GOOGLE_GEOCODING_API_KEY")
	if cfg.Geocoding.APIKey == "" {
		cfg.Geocoding.APIKey = cfg.Places.APIKey
	}
	setIfEmpty(&cfg.AI.GeminiAPIKey, "GEMINI_API_KEY")
	setIfEmpty(&cfg.AI.OpenAIAPIKey, "OPENAI_API_KEY")
	setIfEmpty(&cfg.AI.CloudflareAccountID, "CLOUDFLARE_ACCOUNT_ID")
	setIfEmpty(&cfg.AI.CloudflareAPIToken, "CLOUDFLARE_API_TOKEN")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	setIfEmpty(&cfg.Notifications.SNS.TopicARN, "QUOTA_ALERT_TOPIC_ARN")
	setIfEmpty(&cfg.Notifications.SES.From, "QUOTA_ALERT_FROM")
}

func setIfEmpty(target *string, envKey string) {
	if *target != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*target = val
	}
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "lead-pipeline"
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Postgres.ConnLifetime == 0 {
		cfg.Database.Postgres.ConnLifetime = 300000
	}
	if cfg.Database.Redis.PoolSize == 0 {
		cfg.Database.Redis.PoolSize = 10
	}
	if cfg.Database.Elasticsearch.MaxRetries == 0 {
		cfg.Database.Elasticsearch.MaxRetries = 3
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "file:leads.db?_pragma=busy_timeout(5000)"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "places"
	}

	// Places provider defaults
	if cfg.Places.BaseURL == "" {
		cfg.Places.BaseURL = "https://places.googleapis.com"
	}
	if cfg.Places.LanguageCode == "" {
		cfg.Places.LanguageCode = "pt-BR"
	}
	if cfg.Places.MaxPageSize == 0 {
		cfg.Places.MaxPageSize = 20
	}
	if cfg.Places.Timeout == 0 {
		cfg.Places.Timeout = 15000
	}
	if cfg.Places.SearchAttempts == 0 {
		cfg.Places.SearchAttempts = 3
	}
	if cfg.Places.DetailAttempts == 0 {
		cfg.Places.DetailAttempts = 2
	}
	if cfg.Places.PageDelay == 0 {
		cfg.Places.PageDelay = 400
	}
	if cfg.Places.TokenTTL == 0 {
		cfg.Places.TokenTTL = 600000
	}
	if cfg.Places.TokenSweepAt == 0 {
		cfg.Places.TokenSweepAt = 500
	}

	if cfg.Geocoding.BaseURL == "" {
		cfg.Geocoding.BaseURL = "https://maps.googleapis.com"
	}
	if cfg.Geocoding.Timeout == 0 {
		cfg.Geocoding.Timeout = 10000
	}
	if cfg.Geocoding.CacheTTL == 0 {
		cfg.Geocoding.CacheTTL = 30 * 24 * 3600 * 1000
	}

	// Tiered resolution defaults
	if cfg.Search.CacheTTL == 0 {
		cfg.Search.CacheTTL = 24 * 3600 * 1000
	}
	if cfg.Search.CacheMinResults == 0 {
		cfg.Search.CacheMinResults = 5
	}
	if cfg.Search.LocalMinCandidates == 0 {
		cfg.Search.LocalMinCandidates = 10
	}
	if cfg.Search.LocalMinFiltered == 0 {
		cfg.Search.LocalMinFiltered = 5
	}
	if cfg.Search.MaxRadiusKm == 0 {
		cfg.Search.MaxRadiusKm = 50
	}
	if cfg.Search.TokenPacing == 0 {
		cfg.Search.TokenPacing = 400
	}
	if cfg.Search.LocalBackend == "" {
		cfg.Search.LocalBackend = "postgres"
	}
	if cfg.Search.BackgroundTimeout == 0 {
		cfg.Search.BackgroundTimeout = 30000
	}

	// AI defaults
	if cfg.AI.DefaultProvider == "" {
		cfg.AI.DefaultProvider = "gemini"
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60000
	}
	if cfg.AI.DefaultModels == nil {
		cfg.AI.DefaultModels = map[string]string{}
	}

	// Web search defaults
	if cfg.WebSearch.BaseURL == "" {
		cfg.WebSearch.BaseURL = "https://www.googleapis.com/customsearch/v1"
	}
	if cfg.WebSearch.Timeout == 0 {
		cfg.WebSearch.Timeout = 10000
	}
	if cfg.WebSearch.DefaultMaxQuery == 0 {
		cfg.WebSearch.DefaultMaxQuery = 5
	}
	if cfg.WebSearch.RoleMaxQueries == nil {
		cfg.WebSearch.RoleMaxQueries = map[string]int{"company_analysis": 6}
	}
	if cfg.WebSearch.ResultsPerQuery == 0 {
		cfg.WebSearch.ResultsPerQuery = 5
	}

	if cfg.Quota.WarningThreshold == 0 {
		cfg.Quota.WarningThreshold = 0.8
	}
	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "us-east-1"
	}

	if cfg.Observability.MetricsAddress == "" {
		cfg.Observability.MetricsAddress = ":9090"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	switch cfg.Search.LocalBackend {
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required for the postgres backend")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required for the postgres backend")
		}
	case "sqlite":
	case "elasticsearch":
		if len(cfg.Database.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("database.elasticsearch.addresses is required for the elasticsearch backend")
		}
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required for accounts and history")
		}
	default:
		return fmt.Errorf("search.local_backend %q is not one of postgres, sqlite, elasticsearch", cfg.Search.LocalBackend)
	}

	if cfg.Places.MaxPageSize < 1 || cfg.Places.MaxPageSize > 20 {
		return fmt.Errorf("places.max_page_size must be between 1 and 20")
	}
	if cfg.Search.MaxRadiusKm < 1 || cfg.Search.MaxRadiusKm > 50 {
		return fmt.Errorf("search.max_radius_km must be between 1 and 50")
	}
	if cfg.Quota.WarningThreshold < 0 || cfg.Quota.WarningThreshold > 1 {
		return fmt.Errorf("quota.warning_threshold must be between 0 and 1")
	}
	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}
	if cfg.Notifications.SES.Enabled && (cfg.Notifications.SES.From == "" || len(cfg.Notifications.SES.Recipients) == 0) {
		return fmt.Errorf("notifications.ses.from and recipients are required when ses is enabled")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled.
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
