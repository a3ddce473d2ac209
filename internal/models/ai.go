package models

import "time"

// AIRole is a logical AI usage category, independent of provider.
type AIRole string

const (
	RoleLeadAnalysis       AIRole = "lead_analysis"
	RoleViability          AIRole = "viability"
	RoleCompanyAnalysis    AIRole = "company_analysis"
	RoleCompetitorAnalysis AIRole = "competitor_analysis"
	RoleMarketAnalysis     AIRole = "market_analysis"
)

// ProviderKind selects an AI wire protocol.
type ProviderKind string

const (
	ProviderGemini     ProviderKind = "gemini"
	ProviderOpenAI     ProviderKind = "openai"
	ProviderCloudflare ProviderKind = "cloudflare"
)

// AIProviderConfig is an administrator-configured AI provider record.
// Credentials arrive already decrypted.
type AIProviderConfig struct {
	ID        string       `json:"id"`
	Role      AIRole       `json:"role"`
	Provider  ProviderKind `json:"provider"`
	Model     string       `json:"model"`
	APIKey    string       `json:"-"`
	AccountID string       `json:"accountId,omitempty"`
	BaseURL   string       `json:"baseUrl,omitempty"`
	Enabled   bool         `json:"enabled"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// WebSearchProviderConfig is an administrator-configured web search record.
type WebSearchProviderConfig struct {
	ID        string    `json:"id"`
	Role      AIRole    `json:"role"`
	Provider  string    `json:"provider"`
	APIKey    string    `json:"-"`
	EngineID  string    `json:"engineId,omitempty"`
	BaseURL   string    `json:"baseUrl,omitempty"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updatedAt"`
}
