package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lead-pipeline/internal/models"
)

// LatestAIConfig returns the enabled AI configuration for role updated
// most recently, or nil.
func (s *Store) LatestAIConfig(ctx context.Context, role models.AIRole) (*models.AIProviderConfig, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, role, provider, model, api_key, account_id, base_url, enabled, updated_at
		FROM ai_provider_configs
		WHERE role = ? AND enabled = TRUE
		ORDER BY updated_at DESC LIMIT 1`), string(role))

	var c models.AIProviderConfig
	var roleStr, provider string
	err := row.Scan(&c.ID, &roleStr, &provider, &c.Model, &c.APIKey, &c.AccountID, &c.BaseURL, &c.Enabled, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest ai config: %w", err)
	}
	c.Role = models.AIRole(roleStr)
	c.Provider = models.ProviderKind(provider)
	return &c, nil
}

// LatestWebSearchConfig returns the enabled web search configuration for
// role updated most recently, or nil.
func (s *Store) LatestWebSearchConfig(ctx context.Context, role models.AIRole) (*models.WebSearchProviderConfig, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, role, provider, api_key, engine_id, base_url, enabled, updated_at
		FROM web_search_configs
		WHERE role = ? AND enabled = TRUE
		ORDER BY updated_at DESC LIMIT 1`), string(role))

	var c models.WebSearchProviderConfig
	var roleStr string
	err := row.Scan(&c.ID, &roleStr, &c.Provider, &c.APIKey, &c.EngineID, &c.BaseURL, &c.Enabled, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest web search config: %w", err)
	}
	c.Role = models.AIRole(roleStr)
	return &c, nil
}

// SaveAIConfig inserts or replaces an AI configuration.
func (s *Store) SaveAIConfig(ctx context.Context, c models.AIProviderConfig) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO ai_provider_configs (id, role, provider, model, api_key, account_id, base_url, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET role = excluded.role, provider = excluded.provider, model = excluded.model,
			api_key = excluded.api_key, account_id = excluded.account_id, base_url = excluded.base_url,
			enabled = excluded.enabled, updated_at = excluded.updated_at`),
		c.ID, string(c.Role), string(c.Provider), c.Model, c.APIKey, c.AccountID, c.BaseURL, c.Enabled, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save ai config: %w", err)
	}
	return nil
}

// SaveWebSearchConfig inserts or replaces a web search configuration.
func (s *Store) SaveWebSearchConfig(ctx context.Context, c models.WebSearchProviderConfig) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO web_search_configs (id, role, provider, api_key, engine_id, base_url, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET role = excluded.role, provider = excluded.provider, api_key = excluded.api_key,
			engine_id = excluded.engine_id, base_url = excluded.base_url, enabled = excluded.enabled,
			updated_at = excluded.updated_at`),
		c.ID, string(c.Role), c.Provider, c.APIKey, c.EngineID, c.BaseURL, c.Enabled, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save web search config: %w", err)
	}
	return nil
}
