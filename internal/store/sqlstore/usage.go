package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"lead-pipeline/internal/models"
)

// AppendUsage writes one usage event.
func (s *Store) AppendUsage(ctx context.Context, e models.UsageEvent) error {
	metadata := []byte("{}")
	if len(e.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(e.Metadata); err != nil {
			return fmt.Errorf("encode usage metadata: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO usage_events (id, workspace_id, user_id, kind, quantity, provider, model, input_tokens, output_tokens, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.WorkspaceID, e.UserID, e.Kind, e.Quantity, e.Provider, e.Model, e.InputTokens, e.OutputTokens, string(metadata), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append usage: %w", err)
	}
	return nil
}

// SumUsage totals a workspace's quantity for kind.
func (s *Store) SumUsage(ctx context.Context, workspaceID, kind string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COALESCE(SUM(quantity), 0) FROM usage_events WHERE workspace_id = ? AND kind = ?`),
		workspaceID, kind).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum usage: %w", err)
	}
	return total, nil
}
