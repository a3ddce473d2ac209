package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"lead-pipeline/internal/models"
)

const insertHistory = `
	INSERT INTO search_history (id, workspace_id, user_id, query, filters, results_count, source, billable, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func historyArgs(h models.SearchHistory, filters []byte) []interface{} {
	return []interface{}{h.ID, h.WorkspaceID, h.UserID, h.Query, string(filters), h.ResultsCount, h.Source, h.Billable, h.CreatedAt}
}

// AppendHistory writes a non-billable history row.
func (s *Store) AppendHistory(ctx context.Context, h models.SearchHistory) error {
	filters, err := json.Marshal(h.Filters)
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(insertHistory), historyArgs(h, filters)...); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ListHistory returns a workspace's most recent searches first.
func (s *Store) ListHistory(ctx context.Context, workspaceID string, limit int) ([]models.SearchHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, workspace_id, user_id, query, filters, results_count, source, billable, created_at
		FROM search_history WHERE workspace_id = ?
		ORDER BY created_at DESC LIMIT ?`), workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []models.SearchHistory
	for rows.Next() {
		var h models.SearchHistory
		var filters []byte
		if err := rows.Scan(&h.ID, &h.WorkspaceID, &h.UserID, &h.Query, &filters, &h.ResultsCount, &h.Source, &h.Billable, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if err := json.Unmarshal(filters, &h.Filters); err != nil {
			return nil, fmt.Errorf("decode filters: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
