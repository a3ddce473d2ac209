package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"lead-pipeline/internal/models"
)

// GetAccount joins the user with its workspace. Unknown users yield nil.
func (s *Store) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT u.id, u.workspace_id, u.onboarding_complete,
		       COALESCE(w.quota_used, 0), COALESCE(w.quota_limit, 0)
		FROM users u
		LEFT JOIN workspaces w ON w.id = u.workspace_id
		WHERE u.id = ?`), userID)

	var account models.Account
	var workspaceID sql.NullString
	err := row.Scan(&account.UserID, &workspaceID, &account.OnboardingComplete, &account.QuotaUsed, &account.QuotaLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	account.WorkspaceID = workspaceID.String
	return &account, nil
}

// RecordBillableSearch increments the workspace's used quota by one and
// appends h in one transaction. It returns the updated used and limit.
func (s *Store) RecordBillableSearch(ctx context.Context, h models.SearchHistory) (int, int, error) {
	filters, err := json.Marshal(h.Filters)
	if err != nil {
		return 0, 0, fmt.Errorf("encode filters: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var used, limit int
	err = tx.QueryRowContext(ctx, s.rebind(`
		UPDATE workspaces SET quota_used = quota_used + 1, updated_at = ?
		WHERE id = ?
		RETURNING quota_used, quota_limit`), s.now(), h.WorkspaceID).Scan(&used, &limit)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("workspace %s not found", h.WorkspaceID)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("increment quota: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(insertHistory), historyArgs(h, filters)...); err != nil {
		return 0, 0, fmt.Errorf("insert history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return used, limit, nil
}

// UpsertWorkspace creates or resets a workspace's quota.
func (s *Store) UpsertWorkspace(ctx context.Context, id string, used, limit int) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO workspaces (id, quota_used, quota_limit, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET quota_used = excluded.quota_used,
			quota_limit = excluded.quota_limit, updated_at = excluded.updated_at`),
		id, used, limit, s.now())
	if err != nil {
		return fmt.Errorf("upsert workspace: %w", err)
	}
	return nil
}

// UpsertUser creates or updates a user. An empty workspace id stores NULL.
func (s *Store) UpsertUser(ctx context.Context, id, workspaceID string, onboardingComplete bool) error {
	var ws interface{}
	if workspaceID != "" {
		ws = workspaceID
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO users (id, workspace_id, onboarding_complete) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET workspace_id = excluded.workspace_id,
			onboarding_complete = excluded.onboarding_complete`),
		id, ws, onboardingComplete)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
