// internal/common/database/sqlite.go
package database

import (
	"database/sql"
	"fmt"

	"lead-pipeline/internal/common/config"

	_ "modernc.org/sqlite"
)

// NewSQLite opens the embedded store. SQLite serialises writers, so the
// pool is pinned to a single connection; this also keeps ":memory:"
// databases alive across queries.
func NewSQLite(cfg config.SQLiteConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
