package cache

import (
	"database/sql"
	"errors"
	"fmt"
)

// Initialize the tile cache schema for the given driver ("sqlite" or "pgx").
func InitSchema(db *sql.DB, driver string) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	blobType, intType := "BLOB", "INTEGER"
	if driver == "pgx" {
		blobType, intType = "BYTEA", "BIGINT"
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createTileCacheQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS tile_cache (
		url TEXT PRIMARY KEY,
		data %s NOT NULL,
		size %s NOT NULL,
		last_accessed_at %s NOT NULL
	);
	`, blobType, intType, intType)

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_tile_cache_last_accessed_at
	ON tile_cache(last_accessed_at);
	`

	statements := []string{
		createTileCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
