package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"route-profile-service/internal/domain"
	"strings"
	"time"
)

// SQLite backed tile store; the default for a single desktop install.
type SqliteTileStore struct {
	DB *sql.DB
}

func NewSqliteTileStore(db *sql.DB) *SqliteTileStore {
	return &SqliteTileStore{DB: db}
}

// Fetch one cached tile.
func (s *SqliteTileStore) Get(ctx context.Context, key string) (domain.TileEntry, bool, error) {
	if s.DB == nil {
		return domain.TileEntry{}, false, errors.New("tile store: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return domain.TileEntry{}, false, errors.New("get tile: key must not be empty")
	}

	q := `
	SELECT
		data,
		size,
		last_accessed_at
	FROM tile_cache
	WHERE url = ?;
	`

	var (
		data     []byte
		size     int64
		accessed int64
	)
	err := s.DB.QueryRowContext(ctx, q, key).Scan(&data, &size, &accessed)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TileEntry{}, false, nil
	}
	if err != nil {
		return domain.TileEntry{}, false, fmt.Errorf("get tile: query tile_cache table: %w", err)
	}

	return scanEntry(key, data, size, accessed)
}

func (s *SqliteTileStore) Touch(ctx context.Context, key string, at time.Time) error {
	if s.DB == nil {
		return errors.New("tile store: db is nil")
	}

	if _, err := s.DB.ExecContext(ctx, `UPDATE tile_cache SET last_accessed_at = ? WHERE url = ?;`, at.UnixNano(), key); err != nil {
		return fmt.Errorf("touch tile %q: %w", key, err)
	}
	return nil
}

// Store a tile, replacing any previous payload for the key.
func (s *SqliteTileStore) Put(ctx context.Context, e domain.TileEntry) error {
	if s.DB == nil {
		return errors.New("tile store: db is nil")
	}
	if strings.TrimSpace(e.Key) == "" {
		return errors.New("insert tile: key must not be empty")
	}

	q := `
	INSERT OR REPLACE INTO tile_cache (
		url,
		data,
		size,
		last_accessed_at
	)
	VALUES (?, ?, ?, ?);
	`
	if _, err := s.DB.ExecContext(ctx, q, e.Key, e.Data, int64(len(e.Data)), e.LastAccessedAt.UnixNano()); err != nil {
		return fmt.Errorf("insert tile %q: %w", e.Key, err)
	}
	return nil
}

func (s *SqliteTileStore) Delete(ctx context.Context, key string) error {
	if s.DB == nil {
		return errors.New("tile store: db is nil")
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM tile_cache WHERE url = ?;`, key); err != nil {
		return fmt.Errorf("delete tile %q: %w", key, err)
	}
	return nil
}

// Return entry metadata ordered oldest access first.
func (s *SqliteTileStore) List(ctx context.Context) ([]domain.TileEntryInfo, error) {
	if s.DB == nil {
		return nil, errors.New("tile store: db is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT
		url,
		size,
		last_accessed_at
	FROM tile_cache
	ORDER BY last_accessed_at, url;
	`)
	if err != nil {
		return nil, fmt.Errorf("list tiles: query tile_cache table: %w", err)
	}
	defer rows.Close()

	return scanInfos(rows)
}

func (s *SqliteTileStore) TotalSize(ctx context.Context) (int64, error) {
	if s.DB == nil {
		return 0, errors.New("tile store: db is nil")
	}

	var total int64
	if err := s.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM tile_cache;`).Scan(&total); err != nil {
		return 0, fmt.Errorf("tile total size: %w", err)
	}
	return total, nil
}
