package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"route-profile-service/internal/domain"
	"route-profile-service/internal/platform/obs"
	"strings"
	"time"
)

// SQLTileStore is a Postgres-backed tile store (pgx stdlib driver).
type SQLTileStore struct {
	DB *sql.DB
}

func NewSQLTileStore(db *sql.DB) *SQLTileStore {
	return &SQLTileStore{DB: db}
}

// Fetch one cached tile.
func (s *SQLTileStore) Get(ctx context.Context, key string) (_ domain.TileEntry, _ bool, err error) {
	defer obs.Time(ctx, "tile.store.Get")(&err)

	if s.DB == nil {
		return domain.TileEntry{}, false, errors.New("tile store: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return domain.TileEntry{}, false, errors.New("get tile: key must not be empty")
	}

	q := `
	SELECT data, size, last_accessed_at
	FROM tile_cache
	WHERE url = $1;
	`

	var (
		data     []byte
		size     int64
		accessed int64
	)
	err = s.DB.QueryRowContext(ctx, q, key).Scan(&data, &size, &accessed)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TileEntry{}, false, nil
	}
	if err != nil {
		return domain.TileEntry{}, false, fmt.Errorf("get tile: query tile_cache table: %w", err)
	}

	return scanEntry(key, data, size, accessed)
}

func (s *SQLTileStore) Touch(ctx context.Context, key string, at time.Time) error {
	if s.DB == nil {
		return errors.New("tile store: db is nil")
	}

	if _, err := s.DB.ExecContext(ctx, `UPDATE tile_cache SET last_accessed_at = $1 WHERE url = $2;`, at.UnixNano(), key); err != nil {
		return fmt.Errorf("touch tile %q: %w", key, err)
	}
	return nil
}

// Store a tile, replacing any previous payload for the key.
func (s *SQLTileStore) Put(ctx context.Context, e domain.TileEntry) error {
	if s.DB == nil {
		return errors.New("tile store: db is nil")
	}
	if strings.TrimSpace(e.Key) == "" {
		return errors.New("insert tile: key must not be empty")
	}

	q := `
	INSERT INTO tile_cache (url, data, size, last_accessed_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (url) DO UPDATE
	SET data = EXCLUDED.data,
		size = EXCLUDED.size,
		last_accessed_at = EXCLUDED.last_accessed_at;
	`
	if _, err := s.DB.ExecContext(ctx, q, e.Key, e.Data, int64(len(e.Data)), e.LastAccessedAt.UnixNano()); err != nil {
		return fmt.Errorf("insert tile %q: %w", e.Key, err)
	}
	return nil
}

func (s *SQLTileStore) Delete(ctx context.Context, key string) error {
	if s.DB == nil {
		return errors.New("tile store: db is nil")
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM tile_cache WHERE url = $1;`, key); err != nil {
		return fmt.Errorf("delete tile %q: %w", key, err)
	}
	return nil
}

// Return entry metadata ordered oldest access first.
func (s *SQLTileStore) List(ctx context.Context) (_ []domain.TileEntryInfo, err error) {
	defer obs.Time(ctx, "tile.store.List")(&err)

	if s.DB == nil {
		return nil, errors.New("tile store: db is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT url, size, last_accessed_at
	FROM tile_cache
	ORDER BY last_accessed_at, url;
	`)
	if err != nil {
		return nil, fmt.Errorf("list tiles: query tile_cache table: %w", err)
	}
	defer rows.Close()

	return scanInfos(rows)
}

func (s *SQLTileStore) TotalSize(ctx context.Context) (int64, error) {
	if s.DB == nil {
		return 0, errors.New("tile store: db is nil")
	}

	var total int64
	if err := s.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM tile_cache;`).Scan(&total); err != nil {
		return 0, fmt.Errorf("tile total size: %w", err)
	}
	return total, nil
}

// scanEntry rejects rows whose payload does not match the recorded size.
func scanEntry(key string, data []byte, size, accessed int64) (domain.TileEntry, bool, error) {
	if int64(len(data)) != size {
		return domain.TileEntry{}, false, fmt.Errorf("get tile %q: corrupt entry: size=%d payload=%d", key, size, len(data))
	}
	return domain.TileEntry{
		Key:            key,
		Data:           data,
		Size:           size,
		LastAccessedAt: time.Unix(0, accessed),
	}, true, nil
}

func scanInfos(rows *sql.Rows) ([]domain.TileEntryInfo, error) {
	out := make([]domain.TileEntryInfo, 0, 64)
	for rows.Next() {
		var (
			url      string
			size     int64
			accessed int64
		)
		if err := rows.Scan(&url, &size, &accessed); err != nil {
			return nil, fmt.Errorf("list tiles: scan rows: %w", err)
		}
		out = append(out, domain.TileEntryInfo{
			Key:            url,
			Size:           size,
			LastAccessedAt: time.Unix(0, accessed),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tiles: row iteration: %w", err)
	}
	return out, nil
}
