package cache

import (
	"database/sql"
	"fmt"
	"route-profile-service/internal/platform/db"
	"route-profile-service/internal/ports"
)

// OpenTileStore builds the tile store for driver ("sqlite", "postgres" or
// "memory") and makes sure its schema exists. The returned *sql.DB is nil
// for the memory store; callers close it otherwise. The SQL drivers must be
// registered by the caller.
func OpenTileStore(driver, dsn string) (ports.TileStore, *sql.DB, error) {
	switch driver {
	case "memory":
		return NewMemoryTileStore(), nil, nil

	case "sqlite":
		conn, err := db.Open("sqlite", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open tile store: %w", err)
		}
		if err := InitSchema(conn, "sqlite"); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("open tile store: %w", err)
		}
		return NewSqliteTileStore(conn), conn, nil

	case "postgres":
		conn, err := db.Open("pgx", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open tile store: %w", err)
		}
		if err := InitSchema(conn, "pgx"); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("open tile store: %w", err)
		}
		return NewSQLTileStore(conn), conn, nil

	default:
		return nil, nil, fmt.Errorf("open tile store: unknown driver %q", driver)
	}
}
