package ports

import (
	"context"
	"route-profile-service/internal/domain"
	"time"
)

// Port: persistent byte storage for map tiles keyed by tile URL.
// Implementations do not enforce a size budget; TileCache does.
type TileStore interface {
	// Return the entry for key; found is false on a miss.
	Get(ctx context.Context, key string) (entry domain.TileEntry, found bool, err error)
	// Record an access time for key.
	Touch(ctx context.Context, key string, at time.Time) error
	// Insert or replace an entry.
	Put(ctx context.Context, entry domain.TileEntry) error
	Delete(ctx context.Context, key string) error
	// Return metadata for every entry (no payloads).
	List(ctx context.Context) ([]domain.TileEntryInfo, error)
	// Sum of entry sizes in bytes.
	TotalSize(ctx context.Context) (int64, error)
}

// Contract for downloading a tile payload from a tile server.
type TileFetcher interface {
	FetchTile(ctx context.Context, url string) ([]byte, error)
}
