package ports

import "context"

// Contract for a remote elevation lookup.
type ElevationProvider interface {
	// Return the ground elevation in meters, or nil when the source has no value
	// for the coordinate.
	Lookup(ctx context.Context, lat, lng float64) (*float64, error)
}

// Memo storage for elevation answers keyed by exact coordinate pair.
// A stored nil means the source answered "no value" for that key.
type ElevationCache interface {
	Get(ctx context.Context, key string) (elevation *float64, found bool, err error)
	Put(ctx context.Context, key string, elevation *float64) error
}
