package domain

import "time"

// A cached map tile keyed by its resolved URL.
type TileEntry struct {
	Key            string
	Data           []byte
	Size           int64
	LastAccessedAt time.Time
}

// Entry metadata without the payload, used for eviction planning.
type TileEntryInfo struct {
	Key            string
	Size           int64
	LastAccessedAt time.Time
}
