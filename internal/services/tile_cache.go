package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"route-profile-service/internal/adapters/tiles"
	"route-profile-service/internal/domain"
	"route-profile-service/internal/platform/obs"
	"route-profile-service/internal/ports"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/h2non/filetype"
	"golang.org/x/sync/singleflight"
)

var (
	ErrEntryTooLarge = errors.New("tile cache: entry larger than cache budget")
	ErrUnknownLayer  = errors.New("tile cache: unknown layer")
)

// DefaultLayer names the base layer built from the configured URL template.
const DefaultLayer = "default"

const defaultTileContentType = "image/png"

// TileResponse is a tile ready to serve.
type TileResponse struct {
	Data        []byte
	ContentType string
	// Cached is true when the bytes came from the store.
	Cached bool
}

type TileCacheStats struct {
	Entries    int   `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
	MaxBytes   int64 `json:"max_bytes"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	Errors     int64 `json:"store_errors"`
}

// TileCache bounds a TileStore to MaxBytes, evicting the least recently
// accessed entries first. Storage failures never block a tile from being
// served.
type TileCache struct {
	store    ports.TileStore
	fetcher  ports.TileFetcher
	layers   map[string]tiles.URLTemplate
	maxBytes int64
	now      func() time.Time

	// serializes Put and eviction
	mu    sync.Mutex
	group singleflight.Group

	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	storeErrors atomic.Int64
}

type TileCacheOption func(*TileCache)

// WithLayers adds named base layers next to DefaultLayer. All layers share
// one byte budget; tiles are keyed by their resolved URL.
func WithLayers(layers map[string]tiles.URLTemplate) TileCacheOption {
	return func(c *TileCache) {
		for name, tmpl := range layers {
			c.layers[name] = tmpl
		}
	}
}

// WithClock replaces time.Now for access timestamps.
func WithClock(now func() time.Time) TileCacheOption {
	return func(c *TileCache) { c.now = now }
}

func NewTileCache(
	store ports.TileStore,
	fetcher ports.TileFetcher,
	template tiles.URLTemplate,
	maxBytes int64,
	opts ...TileCacheOption,
) (*TileCache, error) {
	if store == nil {
		return nil, errors.New("new tile cache: store is nil")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("new tile cache: max bytes must be positive, got %d", maxBytes)
	}

	c := &TileCache{
		store:    store,
		fetcher:  fetcher,
		layers:   map[string]tiles.URLTemplate{DefaultLayer: template},
		maxBytes: maxBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *TileCache) MaxBytes() int64 { return c.maxBytes }

// Layers returns the layer names in sorted order.
func (c *TileCache) Layers() []string {
	names := make([]string, 0, len(c.layers))
	for name := range c.layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the cached payload for key and marks it as accessed.
func (c *TileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.storeErrors.Add(1)
		return nil, false, fmt.Errorf("tile cache get %q: %w", key, err)
	}
	if !found {
		c.misses.Add(1)
		return nil, false, nil
	}
	c.hits.Add(1)

	if err := c.store.Touch(ctx, key, c.now()); err != nil {
		c.storeErrors.Add(1)
		log.Printf("op=tile_touch key=%s err=%v", key, err)
	}
	return e.Data, true, nil
}

// Put stores data under key, evicting whole entries oldest-access first until
// the new total fits within MaxBytes.
func (c *TileCache) Put(ctx context.Context, key string, data []byte) (err error) {
	size := int64(len(data))
	if size > c.maxBytes {
		return fmt.Errorf("tile cache put %q: %d bytes, budget %d: %w", key, size, c.maxBytes, ErrEntryTooLarge)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found, err := c.store.Get(ctx, key); err != nil {
		return fmt.Errorf("tile cache put %q: lookup existing: %w", key, err)
	} else if found {
		if err := c.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("tile cache put %q: drop existing: %w", key, err)
		}
	}

	total, err := c.store.TotalSize(ctx)
	if err != nil {
		return fmt.Errorf("tile cache put %q: %w", key, err)
	}

	if total+size > c.maxBytes {
		if _, err := c.evictLocked(ctx, total, c.maxBytes-size); err != nil {
			return fmt.Errorf("tile cache put %q: %w", key, err)
		}
	}

	if err := c.store.Put(ctx, domain.TileEntry{
		Key:            key,
		Data:           data,
		Size:           size,
		LastAccessedAt: c.now(),
	}); err != nil {
		return fmt.Errorf("tile cache put %q: %w", key, err)
	}
	return nil
}

// Enforce evicts until the stored total is within MaxBytes and returns the
// number of entries removed.
func (c *TileCache) Enforce(ctx context.Context) (removed int, err error) {
	defer obs.Time(ctx, "tile_cache_enforce")(&err)

	c.mu.Lock()
	defer c.mu.Unlock()

	total, err := c.store.TotalSize(ctx)
	if err != nil {
		return 0, fmt.Errorf("tile cache enforce: %w", err)
	}
	if total <= c.maxBytes {
		return 0, nil
	}
	return c.evictLocked(ctx, total, c.maxBytes)
}

// evictLocked deletes entries oldest first (ties by key) until total <= target.
func (c *TileCache) evictLocked(ctx context.Context, total, target int64) (int, error) {
	infos, err := c.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("evict: %w", err)
	}

	removed := 0
	for _, info := range infos {
		if total <= target {
			break
		}
		if err := c.store.Delete(ctx, info.Key); err != nil {
			return removed, fmt.Errorf("evict %q: %w", info.Key, err)
		}
		total -= info.Size
		removed++
		c.evictions.Add(1)
		log.Printf("op=tile_evict key=%s size=%d", info.Key, info.Size)
	}
	return removed, nil
}

// Fetch serves tile z/x/y of DefaultLayer. See FetchLayer.
func (c *TileCache) Fetch(ctx context.Context, z, x, y int) (TileResponse, error) {
	return c.FetchLayer(ctx, DefaultLayer, z, x, y)
}

// FetchLayer serves tile z/x/y of layer from the cache, downloading it on a
// miss.
//
// A store read error skips the cache entirely: the tile is downloaded, served
// and not stored. A store write error is logged and the tile is still served.
// Only a failed download is returned as an error.
func (c *TileCache) FetchLayer(ctx context.Context, layer string, z, x, y int) (_ TileResponse, err error) {
	defer obs.Time(ctx, "tile_fetch")(&err)

	template, ok := c.layers[layer]
	if !ok {
		return TileResponse{}, fmt.Errorf("tile fetch: layer %q: %w", layer, ErrUnknownLayer)
	}

	tile, err := tiles.NewTile(z, x, y)
	if err != nil {
		return TileResponse{}, err
	}
	if c.fetcher == nil {
		return TileResponse{}, errors.New("tile fetch: no fetcher configured")
	}
	url := template.Resolve(tile)

	data, found, getErr := c.Get(ctx, url)
	if getErr != nil {
		log.Printf("op=tile_fetch key=%s store_read_err=%v fail_open=true", url, getErr)
	}
	if found {
		return TileResponse{Data: data, ContentType: contentType(data), Cached: true}, nil
	}

	res, err, _ := c.group.Do(url, func() (any, error) {
		return c.fetcher.FetchTile(ctx, url)
	})
	if err != nil {
		return TileResponse{}, fmt.Errorf("tile fetch %s: %w", url, err)
	}
	data = res.([]byte)

	if getErr == nil {
		if err := c.Put(ctx, url, data); err != nil {
			if !errors.Is(err, ErrEntryTooLarge) {
				c.storeErrors.Add(1)
			}
			log.Printf("op=tile_fetch key=%s store_write_err=%v", url, err)
		}
	}

	return TileResponse{Data: data, ContentType: contentType(data)}, nil
}

// Stats reports the stored totals and the counters since start.
func (c *TileCache) Stats(ctx context.Context) (TileCacheStats, error) {
	infos, err := c.store.List(ctx)
	if err != nil {
		return TileCacheStats{}, fmt.Errorf("tile cache stats: %w", err)
	}

	var total int64
	for _, info := range infos {
		total += info.Size
	}

	return TileCacheStats{
		Entries:    len(infos),
		TotalBytes: total,
		MaxBytes:   c.maxBytes,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
		Errors:     c.storeErrors.Load(),
	}, nil
}

func contentType(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return defaultTileContentType
	}
	return kind.MIME.Value
}
