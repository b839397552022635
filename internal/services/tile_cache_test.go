package services

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"route-profile-service/internal/adapters/cache"
	"route-profile-service/internal/adapters/tiles"
	"route-profile-service/internal/domain"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	data  []byte
	err   error
}

func (f *fakeFetcher) FetchTile(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[url]++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func (f *fakeFetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// failingStore errors on every read and records writes.
type failingStore struct {
	*cache.MemoryTileStore
	puts int
}

func (s *failingStore) Get(context.Context, string) (domain.TileEntry, bool, error) {
	return domain.TileEntry{}, false, errors.New("disk I/O error")
}

func (s *failingStore) Put(ctx context.Context, e domain.TileEntry) error {
	s.puts++
	return s.MemoryTileStore.Put(ctx, e)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTileCache(t *testing.T, maxBytes int64, fetcher *fakeFetcher) (*TileCache, *cache.MemoryTileStore) {
	t.Helper()

	store := cache.NewMemoryTileStore()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	c, err := NewTileCache(store, fetcher, tiles.URLTemplate("https://tile.test/{z}/{x}/{y}.png"), maxBytes, WithClock(clk.now))
	require.NoError(t, err)
	return c, store
}

func TestTileCacheEvictsWholeOldestEntry(t *testing.T) {
	ctx := context.Background()
	c, store := newTileCache(t, 1000, nil)

	require.NoError(t, c.Put(ctx, "tileX", bytes.Repeat([]byte{1}, 600)))
	require.NoError(t, c.Put(ctx, "tileY", bytes.Repeat([]byte{2}, 600)))

	_, found, err := c.Get(ctx, "tileX")
	require.NoError(t, err)
	assert.False(t, found)

	data, found, err := c.Get(ctx, "tileY")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, data, 600)

	total, err := store.TotalSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(600), total)
}

func TestTileCacheEvictsLeastRecentlyAccessed(t *testing.T) {
	ctx := context.Background()
	c, _ := newTileCache(t, 300, nil)

	require.NoError(t, c.Put(ctx, "a", make([]byte, 100)))
	require.NoError(t, c.Put(ctx, "b", make([]byte, 100)))
	require.NoError(t, c.Put(ctx, "c", make([]byte, 100)))

	_, found, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, c.Put(ctx, "d", make([]byte, 150)))

	for key, want := range map[string]bool{"a": true, "b": false, "c": false, "d": true} {
		_, found, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, found, key)
	}

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, int64(250), stats.TotalBytes)
	assert.Equal(t, int64(2), stats.Evictions)
}

func TestTileCacheReplaceDoesNotDoubleCount(t *testing.T) {
	ctx := context.Background()
	c, store := newTileCache(t, 1000, nil)

	require.NoError(t, c.Put(ctx, "a", make([]byte, 400)))
	require.NoError(t, c.Put(ctx, "b", make([]byte, 400)))
	require.NoError(t, c.Put(ctx, "a", make([]byte, 500)))

	_, found, err := c.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, found, "replacing a must not evict b")

	total, err := store.TotalSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(900), total)
}

func TestTileCacheRejectsOversizePayload(t *testing.T) {
	ctx := context.Background()
	c, store := newTileCache(t, 100, nil)

	require.NoError(t, c.Put(ctx, "small", make([]byte, 50)))

	err := c.Put(ctx, "huge", make([]byte, 101))
	assert.True(t, errors.Is(err, ErrEntryTooLarge))

	_, found, err := store.Get(ctx, "small")
	require.NoError(t, err)
	assert.True(t, found, "oversize put must not evict anything")
}

func TestTileCacheEnforce(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryTileStore()
	base := time.Unix(1_700_000_000, 0)
	for i, key := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put(ctx, domain.TileEntry{Key: key, Data: make([]byte, 100), LastAccessedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	c, err := NewTileCache(store, nil, "", 150)
	require.NoError(t, err)

	removed, err := c.Enforce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "c", infos[0].Key)
}

func TestTileCacheFetchMissThenHit(t *testing.T) {
	ctx := context.Background()
	payload := append(append([]byte{}, pngHeader...), make([]byte, 32)...)
	fetcher := &fakeFetcher{data: payload}
	c, _ := newTileCache(t, 1<<20, fetcher)

	res, err := c.Fetch(ctx, 3, 4, 5)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, payload, res.Data)

	res, err = c.Fetch(ctx, 3, 4, 5)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, 1, fetcher.Calls("https://tile.test/3/4/5.png"))
}

func TestTileCacheFetchFailsOpen(t *testing.T) {
	ctx := context.Background()
	payload := []byte("not really an image")
	fetcher := &fakeFetcher{data: payload}
	store := &failingStore{MemoryTileStore: cache.NewMemoryTileStore()}

	c, err := NewTileCache(store, fetcher, "https://tile.test/{z}/{x}/{y}.png", 1<<20)
	require.NoError(t, err)

	res, err := c.Fetch(ctx, 1, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, payload, res.Data)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Zero(t, store.puts, "nothing is stored after a failed read")

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Errors)
}

func TestTileCacheFetchSurfacesDownloadError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection reset")}
	c, _ := newTileCache(t, 1<<20, fetcher)

	_, err := c.Fetch(context.Background(), 1, 1, 1)
	assert.Error(t, err)
}

func TestTileCacheFetchRejectsInvalidTile(t *testing.T) {
	c, _ := newTileCache(t, 1<<20, &fakeFetcher{})

	_, err := c.Fetch(context.Background(), 2, 4, 0)
	assert.Error(t, err)
}

func TestTileCacheStaysWithinBudget(t *testing.T) {
	tests := []struct {
		name     string
		maxBytes int64
		seed     int64
	}{
		{"tight", 100, 1},
		{"medium", 1000, 7},
		{"roomy", 5000, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c, store := newTileCache(t, tt.maxBytes, nil)
			rng := rand.New(rand.NewSource(tt.seed))

			for i := 0; i < 300; i++ {
				key := "tile-" + strconv.Itoa(rng.Intn(20))
				size := rng.Int63n(tt.maxBytes + tt.maxBytes/4)

				err := c.Put(ctx, key, make([]byte, size))
				if size > tt.maxBytes {
					require.ErrorIs(t, err, ErrEntryTooLarge)
				} else {
					require.NoError(t, err)
				}
				if rng.Intn(3) == 0 {
					_, _, err := c.Get(ctx, "tile-"+strconv.Itoa(rng.Intn(20)))
					require.NoError(t, err)
				}

				total, err := store.TotalSize(ctx)
				require.NoError(t, err)
				require.LessOrEqual(t, total, tt.maxBytes, "put #%d key=%s size=%d", i, key, size)
			}
		})
	}
}

func TestTileCacheFetchLayer(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{data: pngHeader}
	c, err := NewTileCache(
		cache.NewMemoryTileStore(),
		fetcher,
		"https://tile.test/{z}/{x}/{y}.png",
		1<<20,
		WithLayers(map[string]tiles.URLTemplate{
			"topo":  "https://topo.test/{z}/{x}/{y}.png",
			"ortho": "https://wms.test/wms?BBOX={bbox}",
		}),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultLayer, "ortho", "topo"}, c.Layers())

	_, err = c.FetchLayer(ctx, "topo", 1, 1, 0)
	require.NoError(t, err)
	_, err = c.Fetch(ctx, 1, 1, 0)
	require.NoError(t, err)
	_, err = c.FetchLayer(ctx, "ortho", 1, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.Calls("https://topo.test/1/1/0.png"))
	assert.Equal(t, 1, fetcher.Calls("https://tile.test/1/1/0.png"))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Entries, "layers do not share cache keys")

	_, err = c.FetchLayer(ctx, "satellite", 1, 1, 0)
	assert.True(t, errors.Is(err, ErrUnknownLayer))
}
