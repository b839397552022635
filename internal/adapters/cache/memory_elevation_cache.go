package cache

import (
	"context"
	"sync"
)

// MemoryElevationCache memoizes elevation answers for the process lifetime.
type MemoryElevationCache struct {
	mu sync.RWMutex
	m  map[string]*float64
}

func NewMemoryElevationCache() *MemoryElevationCache {
	return &MemoryElevationCache{m: map[string]*float64{}}
}

func (c *MemoryElevationCache) Get(_ context.Context, key string) (*float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.m[key]
	if !ok || v == nil {
		return nil, ok, nil
	}
	e := *v
	return &e, true, nil
}

func (c *MemoryElevationCache) Put(_ context.Context, key string, elevation *float64) error {
	var stored *float64
	if elevation != nil {
		e := *elevation
		stored = &e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = stored
	return nil
}

func (c *MemoryElevationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
