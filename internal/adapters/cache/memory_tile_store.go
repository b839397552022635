package cache

import (
	"context"
	"errors"
	"route-profile-service/internal/domain"
	"sort"
	"sync"
	"time"
)

// MemoryTileStore keeps tiles in process memory. Used when persistence is
// disabled and in tests.
type MemoryTileStore struct {
	mu      sync.Mutex
	entries map[string]domain.TileEntry
}

func NewMemoryTileStore() *MemoryTileStore {
	return &MemoryTileStore{entries: map[string]domain.TileEntry{}}
}

func (s *MemoryTileStore) Get(_ context.Context, key string) (domain.TileEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return domain.TileEntry{}, false, nil
	}
	e.Data = append([]byte(nil), e.Data...)
	return e, true, nil
}

func (s *MemoryTileStore) Touch(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.LastAccessedAt = at
		s.entries[key] = e
	}
	return nil
}

func (s *MemoryTileStore) Put(_ context.Context, e domain.TileEntry) error {
	if e.Key == "" {
		return errors.New("insert tile: key must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e.Data = append([]byte(nil), e.Data...)
	e.Size = int64(len(e.Data))
	s.entries[e.Key] = e
	return nil
}

func (s *MemoryTileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryTileStore) List(_ context.Context) ([]domain.TileEntryInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.TileEntryInfo, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, domain.TileEntryInfo{Key: e.Key, Size: e.Size, LastAccessedAt: e.LastAccessedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastAccessedAt.Equal(out[j].LastAccessedAt) {
			return out[i].LastAccessedAt.Before(out[j].LastAccessedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (s *MemoryTileStore) TotalSize(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, e := range s.entries {
		total += e.Size
	}
	return total, nil
}
