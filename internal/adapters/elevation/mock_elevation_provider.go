package elevation

import (
	"context"
	"fmt"
	"sync"
)

type MockPoint struct {
	Lat, Lng  float64
	Elevation *float64
	Err       error
}

// MockElevationProvider answers from a fixed table and counts calls.
// Gate, when set for a key, blocks that lookup until the channel is closed.
type MockElevationProvider struct {
	mu    sync.Mutex
	m     map[string]MockPoint
	gates map[string]chan struct{}
	calls map[string]int
}

func NewMockElevationProvider(points []MockPoint) *MockElevationProvider {
	m := make(map[string]MockPoint, len(points))
	for _, p := range points {
		m[mockKey(p.Lat, p.Lng)] = p
	}
	return &MockElevationProvider{
		m:     m,
		gates: map[string]chan struct{}{},
		calls: map[string]int{},
	}
}

func mockKey(lat, lng float64) string { return fmt.Sprintf("%v|%v", lat, lng) }

// Gate makes lookups for (lat,lng) wait until the returned func is called.
func (p *MockElevationProvider) Gate(lat, lng float64) (release func()) {
	ch := make(chan struct{})
	p.mu.Lock()
	p.gates[mockKey(lat, lng)] = ch
	p.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (p *MockElevationProvider) Lookup(ctx context.Context, lat, lng float64) (*float64, error) {
	key := mockKey(lat, lng)

	p.mu.Lock()
	p.calls[key]++
	gate := p.gates[key]
	point, ok := p.m[key]
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if !ok {
		return nil, fmt.Errorf("missing point %v,%v", lat, lng)
	}
	return point.Elevation, point.Err
}

// Calls returns how many lookups were made for (lat,lng).
func (p *MockElevationProvider) Calls(lat, lng float64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[mockKey(lat, lng)]
}

// TotalCalls returns the number of lookups across all coordinates.
func (p *MockElevationProvider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}
