package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"route-profile-service/internal/domain"
	"strconv"
	"sync"

	"github.com/paulmach/orb/geo"
)

var ErrIndexOutOfRange = errors.New("route: index out of range")

// ElevationSource resolves a coordinate to an elevation, or nil when unknown.
// ElevationService satisfies it.
type ElevationSource interface {
	Elevation(ctx context.Context, lat, lng float64) *float64
}

type slot struct {
	id        uint64
	waypoint  domain.Waypoint
	cum       float64
	elevation *float64
	settled   bool
	cancel    context.CancelFunc
}

// RouteTracker holds the ordered waypoints of the route being drawn.
//
// Waypoints, their cumulative distances and the overlay update synchronously.
// Elevations arrive asynchronously and are written back into the slot that
// requested them; a result whose slot was removed or replaced is dropped.
type RouteTracker struct {
	elevations ElevationSource
	onCommit   func(domain.RouteSnapshot)

	mu     sync.Mutex
	slots  []slot
	nextID uint64

	inflight int
	idle     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	notifyMu sync.Mutex
}

// NewRouteTracker builds an empty tracker. onCommit may be nil; when set it
// is called with the committed snapshot after every change to it.
func NewRouteTracker(elevations ElevationSource, onCommit func(domain.RouteSnapshot)) (*RouteTracker, error) {
	if elevations == nil {
		return nil, errors.New("new route tracker: elevation source is nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	return &RouteTracker{
		elevations: elevations,
		onCommit:   onCommit,
		idle:       idle,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// AddWaypoint appends a waypoint and starts its elevation lookup.
// It returns the waypoint's index.
func (t *RouteTracker) AddWaypoint(lat, lng float64) int {
	wp := domain.Waypoint{Lat: lat, Lng: lng}

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	idx := len(t.slots)

	cum := 0.0
	if idx > 0 {
		prev := t.slots[idx-1]
		cum = prev.cum + geo.Distance(prev.waypoint.Point(), wp.Point())
	}

	ctx, cancel := context.WithCancel(t.ctx)
	t.slots = append(t.slots, slot{id: id, waypoint: wp, cum: cum, cancel: cancel})

	if t.inflight == 0 {
		t.idle = make(chan struct{})
	}
	t.inflight++
	t.wg.Add(1)
	t.mu.Unlock()

	go t.lookup(ctx, idx, id, wp)

	return idx
}

func (t *RouteTracker) lookup(ctx context.Context, idx int, id uint64, wp domain.Waypoint) {
	defer t.wg.Done()
	defer t.done()

	elev := t.elevations.Elevation(ctx, wp.Lat, wp.Lng)

	t.mu.Lock()
	if idx >= len(t.slots) || t.slots[idx].id != id {
		t.mu.Unlock()
		log.Printf("op=route_lookup index=%d id=%d stale=true", idx, id)
		return
	}

	before := t.committedLen()
	s := &t.slots[idx]
	s.elevation = elev
	s.settled = true
	s.cancel()
	s.cancel = nil
	changed := t.committedLen() != before
	t.mu.Unlock()

	if changed {
		t.notify()
	}
}

func (t *RouteTracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.inflight--
	if t.inflight == 0 {
		close(t.idle)
	}
}

// RemoveLastWaypoint pops the last waypoint, cancelling its lookup if still
// running. It does nothing on an empty route.
func (t *RouteTracker) RemoveLastWaypoint() {
	t.mu.Lock()
	if len(t.slots) == 0 {
		t.mu.Unlock()
		return
	}

	before := t.committedLen()
	last := t.slots[len(t.slots)-1]
	if last.cancel != nil {
		last.cancel()
	}
	t.slots = t.slots[:len(t.slots)-1]
	changed := t.committedLen() != before
	t.mu.Unlock()

	if changed {
		t.notify()
	}
}

// Clear removes every waypoint and cancels all pending lookups.
func (t *RouteTracker) Clear() {
	t.mu.Lock()
	before := t.committedLen()
	for _, s := range t.slots {
		if s.cancel != nil {
			s.cancel()
		}
	}
	t.slots = nil
	t.mu.Unlock()

	if before > 0 {
		t.notify()
	}
}

// CumulativeDistance returns the distance in meters from the first waypoint
// to the waypoint at index along the route.
func (t *RouteTracker) CumulativeDistance(index int) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.slots) {
		return 0, fmt.Errorf("cumulative distance: index %d of %d: %w", index, len(t.slots), ErrIndexOutOfRange)
	}
	return t.slots[index].cum, nil
}

// TotalDistance returns the route length in meters over every waypoint.
func (t *RouteTracker) TotalDistance() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.slots) == 0 {
		return 0
	}
	return t.slots[len(t.slots)-1].cum
}

// TotalDistanceFormatted renders the route length as "<km>,<meters> km".
func (t *RouteTracker) TotalDistanceFormatted() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.formattedLocked()
}

// caller holds t.mu
func (t *RouteTracker) formattedLocked() string {
	n := len(t.slots)
	if n < 2 {
		return "0,0 km"
	}
	return FormatDistance(t.slots[n-1].cum)
}

// FormatDistance renders meters as "<km>,<m> km" where <m> is the last three
// digits of the whole meter count as written, so 1005 gives "1,005 km" and
// 42 gives "0,42 km".
func FormatDistance(meters float64) string {
	whole := int64(math.Floor(meters))

	m := "0"
	if whole > 1 {
		s := strconv.FormatInt(whole, 10)
		if len(s) > 3 {
			s = s[len(s)-3:]
		}
		m = s
	}

	km := int64(0)
	if whole > 999 {
		km = whole / 1000
	}

	return strconv.FormatInt(km, 10) + "," + m + " km"
}

// Snapshot returns the committed view: the longest prefix of waypoints whose
// elevation lookup has settled.
func (t *RouteTracker) Snapshot() domain.RouteSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Overlay returns the markers and polyline for every waypoint, settled or not.
func (t *RouteTracker) Overlay() domain.Overlay {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.overlayLocked()
}

// View reads the snapshot, overlay and totals in one critical section so
// they describe the same route.
func (t *RouteTracker) View() domain.RouteView {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := domain.RouteView{
		Snapshot:               t.snapshotLocked(),
		Overlay:                t.overlayLocked(),
		Distances:              make([]float64, len(t.slots)),
		TotalDistanceFormatted: t.formattedLocked(),
	}
	for i, s := range t.slots {
		v.Distances[i] = s.cum
	}
	if n := len(t.slots); n > 0 {
		v.TotalDistance = t.slots[n-1].cum
	}
	return v
}

// caller holds t.mu
func (t *RouteTracker) snapshotLocked() domain.RouteSnapshot {
	n := t.committedLen()
	snap := domain.RouteSnapshot{
		Waypoints:           make([]domain.Waypoint, n),
		Elevations:          make([]*float64, n),
		CumulativeDistances: make([]float64, n),
		Pending:             len(t.slots) - n,
	}
	for i := 0; i < n; i++ {
		s := t.slots[i]
		snap.Waypoints[i] = s.waypoint
		snap.Elevations[i] = copyElevation(s.elevation)
		snap.CumulativeDistances[i] = s.cum
	}
	return snap
}

// caller holds t.mu
func (t *RouteTracker) overlayLocked() domain.Overlay {
	var ov domain.Overlay
	ov.Markers = make([]domain.Marker, len(t.slots))
	for i, s := range t.slots {
		ov.Markers[i] = domain.Marker{
			Waypoint: s.waypoint,
			Label:    "Waypoint #" + strconv.Itoa(i+1),
		}
	}
	if len(t.slots) >= 2 {
		ov.Polyline = make([]domain.Waypoint, len(t.slots))
		for i, s := range t.slots {
			ov.Polyline[i] = s.waypoint
		}
	}
	return ov
}

// WaitIdle blocks until no elevation lookup is running or ctx ends.
func (t *RouteTracker) WaitIdle(ctx context.Context) error {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels all lookups and waits for them to return.
func (t *RouteTracker) Close() {
	t.cancel()
	t.wg.Wait()
}

// caller holds t.mu
func (t *RouteTracker) committedLen() int {
	for i, s := range t.slots {
		if !s.settled {
			return i
		}
	}
	return len(t.slots)
}

func (t *RouteTracker) notify() {
	if t.onCommit == nil {
		return
	}

	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()
	t.onCommit(t.Snapshot())
}
