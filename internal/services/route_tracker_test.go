package services

import (
	"context"
	"errors"
	"route-profile-service/internal/adapters/elevation"
	"route-profile-service/internal/domain"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouteTracker(t *testing.T, points []elevation.MockPoint, onCommit func(domain.RouteSnapshot)) (*RouteTracker, *elevation.MockElevationProvider) {
	t.Helper()

	svc, provider := newElevationService(t, points)
	tr, err := NewRouteTracker(svc, onCommit)
	require.NoError(t, err)
	t.Cleanup(tr.Close)
	return tr, provider
}

func equatorPoints(n int) []elevation.MockPoint {
	points := make([]elevation.MockPoint, n)
	for i := range points {
		points[i] = elevation.MockPoint{Lat: 0, Lng: float64(i), Elevation: ptr(float64(100 * (i + 1)))}
	}
	return points
}

func TestRouteTrackerAddThenRemoveLeavesEmpty(t *testing.T) {
	points := equatorPoints(4)
	tr, _ := newRouteTracker(t, points, nil)

	for i, p := range points {
		assert.Equal(t, i, tr.AddWaypoint(p.Lat, p.Lng))
	}
	for range points {
		tr.RemoveLastWaypoint()
	}
	tr.RemoveLastWaypoint()

	waitIdle(t, tr)
	snap := tr.Snapshot()
	assert.Zero(t, snap.Len())
	assert.Empty(t, snap.Elevations)
	assert.Empty(t, snap.CumulativeDistances)
	assert.Zero(t, snap.Pending)
	assert.Empty(t, tr.Overlay().Markers)
	assert.Nil(t, tr.Overlay().Polyline)
	assert.Equal(t, "0,0 km", tr.TotalDistanceFormatted())
}

func TestRouteTrackerCumulativeDistances(t *testing.T) {
	points := equatorPoints(4)
	tr, _ := newRouteTracker(t, points, nil)

	for _, p := range points {
		tr.AddWaypoint(p.Lat, p.Lng)
	}
	waitIdle(t, tr)

	snap := tr.Snapshot()
	require.Equal(t, 4, snap.Len())
	require.Len(t, snap.Elevations, 4)
	require.Len(t, snap.CumulativeDistances, 4)
	assert.Equal(t, 0.0, snap.CumulativeDistances[0])

	// one degree of longitude on the equator of a 6378137 m sphere
	const degree = 111319.49
	for i := 1; i < snap.Len(); i++ {
		assert.GreaterOrEqual(t, snap.CumulativeDistances[i], snap.CumulativeDistances[i-1])
		assert.InDelta(t, float64(i)*degree, snap.CumulativeDistances[i], 1)
	}

	d, err := tr.CumulativeDistance(2)
	require.NoError(t, err)
	assert.Equal(t, snap.CumulativeDistances[2], d)
	assert.Equal(t, snap.CumulativeDistances[3], tr.TotalDistance())
	assert.Equal(t, "333,958 km", tr.TotalDistanceFormatted())

	for i, e := range snap.Elevations {
		require.NotNil(t, e)
		assert.Equal(t, float64(100*(i+1)), *e)
	}
}

func TestRouteTrackerIdenticalPointsShareLookup(t *testing.T) {
	tr, provider := newRouteTracker(t, []elevation.MockPoint{{Lat: 0, Lng: 0, Elevation: ptr(7)}}, nil)

	tr.AddWaypoint(0, 0)
	waitIdle(t, tr)
	before, err := tr.CumulativeDistance(0)
	require.NoError(t, err)

	tr.AddWaypoint(0, 0)
	waitIdle(t, tr)

	after, err := tr.CumulativeDistance(1)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, provider.Calls(0, 0))

	snap := tr.Snapshot()
	require.Equal(t, 2, snap.Len())
	assert.Equal(t, 7.0, *snap.Elevations[1])
	assert.Equal(t, "0,0 km", tr.TotalDistanceFormatted())
}

func TestRouteTrackerOutOfOrderCompletion(t *testing.T) {
	points := equatorPoints(4)
	tr, provider := newRouteTracker(t, points, nil)

	release2 := provider.Gate(0, 2)
	release3 := provider.Gate(0, 3)
	defer release2()
	defer release3()

	for _, p := range points {
		tr.AddWaypoint(p.Lat, p.Lng)
	}

	require.Eventually(t, func() bool { return tr.Snapshot().Len() == 2 }, time.Second, 5*time.Millisecond)
	snap := tr.Snapshot()
	assert.Equal(t, 2, snap.Pending)
	assert.Len(t, snap.Elevations, 2)
	assert.Len(t, tr.Overlay().Markers, 4)

	release3()
	require.Eventually(t, func() bool { return provider.Calls(0, 3) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, tr.Snapshot().Len(), "index 3 settles behind an unsettled index 2")

	release2()
	waitIdle(t, tr)

	snap = tr.Snapshot()
	require.Equal(t, 4, snap.Len())
	assert.Equal(t, 300.0, *snap.Elevations[2])
	assert.Equal(t, 400.0, *snap.Elevations[3])
	assert.Zero(t, snap.Pending)
}

func TestRouteTrackerDiscardsStaleResultAfterClear(t *testing.T) {
	tr, provider := newRouteTracker(t, []elevation.MockPoint{
		{Lat: 10, Lng: 10, Elevation: ptr(999)},
		{Lat: 20, Lng: 20, Elevation: ptr(1)},
	}, nil)

	release := provider.Gate(10, 10)
	defer release()

	tr.AddWaypoint(10, 10)
	tr.Clear()
	tr.AddWaypoint(20, 20)
	release()
	waitIdle(t, tr)

	snap := tr.Snapshot()
	require.Equal(t, 1, snap.Len())
	assert.Equal(t, domain.Waypoint{Lat: 20, Lng: 20}, snap.Waypoints[0])
	require.NotNil(t, snap.Elevations[0])
	assert.Equal(t, 1.0, *snap.Elevations[0])
}

func TestRouteTrackerFailedLookupSettlesAsNull(t *testing.T) {
	tr, _ := newRouteTracker(t, []elevation.MockPoint{
		{Lat: 1, Lng: 1, Elevation: ptr(5)},
		{Lat: 1, Lng: 2, Err: errors.New("timeout")},
	}, nil)

	tr.AddWaypoint(1, 1)
	tr.AddWaypoint(1, 2)
	waitIdle(t, tr)

	snap := tr.Snapshot()
	require.Equal(t, 2, snap.Len())
	assert.NotNil(t, snap.Elevations[0])
	assert.Nil(t, snap.Elevations[1])
}

func TestRouteTrackerCumulativeDistanceOutOfRange(t *testing.T) {
	tr, _ := newRouteTracker(t, equatorPoints(1), nil)
	tr.AddWaypoint(0, 0)

	for _, idx := range []int{-1, 1, 5} {
		_, err := tr.CumulativeDistance(idx)
		assert.True(t, errors.Is(err, ErrIndexOutOfRange), "index %d", idx)
	}
}

func TestRouteTrackerOverlay(t *testing.T) {
	tr, provider := newRouteTracker(t, equatorPoints(2), nil)
	release := provider.Gate(0, 1)
	defer release()

	tr.AddWaypoint(0, 0)
	ov := tr.Overlay()
	require.Len(t, ov.Markers, 1)
	assert.Equal(t, "Waypoint #1", ov.Markers[0].Label)
	assert.Nil(t, ov.Polyline)

	tr.AddWaypoint(0, 1)
	ov = tr.Overlay()
	require.Len(t, ov.Markers, 2)
	assert.Equal(t, "Waypoint #2", ov.Markers[1].Label)
	assert.Equal(t, []domain.Waypoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}}, ov.Polyline)
}

func TestRouteTrackerNotifiesCommits(t *testing.T) {
	var (
		mu    sync.Mutex
		sizes []int
	)
	tr, _ := newRouteTracker(t, equatorPoints(3), func(s domain.RouteSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, len(s.Waypoints), len(s.Elevations))
		assert.Equal(t, len(s.Waypoints), len(s.CumulativeDistances))
		sizes = append(sizes, s.Len())
	})

	for i := 0; i < 3; i++ {
		tr.AddWaypoint(0, float64(i))
	}
	waitIdle(t, tr)
	tr.Clear()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, sizes)
	assert.Equal(t, 0, sizes[len(sizes)-1])
	assert.Contains(t, sizes, 3)
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		meters float64
		want   string
	}{
		{1500, "1,500 km"},
		{1005, "1,005 km"},
		{42, "0,42 km"},
		{42.9, "0,42 km"},
		{999.99, "0,999 km"},
		{2000, "2,000 km"},
		{12345.6, "12,345 km"},
		{1.5, "0,0 km"},
		{0, "0,0 km"},
	}

	for _, tt := range tests {
		if got := FormatDistance(tt.meters); got != tt.want {
			t.Fatalf("FormatDistance(%v): expected %q, got %q", tt.meters, tt.want, got)
		}
	}
}

func TestRouteTrackerReAddAfterClearGetsElevation(t *testing.T) {
	tr, provider := newRouteTracker(t, []elevation.MockPoint{{Lat: 1, Lng: 1, Elevation: ptr(42)}}, nil)

	release := provider.Gate(1, 1)
	defer release()

	tr.AddWaypoint(1, 1)
	require.Eventually(t, func() bool { return provider.Calls(1, 1) == 1 }, time.Second, 5*time.Millisecond)
	tr.Clear()
	tr.AddWaypoint(1, 1)
	release()
	waitIdle(t, tr)

	snap := tr.Snapshot()
	require.Equal(t, 1, snap.Len())
	require.NotNil(t, snap.Elevations[0], "re-added waypoint must not inherit the cancelled lookup")
	assert.Equal(t, 42.0, *snap.Elevations[0])
	assert.Equal(t, 1, provider.Calls(1, 1))
}

// blockingSource ignores ctx so late results reach the tracker.
type blockingSource struct {
	mu    sync.Mutex
	gates map[domain.Waypoint]chan struct{}
	elev  map[domain.Waypoint]float64
}

func (s *blockingSource) Elevation(_ context.Context, lat, lng float64) *float64 {
	wp := domain.Waypoint{Lat: lat, Lng: lng}
	s.mu.Lock()
	gate := s.gates[wp]
	v, ok := s.elev[wp]
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return nil
	}
	return &v
}

func TestRouteTrackerDiscardsStaleResultAfterRemoveLast(t *testing.T) {
	old := domain.Waypoint{Lat: 0, Lng: 1}
	gate := make(chan struct{})
	src := &blockingSource{
		gates: map[domain.Waypoint]chan struct{}{old: gate},
		elev: map[domain.Waypoint]float64{
			{Lat: 0, Lng: 0}: 10,
			old:              999,
			{Lat: 0, Lng: 2}: 30,
		},
	}
	tr, err := NewRouteTracker(src, nil)
	require.NoError(t, err)

	tr.AddWaypoint(0, 0)
	tr.AddWaypoint(old.Lat, old.Lng)
	tr.RemoveLastWaypoint()
	assert.Equal(t, 1, tr.AddWaypoint(0, 2))

	require.Eventually(t, func() bool { return tr.Snapshot().Len() == 2 }, time.Second, 5*time.Millisecond)

	close(gate)
	waitIdle(t, tr)
	tr.Close()

	snap := tr.Snapshot()
	require.Equal(t, 2, snap.Len())
	assert.Equal(t, domain.Waypoint{Lat: 0, Lng: 2}, snap.Waypoints[1])
	require.NotNil(t, snap.Elevations[1])
	assert.Equal(t, 30.0, *snap.Elevations[1])
}

func TestRouteTrackerViewIsConsistent(t *testing.T) {
	points := equatorPoints(3)
	tr, provider := newRouteTracker(t, points, nil)
	release := provider.Gate(0, 2)
	defer release()

	for _, p := range points {
		tr.AddWaypoint(p.Lat, p.Lng)
	}
	require.Eventually(t, func() bool { return tr.Snapshot().Len() == 2 }, time.Second, 5*time.Millisecond)

	v := tr.View()
	assert.Equal(t, 2, v.Snapshot.Len())
	assert.Equal(t, 1, v.Snapshot.Pending)
	assert.Len(t, v.Overlay.Markers, 3)
	require.Len(t, v.Distances, 3)
	assert.Equal(t, v.Distances[2], v.TotalDistance)
	assert.Equal(t, FormatDistance(v.TotalDistance), v.TotalDistanceFormatted)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				tr.AddWaypoint(0, 0)
				tr.RemoveLastWaypoint()
			}
		}
	}()

	for i := 0; i < 200; i++ {
		v := tr.View()
		require.Len(t, v.Distances, len(v.Overlay.Markers))
		require.Equal(t, v.Distances[len(v.Distances)-1], v.TotalDistance)
		require.Equal(t, FormatDistance(v.TotalDistance), v.TotalDistanceFormatted)
		require.LessOrEqual(t, v.Snapshot.Len(), len(v.Overlay.Markers))
	}
	close(stop)
	<-done
}
