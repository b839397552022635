package domain

// Committed view of a route.
// The three sequences always have equal length: only the longest prefix of
// waypoints whose elevation lookup has settled is exposed. Pending counts the
// waypoints beyond that prefix.
type RouteSnapshot struct {
	Waypoints           []Waypoint
	Elevations          []*float64
	CumulativeDistances []float64
	Pending             int
}

// Len returns the number of committed waypoints.
func (s RouteSnapshot) Len() int { return len(s.Waypoints) }

// TotalDistance returns the last committed cumulative distance in meters.
func (s RouteSnapshot) TotalDistance() float64 {
	if len(s.CumulativeDistances) == 0 {
		return 0
	}
	return s.CumulativeDistances[len(s.CumulativeDistances)-1]
}

// A marker drawn on the map for one waypoint.
type Marker struct {
	Waypoint Waypoint
	Label    string
}

// What the map layer draws right away, including waypoints whose elevation
// is still being fetched. Polyline is nil for fewer than two waypoints.
type Overlay struct {
	Markers  []Marker
	Polyline []Waypoint
}

// RouteView is the committed snapshot, the overlay and the route totals read
// together. Distances covers every waypoint in the overlay.
type RouteView struct {
	Snapshot               RouteSnapshot
	Overlay                Overlay
	Distances              []float64
	TotalDistance          float64
	TotalDistanceFormatted string
}
