package dto

type WaypointRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type RecordingRequest struct {
	Active *bool `json:"active"`
}

type RecordingResponse struct {
	Active bool `json:"active"`
}

type AddWaypointResponse struct {
	Index int `json:"index"`
}

type WaypointResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type MarkerResponse struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label"`
}

type OverlayResponse struct {
	Markers  []MarkerResponse   `json:"markers"`
	Polyline []WaypointResponse `json:"polyline"`
}

// SnapshotResponse is the committed route. The three slices always have the
// same length.
type SnapshotResponse struct {
	Waypoints           []WaypointResponse `json:"waypoints"`
	Elevations          []*float64         `json:"elevations"`
	CumulativeDistances []float64          `json:"cumulative_distances_m"`
	Pending             int                `json:"pending"`
}

type RouteResponse struct {
	SnapshotResponse
	Overlay             OverlayResponse `json:"overlay"`
	TotalDistanceMeters float64         `json:"total_distance_m"`
	TotalDistance       string          `json:"total_distance"`
	Recording           bool            `json:"recording"`
}

// StreamMessage is pushed to websocket subscribers on every commit.
type StreamMessage struct {
	Type     string           `json:"type"`
	Snapshot SnapshotResponse `json:"snapshot"`
}
