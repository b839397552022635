package dto

import "route-profile-service/internal/domain"

func FromSnapshot(s domain.RouteSnapshot) SnapshotResponse {
	res := SnapshotResponse{
		Waypoints:           make([]WaypointResponse, 0, len(s.Waypoints)),
		Elevations:          make([]*float64, 0, len(s.Elevations)),
		CumulativeDistances: make([]float64, 0, len(s.CumulativeDistances)),
		Pending:             s.Pending,
	}
	for _, w := range s.Waypoints {
		res.Waypoints = append(res.Waypoints, WaypointResponse{Lat: w.Lat, Lng: w.Lng})
	}
	res.Elevations = append(res.Elevations, s.Elevations...)
	res.CumulativeDistances = append(res.CumulativeDistances, s.CumulativeDistances...)
	return res
}

func FromOverlay(o domain.Overlay) OverlayResponse {
	res := OverlayResponse{
		Markers:  make([]MarkerResponse, 0, len(o.Markers)),
		Polyline: make([]WaypointResponse, 0, len(o.Polyline)),
	}
	for _, m := range o.Markers {
		res.Markers = append(res.Markers, MarkerResponse{Lat: m.Waypoint.Lat, Lng: m.Waypoint.Lng, Label: m.Label})
	}
	for _, w := range o.Polyline {
		res.Polyline = append(res.Polyline, WaypointResponse{Lat: w.Lat, Lng: w.Lng})
	}
	return res
}
