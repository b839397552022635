package handlers

import (
	"log"
	"net/http"
	"route-profile-service/internal/api/dto"
	"route-profile-service/internal/domain"
	"route-profile-service/internal/services"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type RouteHandler struct {
	Tracker    *services.RouteTracker
	Dispatcher *services.ClickDispatcher
}

// Route serves GET (current route) and DELETE (clear) on /route.
func (h *RouteHandler) Route(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, http.MethodDelete) {
		return
	}

	if r.Method == http.MethodDelete {
		h.Tracker.Clear()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, r, http.StatusOK, h.routeResponse())
}

func (h *RouteHandler) routeResponse() dto.RouteResponse {
	v := h.Tracker.View()
	return dto.RouteResponse{
		SnapshotResponse:    dto.FromSnapshot(v.Snapshot),
		Overlay:             dto.FromOverlay(v.Overlay),
		TotalDistanceMeters: v.TotalDistance,
		TotalDistance:       v.TotalDistanceFormatted,
		Recording:           h.Dispatcher.Active(),
	}
}

// AddWaypoint appends a waypoint without going through click recording.
func (h *RouteHandler) AddWaypoint(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	wp, ok := decodeWaypoint(w, r)
	if !ok {
		return
	}

	idx := h.Tracker.AddWaypoint(wp.Lat, wp.Lng)
	writeJSON(w, r, http.StatusCreated, dto.AddWaypointResponse{Index: idx})
}

func (h *RouteHandler) RemoveLast(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodDelete) {
		return
	}

	h.Tracker.RemoveLastWaypoint()
	w.WriteHeader(http.StatusNoContent)
}

// Recording toggles whether map clicks add waypoints.
func (h *RouteHandler) Recording(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPut) {
		return
	}

	var req dto.RecordingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		writeError(w, r, http.StatusBadRequest, "active is required")
		return
	}

	if *req.Active {
		h.Dispatcher.Activate(func(lat, lng float64) {
			h.Tracker.AddWaypoint(lat, lng)
		})
	} else {
		h.Dispatcher.Deactivate()
	}

	writeJSON(w, r, http.StatusOK, dto.RecordingResponse{Active: h.Dispatcher.Active()})
}

// Click forwards a map click to the active handler.
func (h *RouteHandler) Click(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	wp, ok := decodeWaypoint(w, r)
	if !ok {
		return
	}

	if !h.Dispatcher.Dispatch(wp.Lat, wp.Lng) {
		writeError(w, r, http.StatusConflict, services.ErrNotRecording.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// GeoJSON exports the route as a FeatureCollection: one Point per waypoint
// and a LineString over all of them when there are at least two.
func (h *RouteHandler) GeoJSON(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	v := h.Tracker.View()
	snap, ov := v.Snapshot, v.Overlay

	fc := geojson.NewFeatureCollection()
	for i, m := range ov.Markers {
		f := geojson.NewFeature(m.Waypoint.Point())
		f.Properties["index"] = i
		f.Properties["label"] = m.Label
		f.Properties["cumulative_distance_m"] = v.Distances[i]
		if i < snap.Len() && snap.Elevations[i] != nil {
			f.Properties["elevation_m"] = *snap.Elevations[i]
		}
		fc.Append(f)
	}

	if len(ov.Polyline) >= 2 {
		ls := make(orb.LineString, 0, len(ov.Polyline))
		for _, wp := range ov.Polyline {
			ls = append(ls, wp.Point())
		}
		f := geojson.NewFeature(ls)
		f.Properties["total_distance_m"] = v.TotalDistance
		f.Properties["total_distance"] = v.TotalDistanceFormatted
		fc.Append(f)
	}

	b, err := fc.MarshalJSON()
	if err != nil {
		log.Printf("geojson encode failed: err=%v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func decodeWaypoint(w http.ResponseWriter, r *http.Request) (domain.Waypoint, bool) {
	var req dto.WaypointRequest
	if !decodeJSON(w, r, &req) {
		return domain.Waypoint{}, false
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, r, http.StatusBadRequest, "lat and lng are required")
		return domain.Waypoint{}, false
	}

	wp := domain.Waypoint{Lat: *req.Lat, Lng: *req.Lng}
	if err := wp.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return domain.Waypoint{}, false
	}
	return wp, true
}
