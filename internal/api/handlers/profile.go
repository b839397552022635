package handlers

import (
	"errors"
	"log"
	"net/http"
	"route-profile-service/internal/services"
	"strconv"
)

type ProfileHandler struct {
	Tracker *services.RouteTracker
	Chart   *services.ProfileChart
}

// PNG renders the elevation profile of the committed route.
func (h *ProfileHandler) PNG(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	series := services.BuildProfileSeries(h.Tracker.Snapshot())
	img, err := h.Chart.RenderPNG(series)
	switch {
	case errors.Is(err, services.ErrNotEnoughPoints), errors.Is(err, services.ErrSeriesMismatch):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		log.Printf("profile render failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}
