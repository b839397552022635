package handlers

import (
	"errors"
	"log"
	"net/http"
	"route-profile-service/internal/adapters/tiles"
	"route-profile-service/internal/services"
	"strconv"
	"strings"
)

type TileHandler struct {
	Cache *services.TileCache
}

// Tile proxies GET /tiles/{z}/{x}/{y} from the default layer, with an
// optional ".png" suffix on y.
func (h *TileHandler) Tile(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	h.serveTile(w, r, services.DefaultLayer)
}

// LayerTile proxies GET /tiles/{layer}/{z}/{x}/{y}.
func (h *TileHandler) LayerTile(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	h.serveTile(w, r, r.PathValue("layer"))
}

func (h *TileHandler) Layers(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, r, http.StatusOK, map[string][]string{"layers": h.Cache.Layers()})
}

func (h *TileHandler) serveTile(w http.ResponseWriter, r *http.Request, layer string) {
	z, errZ := strconv.Atoi(r.PathValue("z"))
	x, errX := strconv.Atoi(r.PathValue("x"))
	y, errY := strconv.Atoi(strings.TrimSuffix(r.PathValue("y"), ".png"))
	if errZ != nil || errX != nil || errY != nil {
		writeError(w, r, http.StatusBadRequest, "tile coordinates must be integers")
		return
	}

	if _, err := tiles.NewTile(z, x, y); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Cache.FetchLayer(r.Context(), layer, z, x, y)
	if errors.Is(err, services.ErrUnknownLayer) {
		writeError(w, r, http.StatusNotFound, "unknown tile layer")
		return
	}
	if err != nil {
		log.Printf("tile fetch failed: layer=%s z=%d x=%d y=%d err=%v", layer, z, x, y, err)
		writeError(w, r, http.StatusBadGateway, "tile download failed")
		return
	}

	cache := "MISS"
	if res.Cached {
		cache = "HIT"
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-Tile-Cache", cache)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (h *TileHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.Cache.Stats(r.Context())
	if err != nil {
		log.Printf("tile stats failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}
