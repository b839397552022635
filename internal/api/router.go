package api

import (
	"net/http"
	"route-profile-service/internal/api/handlers"
	"route-profile-service/internal/ports"
	"route-profile-service/internal/services"
)

// Deps are the components the HTTP layer serves. Each is constructed once by
// the composition root.
type Deps struct {
	Tracker    *services.RouteTracker
	Dispatcher *services.ClickDispatcher
	Chart      *services.ProfileChart
	Tiles      *services.TileCache
	Hub        *handlers.RouteHub
	Shell      ports.WindowShell
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	routeHandler := &handlers.RouteHandler{Tracker: d.Tracker, Dispatcher: d.Dispatcher}
	profileHandler := &handlers.ProfileHandler{Tracker: d.Tracker, Chart: d.Chart}
	tileHandler := &handlers.TileHandler{Cache: d.Tiles}
	shellHandler := &handlers.ShellHandler{Shell: d.Shell}

	mux.HandleFunc("/health", handlers.Health)

	mux.HandleFunc("/map/click", routeHandler.Click)
	mux.HandleFunc("/route", routeHandler.Route)
	mux.HandleFunc("/route.geojson", routeHandler.GeoJSON)
	mux.HandleFunc("/route/recording", routeHandler.Recording)
	mux.HandleFunc("/route/waypoints", routeHandler.AddWaypoint)
	mux.HandleFunc("/route/waypoints/last", routeHandler.RemoveLast)
	mux.Handle("/route/stream", d.Hub)

	mux.HandleFunc("/profile.png", profileHandler.PNG)

	mux.HandleFunc("/tiles/stats", tileHandler.Stats)
	mux.HandleFunc("/tiles/layers", tileHandler.Layers)
	mux.HandleFunc("/tiles/{z}/{x}/{y}", tileHandler.Tile)
	mux.HandleFunc("/tiles/{layer}/{z}/{x}/{y}", tileHandler.LayerTile)

	mux.HandleFunc("/shell/minimize", shellHandler.Minimize)
	mux.HandleFunc("/shell/maximize", shellHandler.Maximize)
	mux.HandleFunc("/shell/open", shellHandler.Open)

	return loggingMiddleware(mux)
}
