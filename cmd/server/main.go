package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"route-profile-service/internal/adapters/cache"
	"route-profile-service/internal/adapters/chart"
	"route-profile-service/internal/adapters/elevation"
	"route-profile-service/internal/adapters/shell"
	"route-profile-service/internal/adapters/tiles"
	"route-profile-service/internal/api"
	"route-profile-service/internal/api/handlers"
	"route-profile-service/internal/config"
	"route-profile-service/internal/ports"
	"route-profile-service/internal/services"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

// main is the application composition root.
// It wires concrete adapters behind ports and starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Tiles.Driver == "sqlite" && cfg.Tiles.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Tiles.DSN), 0o755); err != nil {
			log.Fatalf("create tile cache dir: %v", err)
		}
	}

	store, db, err := cache.OpenTileStore(cfg.Tiles.Driver, cfg.Tiles.DSN)
	if err != nil {
		log.Fatal(err)
	}
	if db != nil {
		defer db.Close()
	}

	fetcher := tiles.NewHTTPTileFetcher(&http.Client{Timeout: cfg.Tiles.Timeout.Duration}, cfg.Tiles.UserAgent)
	layers := make(map[string]tiles.URLTemplate, len(cfg.Tiles.Layers))
	for name, tmpl := range cfg.Tiles.Layers {
		layers[name] = tiles.URLTemplate(tmpl)
	}
	tileCache, err := services.NewTileCache(
		store,
		fetcher,
		tiles.URLTemplate(cfg.Tiles.URLTemplate),
		cfg.Tiles.MaxBytes,
		services.WithLayers(layers),
	)
	if err != nil {
		log.Fatal(err)
	}

	elevationCache, closeCache, err := openElevationCache(cfg.Elevation)
	if err != nil {
		log.Fatal(err)
	}
	defer closeCache()

	provider, err := elevation.NewOpenElevationProvider(
		cfg.Elevation.BaseURL,
		cfg.Elevation.Timeout.Duration,
		elevation.WithUserAgent(cfg.Tiles.UserAgent),
	)
	if err != nil {
		log.Fatal(err)
	}
	elevations, err := services.NewElevationService(provider, elevationCache)
	if err != nil {
		log.Fatal(err)
	}

	hub := handlers.NewRouteHub()
	tracker, err := services.NewRouteTracker(elevations, hub.Publish)
	if err != nil {
		log.Fatal(err)
	}
	defer tracker.Close()

	renderer, err := chart.NewPNGRenderer(cfg.Chart.Width, cfg.Chart.Height)
	if err != nil {
		log.Fatal(err)
	}
	profile, err := services.NewProfileChart(renderer)
	if err != nil {
		log.Fatal(err)
	}
	defer profile.Close()

	windowShell := shell.NewSignalShell(16)
	go drainShell(windowShell)

	router := api.NewRouter(api.Deps{
		Tracker:    tracker,
		Dispatcher: services.NewClickDispatcher(),
		Chart:      profile,
		Tiles:      tileCache,
		Hub:        hub,
		Shell:      windowShell,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Server listening addr=:%s tile_store=%s elevation_cache=%s", cfg.Port, cfg.Tiles.Driver, cfg.Elevation.Cache)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func openElevationCache(cfg config.Elevation) (ports.ElevationCache, func(), error) {
	if cfg.Cache != "redis" {
		return cache.NewMemoryElevationCache(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	return cache.NewRedisElevationCache(client, 0), func() { client.Close() }, nil
}

// drainShell stands in for a desktop host when the server runs headless.
func drainShell(s *shell.SignalShell) {
	for sig := range s.Signals() {
		log.Printf("op=shell_signal kind=%s url=%s", sig.Kind, sig.URL)
	}
}
