package main

import (
	"context"
	"flag"
	"log"
	"route-profile-service/internal/adapters/cache"
	"route-profile-service/internal/config"
	"route-profile-service/internal/services"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"
)

// dbtool maintains the tile cache outside the server: schema creation,
// statistics, and pruning after the byte budget was lowered.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	stats := flag.Bool("stats", false, "print tile cache statistics")
	prune := flag.Bool("prune", false, "evict tiles until the cache fits TILE_CACHE_MAX_BYTES")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Tiles.Driver == "memory" {
		log.Fatal("dbtool needs a persistent tile store (TILE_CACHE_DRIVER=sqlite or postgres)")
	}

	log.Println("Initializing tile cache schema...")
	store, db, err := cache.OpenTileStore(cfg.Tiles.Driver, cfg.Tiles.DSN)
	if err != nil {
		log.Fatalf("schema initialization failed: %v", err)
	}
	defer db.Close()
	log.Println("Schema ready.")

	tileCache, err := services.NewTileCache(store, nil, "", cfg.Tiles.MaxBytes)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	if *prune {
		removed, err := tileCache.Enforce(ctx)
		if err != nil {
			log.Fatalf("prune failed: %v", err)
		}
		log.Printf("Pruned entries=%d", removed)
	}

	if *stats || *prune {
		s, err := tileCache.Stats(ctx)
		if err != nil {
			log.Fatalf("stats failed: %v", err)
		}
		log.Printf("entries=%d total_bytes=%d max_bytes=%d", s.Entries, s.TotalBytes, s.MaxBytes)
	}

	if dsn := config.Get("TILE_CACHE_DSN", ""); dsn == "" {
		log.Printf("dsn=%s (default)", cfg.Tiles.DSN)
	}
}
