package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const DefaultTileCacheMaxBytes int64 = 1 << 30

// Config holds the service settings.
// Values come from defaults, then an optional TOML file named by CONFIG_FILE,
// then environment variables.
type Config struct {
	Port      string    `toml:"port"`
	Tiles     Tiles     `toml:"tiles"`
	Elevation Elevation `toml:"elevation"`
	Chart     Chart     `toml:"chart"`
}

type Tiles struct {
	// Driver is one of "sqlite", "postgres" or "memory".
	Driver      string   `toml:"driver"`
	DSN         string   `toml:"dsn"`
	MaxBytes    int64    `toml:"max_bytes"`
	URLTemplate string   `toml:"url_template"`
	UserAgent   string   `toml:"user_agent"`
	Timeout     Duration `toml:"timeout"`

	// Layers are extra named base layers, name -> URL template. A template
	// uses {z}/{x}/{y} or, for WMS servers, {bbox}.
	Layers map[string]string `toml:"layers"`
}

type Elevation struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
	// Cache is "memory" or "redis".
	Cache     string `toml:"cache"`
	RedisAddr string `toml:"redis_addr"`
}

type Chart struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Duration decodes "10s"-style strings from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", string(b), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() Config {
	return Config{
		Port: "8080",
		Tiles: Tiles{
			Driver:      "sqlite",
			DSN:         "data/tiles.db",
			MaxBytes:    DefaultTileCacheMaxBytes,
			URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
			UserAgent:   "route-profile-service/1.0",
			Timeout:     Duration{15 * time.Second},
		},
		Elevation: Elevation{
			BaseURL: "https://api.open-elevation.com",
			Timeout: Duration{10 * time.Second},
			Cache:   "memory",
		},
		Chart: Chart{
			Width:  800,
			Height: 300,
		},
	}
}

// Load builds the effective configuration.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load config: read %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("load config: parse %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = Get("PORT", cfg.Port)
	cfg.Tiles.Driver = Get("TILE_CACHE_DRIVER", cfg.Tiles.Driver)
	cfg.Tiles.DSN = Get("TILE_CACHE_DSN", cfg.Tiles.DSN)
	cfg.Tiles.URLTemplate = Get("TILE_URL_TEMPLATE", cfg.Tiles.URLTemplate)
	cfg.Tiles.UserAgent = Get("TILE_USER_AGENT", cfg.Tiles.UserAgent)
	cfg.Elevation.BaseURL = Get("ELEVATION_BASE_URL", cfg.Elevation.BaseURL)
	cfg.Elevation.Cache = Get("ELEVATION_CACHE", cfg.Elevation.Cache)
	cfg.Elevation.RedisAddr = Get("REDIS_ADDR", cfg.Elevation.RedisAddr)

	if v := os.Getenv("TILE_LAYERS"); v != "" {
		layers, err := parseLayers(v)
		if err != nil {
			return fmt.Errorf("load config: TILE_LAYERS: %w", err)
		}
		cfg.Tiles.Layers = layers
	}

	if v := os.Getenv("TILE_CACHE_MAX_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("load config: TILE_CACHE_MAX_BYTES: %w", err)
		}
		cfg.Tiles.MaxBytes = n
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"TILE_TIMEOUT", &cfg.Tiles.Timeout},
		{"ELEVATION_TIMEOUT", &cfg.Elevation.Timeout},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			if err := d.dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("load config: %s: %w", d.key, err)
			}
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"CHART_WIDTH", &cfg.Chart.Width},
		{"CHART_HEIGHT", &cfg.Chart.Height},
	}
	for _, i := range ints {
		if v := os.Getenv(i.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("load config: %s: %w", i.key, err)
			}
			*i.dst = n
		}
	}

	return nil
}

// Validate reports the first setting the service cannot run with.
func (c Config) Validate() error {
	switch c.Tiles.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown tile cache driver %q", c.Tiles.Driver)
	}
	if c.Tiles.Driver != "memory" && strings.TrimSpace(c.Tiles.DSN) == "" {
		return fmt.Errorf("config: tile cache dsn is required for driver %q", c.Tiles.Driver)
	}
	if c.Tiles.MaxBytes <= 0 {
		return fmt.Errorf("config: tile cache max bytes must be positive, got %d", c.Tiles.MaxBytes)
	}
	if err := checkTemplate(c.Tiles.URLTemplate); err != nil {
		return err
	}
	for name, tmpl := range c.Tiles.Layers {
		if !layerName.MatchString(name) || name == "default" {
			return fmt.Errorf("config: invalid tile layer name %q", name)
		}
		if err := checkTemplate(tmpl); err != nil {
			return fmt.Errorf("config: layer %q: %w", name, err)
		}
	}
	switch c.Elevation.Cache {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Elevation.RedisAddr) == "" {
			return fmt.Errorf("config: REDIS_ADDR is required when elevation cache is redis")
		}
	default:
		return fmt.Errorf("config: unknown elevation cache %q", c.Elevation.Cache)
	}
	if c.Chart.Width < 100 || c.Chart.Height < 100 {
		return fmt.Errorf("config: chart size %dx%d is too small", c.Chart.Width, c.Chart.Height)
	}
	return nil
}

var layerName = regexp.MustCompile(`^[a-z0-9_-]+$`)

// checkTemplate accepts XYZ templates and WMS templates with {bbox}.
func checkTemplate(tmpl string) error {
	if strings.Contains(tmpl, "{bbox}") {
		return nil
	}
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(tmpl, p) {
			return fmt.Errorf("config: tile url template %q is missing %s", tmpl, p)
		}
	}
	return nil
}

// parseLayers reads whitespace separated name=template pairs.
func parseLayers(v string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Fields(v) {
		name, tmpl, ok := strings.Cut(pair, "=")
		if !ok || name == "" || tmpl == "" {
			return nil, fmt.Errorf("expected name=template, got %q", pair)
		}
		out[name] = tmpl
	}
	return out, nil
}

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
