package tiles

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
)

var subdomains = []string{"a", "b", "c"}

// MaxZoom is the deepest zoom level the proxy accepts.
const MaxZoom = 22

// URLTemplate expands {z}, {x}, {y} and {s} placeholders into a tile URL.
// WMS GetMap templates use {bbox} instead, filled with the tile's EPSG:3857
// bounds as "minx,miny,maxx,maxy".
// The {s} subdomain is derived from the tile coordinate so the same tile
// always resolves to the same URL (the URL is the cache key).
type URLTemplate string

func (t URLTemplate) Resolve(tile maptile.Tile) string {
	s := subdomains[int(tile.X+tile.Y)%len(subdomains)]
	r := strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(tile.Z), 10),
		"{x}", strconv.FormatUint(uint64(tile.X), 10),
		"{y}", strconv.FormatUint(uint64(tile.Y), 10),
		"{s}", s,
		"{bbox}", mercatorBBox(tile),
	)
	return r.Replace(string(t))
}

// IsWMS reports whether the template addresses tiles by bounding box.
func (t URLTemplate) IsWMS() bool {
	return strings.Contains(string(t), "{bbox}")
}

func mercatorBBox(tile maptile.Tile) string {
	b := tile.Bound()
	lo := project.Point(b.Min, project.WGS84.ToMercator)
	hi := project.Point(b.Max, project.WGS84.ToMercator)

	parts := []float64{lo.X(), lo.Y(), hi.X(), hi.Y()}
	out := make([]string, len(parts))
	for i, v := range parts {
		out[i] = strconv.FormatFloat(v, 'f', 2, 64)
	}
	return strings.Join(out, ",")
}

// NewTile validates a z/x/y address and returns it as a maptile.Tile.
func NewTile(z, x, y int) (maptile.Tile, error) {
	if z < 0 || z > MaxZoom {
		return maptile.Tile{}, fmt.Errorf("tile: zoom %d out of range [0,%d]", z, MaxZoom)
	}
	n := 1 << uint(z)
	if x < 0 || x >= n || y < 0 || y >= n {
		return maptile.Tile{}, fmt.Errorf("tile: %d/%d/%d outside the %dx%d grid", z, x, y, n, n)
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), nil
}
