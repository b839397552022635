package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"route-profile-service/internal/domain"
	"route-profile-service/internal/ports"
	"strconv"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

const (
	marginLeft   = 56
	marginRight  = 16
	marginTop    = 24
	marginBottom = 28
)

var (
	background = color.RGBA{0xff, 0xff, 0xff, 0xff}
	axisColor  = color.RGBA{0x55, 0x55, 0x55, 0xff}
	gridColor  = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	lineColor  = color.RGBA{0x1f, 0x6f, 0xb4, 0xff}
	fillColor  = color.NRGBA{0x1f, 0x6f, 0xb4, 0x40}
	textColor  = color.RGBA{0x22, 0x22, 0x22, 0xff}
)

// PNGRenderer rasterizes elevation profiles into PNG images.
type PNGRenderer struct {
	Width  int
	Height int
}

func NewPNGRenderer(width, height int) (*PNGRenderer, error) {
	if width < marginLeft+marginRight+10 || height < marginTop+marginBottom+10 {
		return nil, fmt.Errorf("new png renderer: size %dx%d too small", width, height)
	}
	return &PNGRenderer{Width: width, Height: height}, nil
}

// PNGChart is one rendered profile. Destroy drops the encoded image.
type PNGChart struct {
	mu        sync.Mutex
	data      []byte
	destroyed bool
}

func (c *PNGChart) PNG() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

func (c *PNGChart) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
	c.destroyed = true
}

func (c *PNGChart) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

type plot struct {
	rect   image.Rectangle
	xMax   float64
	lo, hi float64
}

func (p plot) x(km float64) float32 {
	return float32(float64(p.rect.Min.X) + km/p.xMax*float64(p.rect.Dx()))
}

func (p plot) y(m float64) float32 {
	return float32(float64(p.rect.Min.Y) + (p.hi-m)/(p.hi-p.lo)*float64(p.rect.Dy()))
}

// Render draws the series with the x-axis spanning [0, xMax]. Nil elevations
// break the line.
func (r *PNGRenderer) Render(series domain.ProfileSeries, xMax float64) (ports.Chart, error) {
	if series.Len() < 0 {
		return nil, errors.New("png render: distances and elevations differ in length")
	}

	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	p := plot{
		rect: image.Rect(marginLeft, marginTop, r.Width-marginRight, r.Height-marginBottom),
		xMax: xMax,
	}
	if !(p.xMax > 0) {
		p.xMax = 1
	}
	lo, hi, ok := series.ElevationRange()
	if !ok {
		lo, hi = 0, 1
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 1
	}
	p.lo, p.hi = math.Floor(lo-pad), math.Ceil(hi+pad)

	ras := vector.NewRasterizer(r.Width, r.Height)

	for i := 1; i < 4; i++ {
		gy := float32(p.rect.Min.Y) + float32(i)*float32(p.rect.Dy())/4
		stroke(ras, img, gridColor, float32(p.rect.Min.X), gy, float32(p.rect.Max.X), gy, 1)
	}

	for _, run := range runs(series) {
		fillRun(ras, img, p, series, run)
		strokeRun(ras, img, p, series, run)
	}

	bottom := float32(p.rect.Max.Y)
	stroke(ras, img, axisColor, float32(p.rect.Min.X), bottom, float32(p.rect.Max.X), bottom, 1)
	stroke(ras, img, axisColor, float32(p.rect.Min.X), float32(p.rect.Min.Y), float32(p.rect.Min.X), bottom, 1)

	labels(img, p)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png render: encode: %w", err)
	}
	return &PNGChart{data: buf.Bytes()}, nil
}

// runs returns [start, end) index ranges of consecutive non-nil elevations.
func runs(series domain.ProfileSeries) [][2]int {
	var out [][2]int
	start := -1
	for i, e := range series.ElevationsM {
		switch {
		case e != nil && start < 0:
			start = i
		case e == nil && start >= 0:
			out = append(out, [2]int{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, [2]int{start, len(series.ElevationsM)})
	}
	return out
}

func fillRun(ras *vector.Rasterizer, dst draw.Image, p plot, series domain.ProfileSeries, run [2]int) {
	if run[1]-run[0] < 2 {
		return
	}
	bottom := float32(p.rect.Max.Y)

	ras.Reset(dst.Bounds().Dx(), dst.Bounds().Dy())
	ras.MoveTo(p.x(series.DistancesKm[run[0]]), bottom)
	for i := run[0]; i < run[1]; i++ {
		ras.LineTo(p.x(series.DistancesKm[i]), p.y(*series.ElevationsM[i]))
	}
	ras.LineTo(p.x(series.DistancesKm[run[1]-1]), bottom)
	ras.ClosePath()
	ras.Draw(dst, dst.Bounds(), image.NewUniform(fillColor), image.Point{})
}

func strokeRun(ras *vector.Rasterizer, dst draw.Image, p plot, series domain.ProfileSeries, run [2]int) {
	if run[1]-run[0] == 1 {
		x, y := p.x(series.DistancesKm[run[0]]), p.y(*series.ElevationsM[run[0]])
		stroke(ras, dst, lineColor, x-1.5, y, x+1.5, y, 3)
		return
	}
	for i := run[0] + 1; i < run[1]; i++ {
		stroke(ras, dst, lineColor,
			p.x(series.DistancesKm[i-1]), p.y(*series.ElevationsM[i-1]),
			p.x(series.DistancesKm[i]), p.y(*series.ElevationsM[i]),
			2,
		)
	}
}

// stroke draws the segment (x0,y0)-(x1,y1) as a quad of the given width.
func stroke(ras *vector.Rasterizer, dst draw.Image, c color.Color, x0, y0, x1, y1, width float32) {
	dx, dy := x1-x0, y1-y0
	n := float32(math.Hypot(float64(dx), float64(dy)))
	if n == 0 {
		return
	}
	nx, ny := -dy/n*width/2, dx/n*width/2

	ras.Reset(dst.Bounds().Dx(), dst.Bounds().Dy())
	ras.MoveTo(x0+nx, y0+ny)
	ras.LineTo(x1+nx, y1+ny)
	ras.LineTo(x1-nx, y1-ny)
	ras.LineTo(x0-nx, y0-ny)
	ras.ClosePath()
	ras.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
}

func labels(dst draw.Image, p plot) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
	}

	text := func(s string, x, y int) {
		d.Dot = fixed.P(x, y)
		d.DrawString(s)
	}

	text("Elevation profile", p.rect.Min.X, p.rect.Min.Y-8)

	hi := strconv.FormatFloat(p.hi, 'f', 0, 64) + " m"
	lo := strconv.FormatFloat(p.lo, 'f', 0, 64) + " m"
	text(hi, p.rect.Min.X-d.MeasureString(hi).Ceil()-4, p.rect.Min.Y+10)
	text(lo, p.rect.Min.X-d.MeasureString(lo).Ceil()-4, p.rect.Max.Y)

	text("0 km", p.rect.Min.X, p.rect.Max.Y+18)
	right := strconv.FormatFloat(p.xMax, 'f', 2, 64) + " km"
	text(right, p.rect.Max.X-d.MeasureString(right).Ceil(), p.rect.Max.Y+18)
}
