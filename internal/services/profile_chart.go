package services

import (
	"errors"
	"fmt"
	"log"
	"route-profile-service/internal/domain"
	"route-profile-service/internal/ports"
	"sync"
)

var (
	ErrNotEnoughPoints = errors.New("profile chart: at least two points are required")
	ErrSeriesMismatch  = errors.New("profile chart: distances and elevations differ in length")
)

// BuildProfileSeries converts a committed snapshot into chart input:
// distances in kilometers, elevations in meters.
func BuildProfileSeries(snap domain.RouteSnapshot) domain.ProfileSeries {
	series := domain.ProfileSeries{
		DistancesKm: make([]float64, len(snap.CumulativeDistances)),
		ElevationsM: make([]*float64, len(snap.Elevations)),
	}
	for i, d := range snap.CumulativeDistances {
		series.DistancesKm[i] = d / 1000
	}
	for i, e := range snap.Elevations {
		series.ElevationsM[i] = copyElevation(e)
	}
	return series
}

// ProfileChart owns the single live elevation chart. Each successful Render
// destroys the previous chart before drawing the new one.
type ProfileChart struct {
	renderer ports.ChartRenderer

	mu      sync.Mutex
	current ports.Chart
}

func NewProfileChart(renderer ports.ChartRenderer) (*ProfileChart, error) {
	if renderer == nil {
		return nil, errors.New("new profile chart: renderer is nil")
	}
	return &ProfileChart{renderer: renderer}, nil
}

// Render draws series with the x-axis fixed to [0, last distance].
// Invalid input leaves the current chart untouched.
func (p *ProfileChart) Render(series domain.ProfileSeries) (ports.Chart, error) {
	if err := checkSeries(series); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.renderLocked(series)
}

// RenderPNG renders series and returns a copy of the image bytes, taken
// before any later render can destroy the chart.
func (p *ProfileChart) RenderPNG(series domain.ProfileSeries) ([]byte, error) {
	if err := checkSeries(series); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	chart, err := p.renderLocked(series)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), chart.PNG()...), nil
}

func checkSeries(series domain.ProfileSeries) error {
	if len(series.DistancesKm) != len(series.ElevationsM) {
		log.Printf("op=profile_render warn=series_mismatch distances=%d elevations=%d", len(series.DistancesKm), len(series.ElevationsM))
		return ErrSeriesMismatch
	}
	if series.Len() < 2 {
		log.Printf("op=profile_render warn=not_enough_points points=%d", series.Len())
		return ErrNotEnoughPoints
	}
	return nil
}

// caller holds p.mu
func (p *ProfileChart) renderLocked(series domain.ProfileSeries) (ports.Chart, error) {
	if p.current != nil {
		p.current.Destroy()
		p.current = nil
	}

	chart, err := p.renderer.Render(series, series.MaxDistanceKm())
	if err != nil {
		return nil, fmt.Errorf("profile render: %w", err)
	}
	p.current = chart
	return chart, nil
}

// Current returns the live chart, or nil.
func (p *ProfileChart) Current() ports.Chart {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *ProfileChart) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.current.Destroy()
		p.current = nil
	}
}
