package chart

import (
	"bytes"
	"image/png"
	"route-profile-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestPNGRendererProducesImage(t *testing.T) {
	r, err := NewPNGRenderer(400, 200)
	require.NoError(t, err)

	series := domain.ProfileSeries{
		DistancesKm: []float64{0, 1.2, 2.5, 3.1, 4},
		ElevationsM: []*float64{ptr(640), ptr(655), nil, ptr(700), ptr(690)},
	}

	c, err := r.Render(series, 4)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(c.PNG()))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestPNGRendererHandlesDegenerateSeries(t *testing.T) {
	r, err := NewPNGRenderer(300, 150)
	require.NoError(t, err)

	tests := map[string]domain.ProfileSeries{
		"all null":        {DistancesKm: []float64{0, 1}, ElevationsM: []*float64{nil, nil}},
		"flat":            {DistancesKm: []float64{0, 1}, ElevationsM: []*float64{ptr(5), ptr(5)}},
		"zero length":     {DistancesKm: []float64{0, 0}, ElevationsM: []*float64{ptr(5), ptr(8)}},
		"isolated points": {DistancesKm: []float64{0, 1, 2}, ElevationsM: []*float64{ptr(1), nil, ptr(3)}},
	}

	for name, series := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := r.Render(series, series.MaxDistanceKm())
			require.NoError(t, err)
			_, err = png.Decode(bytes.NewReader(c.PNG()))
			assert.NoError(t, err)
		})
	}
}

func TestPNGRendererRejectsMismatchedSeries(t *testing.T) {
	r, err := NewPNGRenderer(300, 150)
	require.NoError(t, err)

	_, err = r.Render(domain.ProfileSeries{DistancesKm: []float64{0, 1}, ElevationsM: []*float64{ptr(1)}}, 1)
	assert.Error(t, err)
}

func TestPNGChartDestroy(t *testing.T) {
	r, err := NewPNGRenderer(300, 150)
	require.NoError(t, err)

	c, err := r.Render(domain.ProfileSeries{DistancesKm: []float64{0, 1}, ElevationsM: []*float64{ptr(1), ptr(2)}}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, c.PNG())

	c.Destroy()
	assert.Nil(t, c.PNG())
	assert.True(t, c.(*PNGChart).Destroyed())
}

func TestNewPNGRendererRejectsTinySize(t *testing.T) {
	_, err := NewPNGRenderer(20, 20)
	assert.Error(t, err)
}
