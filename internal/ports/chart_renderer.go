package ports

import "route-profile-service/internal/domain"

// A rendered chart instance. Destroy releases it; a destroyed chart returns
// no image.
type Chart interface {
	PNG() []byte
	Destroy()
}

// Contract for turning a profile series into a chart.
// xMax fixes the right edge of the x-axis domain [0, xMax].
type ChartRenderer interface {
	Render(series domain.ProfileSeries, xMax float64) (Chart, error)
}
