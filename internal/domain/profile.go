package domain

// Elevation profile derived from a route snapshot.
// DistancesKm and ElevationsM are parallel; a nil elevation is a gap.
type ProfileSeries struct {
	DistancesKm []float64
	ElevationsM []*float64
}

// Len returns the number of points when both sequences agree, or -1.
func (p ProfileSeries) Len() int {
	if len(p.DistancesKm) != len(p.ElevationsM) {
		return -1
	}
	return len(p.DistancesKm)
}

// MaxDistanceKm is the right edge of the fixed x-axis domain.
func (p ProfileSeries) MaxDistanceKm() float64 {
	if len(p.DistancesKm) == 0 {
		return 0
	}
	return p.DistancesKm[len(p.DistancesKm)-1]
}

// ElevationRange returns min and max of the non-nil elevations.
// ok is false when every elevation is nil.
func (p ProfileSeries) ElevationRange() (lo, hi float64, ok bool) {
	for _, e := range p.ElevationsM {
		if e == nil {
			continue
		}
		if !ok {
			lo, hi, ok = *e, *e, true
			continue
		}
		if *e < lo {
			lo = *e
		}
		if *e > hi {
			hi = *e
		}
	}
	return lo, hi, ok
}
