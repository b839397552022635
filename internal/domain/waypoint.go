package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
)

// Immutable geographic point recorded by the user (latitude, longitude).
type Waypoint struct {
	Lat float64
	Lng float64
}

// Return the waypoint as an orb point (X = longitude, Y = latitude).
func (w Waypoint) Point() orb.Point { return orb.Point{w.Lng, w.Lat} }

// Key identifies the exact coordinate pair; equal coordinates share a key.
func (w Waypoint) Key() string {
	return strconv.FormatFloat(w.Lat, 'g', -1, 64) + "," + strconv.FormatFloat(w.Lng, 'g', -1, 64)
}

// Validate rejects coordinates outside the WGS84 range.
func (w Waypoint) Validate() error {
	if math.IsNaN(w.Lat) || math.IsNaN(w.Lng) || math.IsInf(w.Lat, 0) || math.IsInf(w.Lng, 0) {
		return errors.New("waypoint: coordinates must be finite numbers")
	}
	if w.Lat < -90 || w.Lat > 90 {
		return fmt.Errorf("waypoint: latitude %v out of range", w.Lat)
	}
	if w.Lng < -180 || w.Lng > 180 {
		return fmt.Errorf("waypoint: longitude %v out of range", w.Lng)
	}
	return nil
}
