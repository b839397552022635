package services

import (
	"context"
	"errors"
	"log"
	"route-profile-service/internal/domain"
	"route-profile-service/internal/ports"
	"strings"

	"golang.org/x/sync/singleflight"
)

// ElevationService memoizes provider answers by exact coordinate pair and
// collapses concurrent lookups for the same pair into one request.
//
// Failures (network, timeout, upstream status) resolve to nil and are not
// memoized, so a later lookup for the same point tries again. A caller whose
// ctx ends gets nil without cancelling the lookup other callers share; the
// provider's own timeout bounds it.
type ElevationService struct {
	provider ports.ElevationProvider
	cache    ports.ElevationCache
	group    singleflight.Group
}

func NewElevationService(provider ports.ElevationProvider, cache ports.ElevationCache) (*ElevationService, error) {
	if provider == nil {
		return nil, errors.New("new elevation service: provider is nil")
	}
	if cache == nil {
		return nil, errors.New("new elevation service: cache is nil")
	}
	return &ElevationService{provider: provider, cache: cache}, nil
}

// Elevation returns the ground elevation in meters for (lat, lng), or nil when
// the source has no value or could not be reached.
func (s *ElevationService) Elevation(ctx context.Context, lat, lng float64) *float64 {
	key := domain.Waypoint{Lat: lat, Lng: lng}.Key()

	v, found, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Printf("op=elevation key=%s cache_get_err=%v", key, err)
	}
	if err == nil && found {
		return copyElevation(v)
	}

	// The shared lookup outlives any single caller; each caller stops
	// waiting when its own ctx ends.
	ch := s.group.DoChan(key, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		elev, err := s.provider.Lookup(shared, lat, lng)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Put(shared, key, elev); err != nil {
			log.Printf("op=elevation key=%s cache_put_err=%v", key, err)
		}
		return elev, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil
	}
	if res.Err != nil {
		log.Printf("op=elevation key=%s lookup_err=%v", key, sanitize(res.Err))
		return nil
	}

	elev, _ := res.Val.(*float64)
	return copyElevation(elev)
}

func copyElevation(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func sanitize(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", " ")
}
