package services

import (
	"context"
	"route-profile-service/internal/adapters/cache"
	"route-profile-service/internal/adapters/elevation"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func newElevationService(t *testing.T, points []elevation.MockPoint) (*ElevationService, *elevation.MockElevationProvider) {
	t.Helper()

	provider := elevation.NewMockElevationProvider(points)
	svc, err := NewElevationService(provider, cache.NewMemoryElevationCache())
	require.NoError(t, err)
	return svc, provider
}

func waitIdle(t *testing.T, tr *RouteTracker) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.WaitIdle(ctx))
}
