package cache

import (
	"context"
	"errors"
	"fmt"
	"route-profile-service/internal/platform/obs"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const nullElevation = "null"

// RedisElevationCache shares elevation answers across processes.
// Values are stored as decimal strings; "null" records an empty answer.
type RedisElevationCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisElevationCache wraps client. A zero ttl keeps entries forever.
func NewRedisElevationCache(client *redis.Client, ttl time.Duration) *RedisElevationCache {
	return &RedisElevationCache{client: client, prefix: "elevation:", ttl: ttl}
}

func (c *RedisElevationCache) Get(ctx context.Context, key string) (_ *float64, _ bool, err error) {
	defer obs.Time(ctx, "elevation.cache.Get")(&err)

	if c.client == nil {
		return nil, false, errors.New("elevation cache: redis client is nil")
	}

	raw, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get elevation cache %q: %w", key, err)
	}

	if raw == nullElevation {
		return nil, true, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false, fmt.Errorf("get elevation cache %q: corrupt value %q: %w", key, raw, err)
	}
	return &v, true, nil
}

func (c *RedisElevationCache) Put(ctx context.Context, key string, elevation *float64) error {
	if c.client == nil {
		return errors.New("elevation cache: redis client is nil")
	}

	val := nullElevation
	if elevation != nil {
		val = strconv.FormatFloat(*elevation, 'g', -1, 64)
	}

	if err := c.client.Set(ctx, c.prefix+key, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("put elevation cache %q: %w", key, err)
	}
	return nil
}
