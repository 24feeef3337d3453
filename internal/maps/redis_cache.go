package maps

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"geotag/internal/modules/location"
)

// RedisCache is a Backing that shares results across API instances.
type RedisCache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *goredis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "geocode:", ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]location.Location, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var locs []location.Location
	if err := json.Unmarshal(data, &locs); err != nil {
		return nil, false, err
	}
	return locs, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, locs []location.Location) error {
	b, err := json.Marshal(locs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, b, c.ttl).Err()
}
