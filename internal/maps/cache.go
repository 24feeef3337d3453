package maps

import (
	"context"
	"sync"

	"geotag/internal/modules/location"
)

// DefaultCacheCapacity bounds the in-memory result cache.
const DefaultCacheCapacity = 100

// Backing is an optional second-level cache shared between instances.
type Backing interface {
	Get(ctx context.Context, key string) ([]location.Location, bool, error)
	Set(ctx context.Context, key string, locs []location.Location) error
}

// Cache holds geocoding results. Once capacity is reached the oldest entry
// is evicted. It is owned by whoever constructs it and passed by reference.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string][]location.Location
	order    []string
	backing  Backing
}

func NewCache(capacity int, backing Backing) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string][]location.Location, capacity),
		backing:  backing,
	}
}

func (c *Cache) Get(ctx context.Context, key string) ([]location.Location, bool) {
	c.mu.Lock()
	v, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return clone(v), true
	}
	if c.backing == nil {
		return nil, false
	}
	v, ok, err := c.backing.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	c.put(key, v)
	return clone(v), true
}

func (c *Cache) Set(ctx context.Context, key string, v []location.Location) {
	c.put(key, v)
	if c.backing != nil {
		_ = c.backing.Set(ctx, key, v)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

func (c *Cache) put(key string, v []location.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = clone(v)
	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func clone(v []location.Location) []location.Location {
	if v == nil {
		return nil
	}
	out := make([]location.Location, len(v))
	copy(out, v)
	return out
}
