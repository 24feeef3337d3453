package maps

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"geotag/internal/modules/location"
)

type memBacking struct {
	data map[string][]location.Location
}

func (m *memBacking) Get(_ context.Context, key string) ([]location.Location, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memBacking) Set(_ context.Context, key string, v []location.Location) error {
	m.data[key] = v
	return nil
}

func TestCache_EvictsOldestBeyondCapacity(t *testing.T) {
	c := NewCache(3, nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), []location.Location{{Name: fmt.Sprintf("n%d", i)}})
	}

	assert.Equal(t, 3, c.Len())
	_, ok := c.Get(ctx, "k0")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "k1")
	assert.False(t, ok)
	v, ok := c.Get(ctx, "k4")
	assert.True(t, ok)
	assert.Equal(t, "n4", v[0].Name)
}

func TestCache_OverwriteDoesNotGrow(t *testing.T) {
	c := NewCache(2, nil)
	ctx := context.Background()
	c.Set(ctx, "a", nil)
	c.Set(ctx, "a", []location.Location{{Name: "x"}})
	assert.Equal(t, 1, c.Len())
}

func TestCache_DefaultCapacity(t *testing.T) {
	c := NewCache(0, nil)
	ctx := context.Background()
	for i := 0; i < DefaultCacheCapacity+10; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), nil)
	}
	assert.Equal(t, DefaultCacheCapacity, c.Len())
}

func TestCache_ReadsThroughBacking(t *testing.T) {
	b := &memBacking{data: map[string][]location.Location{"shared": {{Name: "Pune"}}}}
	c := NewCache(5, b)

	v, ok := c.Get(context.Background(), "shared")
	assert.True(t, ok)
	assert.Equal(t, "Pune", v[0].Name)
	assert.Equal(t, 1, c.Len())
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := NewCache(5, nil)
	ctx := context.Background()
	c.Set(ctx, "k", []location.Location{{Name: "orig"}})
	v, _ := c.Get(ctx, "k")
	v[0].Name = "mutated"
	again, _ := c.Get(ctx, "k")
	assert.Equal(t, "orig", again[0].Name)
}
