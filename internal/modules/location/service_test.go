package location

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geotag/internal/types"
)

type memRecent struct {
	items map[types.ID][]Location
}

func (m *memRecent) PushRecent(_ context.Context, owner types.ID, loc Location, limit int) error {
	if m.items == nil {
		m.items = map[types.ID][]Location{}
	}
	list := append([]Location{loc}, m.items[owner]...)
	if len(list) > limit {
		list = list[:limit]
	}
	m.items[owner] = list
	return nil
}

func (m *memRecent) Recent(_ context.Context, owner types.ID, limit int) ([]Location, error) {
	return m.items[owner], nil
}

func TestService_Normalize(t *testing.T) {
	svc := NewService(nil, India)

	loc, err := svc.Normalize(Location{Address: " Gateway of India, Mumbai ", Latitude: 18.922, Longitude: 72.8347})
	require.NoError(t, err)
	assert.Equal(t, "Gateway of India", loc.Name)
	assert.Equal(t, "Gateway of India, Mumbai", loc.Address)
	assert.NotEmpty(t, loc.ID)

	_, err = svc.Normalize(Location{Name: "Paris", Address: "Paris, France", Latitude: 48.85, Longitude: 2.35})
	assert.True(t, errors.Is(err, ErrOutOfRegion))

	_, err = svc.Normalize(Location{Name: "Nowhere", Latitude: 20, Longitude: 80})
	assert.True(t, errors.Is(err, ErrIncomplete))
}

func TestService_RememberSkipsAnonymous(t *testing.T) {
	store := &memRecent{}
	svc := NewService(store, India)
	ctx := context.Background()

	require.NoError(t, svc.Remember(ctx, "", Location{Name: "x"}))
	assert.Empty(t, store.items)

	require.NoError(t, svc.Remember(ctx, "u1", Location{Name: "Agra"}))
	got, err := svc.Recent(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Agra", got[0].Name)
}
