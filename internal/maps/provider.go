package maps

import (
	"context"

	"geotag/internal/modules/location"
	"geotag/internal/types"
)

// SearchOptions narrows a forward query.
type SearchOptions struct {
	// CountryCode is an ISO 3166-1 alpha-2 code, e.g. "IN".
	CountryCode string
	Limit       int
	// Bias optionally ranks results near this point.
	Bias *types.Point
}

// Provider is a single geocoding backend. Each implementation owns the
// mapping from its payloads to location.Location.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts SearchOptions) ([]location.Location, error)
	// Reverse returns found=false when the backend has no address for p.
	Reverse(ctx context.Context, p types.Point) (loc location.Location, countryCode string, found bool, err error)
}
