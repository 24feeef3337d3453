package location

import (
	"fmt"

	"geotag/internal/types"
)

// Region is the lat/lng rectangle that accepted coordinates must fall into.
type Region struct {
	Name        string
	CountryCode string
	MinLat      float64
	MaxLat      float64
	MinLng      float64
	MaxLng      float64
}

// India is the default deployment region.
var India = Region{
	Name:        "India",
	CountryCode: "IN",
	MinLat:      6,
	MaxLat:      37,
	MinLng:      68,
	MaxLng:      97,
}

func (r Region) Contains(p types.Point) bool {
	return p.Lat >= r.MinLat && p.Lat <= r.MaxLat &&
		p.Lng >= r.MinLng && p.Lng <= r.MaxLng
}

func (r Region) ContainsLat(lat float64) bool {
	return lat >= r.MinLat && lat <= r.MaxLat
}

func (r Region) ContainsLng(lng float64) bool {
	return lng >= r.MinLng && lng <= r.MaxLng
}

func (r Region) Centroid() types.Point {
	return types.Point{
		Lat: (r.MinLat + r.MaxLat) / 2,
		Lng: (r.MinLng + r.MaxLng) / 2,
	}
}

// Check returns a *ValidationError wrapping ErrOutOfRegion when p lies
// outside the region.
func (r Region) Check(p types.Point) error {
	if r.Contains(p) {
		return nil
	}
	return &ValidationError{
		Field: "coordinates",
		Reason: fmt.Sprintf("%.5f,%.5f is outside %s (lat %g..%g, lng %g..%g)",
			p.Lat, p.Lng, r.Name, r.MinLat, r.MaxLat, r.MinLng, r.MaxLng),
		Err: ErrOutOfRegion,
	}
}
