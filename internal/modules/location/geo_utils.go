package location

import (
	"math"
	"strings"

	"geotag/internal/types"
)

const earthRadiusMeters = 6_371_000.0

// DistanceMeters is the great-circle distance between a and b.
func DistanceMeters(a, b types.Point) float64 {
	rLat1 := radians(a.Lat)
	rLat2 := radians(b.Lat)
	dLat := rLat2 - rLat1
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// SamePlace reports whether a and b name the same place: equal names,
// ignoring case, within radius meters of each other.
func SamePlace(a, b Location, radius float64) bool {
	return strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(b.Name)) &&
		DistanceMeters(a.Point(), b.Point()) <= radius
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
