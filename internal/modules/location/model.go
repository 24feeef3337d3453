// README: Canonical location record produced by every acquisition path.
package location

import (
	"strings"

	"github.com/google/uuid"

	"geotag/internal/types"
)

// Location is the single normalized record regardless of whether it came
// from a search result, a reverse-geocoded point or manual entry.
type Location struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Empty is the unset draft location: empty strings and the 0,0 sentinel.
var Empty = Location{}

func (l Location) Point() types.Point {
	return types.Point{Lat: l.Latitude, Lng: l.Longitude}
}

// Complete reports whether name and address are non-empty and both
// coordinates are non-zero.
func (l Location) Complete() bool {
	return strings.TrimSpace(l.Name) != "" &&
		strings.TrimSpace(l.Address) != "" &&
		l.Latitude != 0 &&
		l.Longitude != 0
}

// NewID returns a client-side identifier for manually entered or
// reverse-geocoded points.
func NewID() string {
	return uuid.NewString()
}

// NameFromAddress returns the first comma-separated segment of addr.
func NameFromAddress(addr string) string {
	first, _, _ := strings.Cut(addr, ",")
	return strings.TrimSpace(first)
}
