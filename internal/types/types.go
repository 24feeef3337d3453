// README: Shared value objects used across modules.
package types

type ID string

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point is the unset sentinel (0,0).
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}
