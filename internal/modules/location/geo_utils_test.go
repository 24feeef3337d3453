package location

import (
	"math"
	"testing"

	"geotag/internal/types"
)

func TestDistanceMeters(t *testing.T) {
	tests := []struct {
		name string
		a, b types.Point
		want float64
		tol  float64
	}{
		{"same point", types.Point{Lat: 18.922, Lng: 72.8347}, types.Point{Lat: 18.922, Lng: 72.8347}, 0, 0.001},
		{"about 20 m apart", types.Point{Lat: 18.9220, Lng: 72.8347}, types.Point{Lat: 18.92218, Lng: 72.8347}, 20, 1},
		{"New Delhi to Mumbai", types.Point{Lat: 28.6139, Lng: 77.2090}, types.Point{Lat: 19.0760, Lng: 72.8777}, 1_150_000, 20_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceMeters(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("DistanceMeters() = %f, want %f (±%f)", got, tt.want, tt.tol)
			}
			if back := DistanceMeters(tt.b, tt.a); math.Abs(back-got) > 1e-6 {
				t.Errorf("not symmetric: %f vs %f", got, back)
			}
		})
	}
}

func TestSamePlace(t *testing.T) {
	a := Location{Name: "Gateway of India", Latitude: 18.9220, Longitude: 72.8347}
	near := Location{Name: "gateway of india ", Latitude: 18.92218, Longitude: 72.8347}
	far := Location{Name: "Gateway of India", Latitude: 18.9300, Longitude: 72.8347}
	other := Location{Name: "Taj Mahal Palace", Latitude: 18.9220, Longitude: 72.8347}

	if !SamePlace(a, near, 25) {
		t.Error("expected near duplicate to match")
	}
	if SamePlace(a, far, 25) {
		t.Error("expected distant namesake to differ")
	}
	if SamePlace(a, other, 25) {
		t.Error("expected different names to differ")
	}
}
