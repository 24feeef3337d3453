// README: Map view turns a click on the map into a reverse-geocoded location.
package mapview

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"geotag/internal/modules/location"
	"geotag/internal/types"
)

const DefaultZoom = 5

// Reverser resolves a point to at most one location.
type Reverser interface {
	Reverse(ctx context.Context, p types.Point) (location.Location, error)
}

// Snapshot is what the client needs to redraw the map.
type Snapshot struct {
	Center types.Point  `json:"center"`
	Zoom   int          `json:"zoom"`
	Marker *types.Point `json:"marker,omitempty"`
	Busy   bool         `json:"busy"`
	Error  string       `json:"error,omitempty"`
}

type View struct {
	mu       sync.Mutex
	reverser Reverser
	region   location.Region
	onSelect func(location.Location)
	log      zerolog.Logger

	marker *types.Point
	busy   bool
	err    string
}

func New(reverser Reverser, region location.Region, onSelect func(location.Location)) *View {
	return &View{
		reverser: reverser,
		region:   region,
		onSelect: onSelect,
		log:      zerolog.Nop(),
	}
}

func (v *View) WithLogger(l zerolog.Logger) *View {
	v.log = l.With().Str("component", "mapview").Logger()
	return v
}

func (v *View) Center() types.Point {
	return v.region.Centroid()
}

func (v *View) Zoom() int {
	return DefaultZoom
}

func (v *View) Marker() (types.Point, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.marker == nil {
		return types.Point{}, false
	}
	return *v.marker, true
}

func (v *View) Busy() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.busy
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := Snapshot{Center: v.region.Centroid(), Zoom: DefaultZoom, Busy: v.busy, Error: v.err}
	if v.marker != nil {
		m := *v.marker
		s.Marker = &m
	}
	return s
}

// Click places the marker at p and reverse-geocodes it. On success onSelect
// receives a location with a fresh ID; on failure the marker stays where it
// is and nothing is emitted, so a later click can retry.
func (v *View) Click(ctx context.Context, p types.Point) (location.Location, error) {
	if err := v.region.Check(p); err != nil {
		v.mu.Lock()
		v.err = err.Error()
		v.mu.Unlock()
		return location.Location{}, err
	}

	v.mu.Lock()
	v.marker = &p
	v.busy = true
	v.err = ""
	v.mu.Unlock()

	loc, err := v.reverser.Reverse(ctx, p)

	v.mu.Lock()
	v.busy = false
	if err != nil {
		v.err = "Could not resolve an address for this point. Click again to retry."
	}
	v.mu.Unlock()

	if err != nil {
		v.log.Warn().Err(err).Float64("lat", p.Lat).Float64("lng", p.Lng).Msg("map click reverse geocode failed")
		return location.Location{}, fmt.Errorf("map click: %w", err)
	}

	loc.ID = location.NewID()
	if loc.Name == "" {
		loc.Name = location.NameFromAddress(loc.Address)
	}
	if v.onSelect != nil {
		v.onSelect(loc)
	}
	return loc, nil
}
