// README: Location search state, device-location and manual-entry types.
package search

import (
	"time"

	"geotag/internal/modules/location"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSearching Phase = "searching"
	PhaseResults   Phase = "results"
	PhaseNoResults Phase = "no_results"
	PhaseError     Phase = "error"
)

const (
	DefaultDebounce      = 300 * time.Millisecond
	DefaultMinLength     = 2
	DefaultLocateTimeout = 10 * time.Second
)

// State is an immutable snapshot of a search session.
type State struct {
	Phase      Phase               `json:"phase"`
	Query      string              `json:"query"`
	Results    []location.Location `json:"results,omitempty"`
	Error      string              `json:"error,omitempty"`
	Generation uint64              `json:"generation"`
}

// CustomLocationForm is the manual-entry form. Coordinates arrive as text and
// must parse as numbers inside the configured region.
type CustomLocationForm struct {
	Name       string `json:"name" validate:"required,max=120"`
	Street     string `json:"street" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"omitempty,numeric,len=6"`
	Latitude   string `json:"latitude" validate:"required,region_lat"`
	Longitude  string `json:"longitude" validate:"required,region_lng"`
}
