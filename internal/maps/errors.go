package maps

import (
	"errors"
	"fmt"
)

var (
	ErrNoResult    = errors.New("no geocoding result")
	ErrNoProviders = errors.New("no geocoding providers configured")
)

// GeocodingError is a transport or API failure of one backend. Callers fall
// back to "no results" or a transient banner; the operation is retryable.
type GeocodingError struct {
	Provider string
	Status   int
	Err      error
}

func (e *GeocodingError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("geocoding %s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("geocoding %s: %v", e.Provider, e.Err)
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a provider transport failure.
func IsTransport(err error) bool {
	var g *GeocodingError
	return errors.As(err, &g)
}
