// README: Search service hosts the three acquisition paths: typed search sessions,
// device location and manual custom-location entry.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"geotag/internal/modules/location"
	"geotag/internal/types"
)

// Geocoder is the subset of maps.Client used by the search paths.
type Geocoder interface {
	Searcher
	Reverse(ctx context.Context, p types.Point) (location.Location, error)
}

type Service struct {
	geocoder      Geocoder
	region        location.Region
	validate      *validator.Validate
	debounce      time.Duration
	locateTimeout time.Duration
}

func NewService(geocoder Geocoder, region location.Region) *Service {
	return &Service{
		geocoder:      geocoder,
		region:        region,
		validate:      newValidator(region),
		debounce:      DefaultDebounce,
		locateTimeout: DefaultLocateTimeout,
	}
}

// WithTimings overrides the debounce window and the device-location timeout.
func (s *Service) WithTimings(debounce, locateTimeout time.Duration) *Service {
	s.debounce = debounce
	s.locateTimeout = locateTimeout
	return s
}

// NewSession starts a debounced search session bound to ctx.
func (s *Service) NewSession(ctx context.Context, onSelect func(location.Location)) *Session {
	return NewSession(ctx, s.geocoder, WithDebounce(s.debounce), OnSelect(onSelect))
}

// Locate resolves the caller's current position into a canonical location.
// Positions outside the region are rejected before any reverse lookup.
func (s *Service) Locate(ctx context.Context, g Geolocator) (location.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, s.locateTimeout)
	defer cancel()

	p, err := g.CurrentPosition(ctx, PositionOptions{HighAccuracy: true, Timeout: s.locateTimeout})
	if err != nil {
		return location.Location{}, classifyGeolocation(err)
	}
	if !s.region.Contains(p) {
		return location.Location{}, &location.ValidationError{
			Field:  "device_location",
			Reason: fmt.Sprintf("Your current location is outside %s. Only locations within %s are supported.", s.region.Name, s.region.Name),
			Err:    location.ErrOutOfRegion,
		}
	}

	loc, err := s.geocoder.Reverse(ctx, p)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return location.Location{}, &GeolocationError{Kind: GeolocationTimeout, Err: err}
		}
		return location.Location{}, fmt.Errorf("resolving current location: %w", err)
	}
	return loc, nil
}

// SubmitCustom validates the manual-entry form and synthesizes a location
// from its address parts. On success the form is reset.
func (s *Service) SubmitCustom(form *CustomLocationForm) (location.Location, error) {
	if err := s.validate.Struct(form); err != nil {
		return location.Location{}, toValidationError(err)
	}
	lat, _ := strconv.ParseFloat(strings.TrimSpace(form.Latitude), 64)
	lng, _ := strconv.ParseFloat(strings.TrimSpace(form.Longitude), 64)

	loc := location.Location{
		ID:        location.NewID(),
		Name:      strings.TrimSpace(form.Name),
		Address:   joinAddress(form.Street, form.City, form.State, form.PostalCode),
		Latitude:  lat,
		Longitude: lng,
	}
	*form = CustomLocationForm{}
	return loc, nil
}

func joinAddress(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func classifyGeolocation(err error) error {
	var g *GeolocationError
	if errors.As(err, &g) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &GeolocationError{Kind: GeolocationTimeout, Err: err}
	}
	return &GeolocationError{Kind: GeolocationOther, Err: err}
}
