package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"geotag/internal/types"
)

type GeolocationErrorKind int

const (
	GeolocationOther GeolocationErrorKind = iota
	GeolocationPermissionDenied
	GeolocationUnavailable
	GeolocationTimeout
)

func (k GeolocationErrorKind) String() string {
	switch k {
	case GeolocationPermissionDenied:
		return "permission_denied"
	case GeolocationUnavailable:
		return "position_unavailable"
	case GeolocationTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// GeolocationError is a classified failure of the device-location path.
type GeolocationError struct {
	Kind GeolocationErrorKind
	Err  error
}

func (e *GeolocationError) Error() string {
	switch e.Kind {
	case GeolocationPermissionDenied:
		return "Location access was denied. Allow location access in your browser settings or search for a place instead."
	case GeolocationUnavailable:
		return "Your current position could not be determined. Try again or search for a place."
	case GeolocationTimeout:
		return "Getting your location took too long. Please try again."
	default:
		return "Unable to get your current location."
	}
}

func (e *GeolocationError) Unwrap() error {
	return e.Err
}

// IsPermissionDenied reports whether err is a denied geolocation request.
func IsPermissionDenied(err error) bool {
	var g *GeolocationError
	return errors.As(err, &g) && g.Kind == GeolocationPermissionDenied
}

type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
}

// Geolocator obtains the caller's current position.
type Geolocator interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (types.Point, error)
}

// W3C GeolocationPositionError codes as reported by browsers.
const (
	codePermissionDenied    = 1
	codePositionUnavailable = 2
	codeTimeout             = 3
)

// BrowserReport is the outcome of navigator.geolocation.getCurrentPosition
// relayed by the client: either coordinates or an error code.
type BrowserReport struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	ErrorCode int      `json:"error_code"`
	Message   string   `json:"message"`
}

func (b BrowserReport) CurrentPosition(_ context.Context, _ PositionOptions) (types.Point, error) {
	if b.ErrorCode != 0 || b.Latitude == nil || b.Longitude == nil {
		return types.Point{}, &GeolocationError{Kind: classifyCode(b.ErrorCode), Err: errors.New(b.Message)}
	}
	return types.Point{Lat: *b.Latitude, Lng: *b.Longitude}, nil
}

func classifyCode(code int) GeolocationErrorKind {
	switch code {
	case codePermissionDenied:
		return GeolocationPermissionDenied
	case codePositionUnavailable:
		return GeolocationUnavailable
	case codeTimeout:
		return GeolocationTimeout
	default:
		return GeolocationOther
	}
}

// IPGeolocator approximates the position from the client IP via ip-api.com.
// It is used when the browser cannot provide a fix.
type IPGeolocator struct {
	IP      string
	BaseURL string
	HTTP    *http.Client
}

type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (g IPGeolocator) CurrentPosition(ctx context.Context, _ PositionOptions) (types.Point, error) {
	base := g.BaseURL
	if base == "" {
		base = "http://ip-api.com"
	}
	hc := g.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	u := fmt.Sprintf("%s/json/%s?fields=status,message,lat,lon", strings.TrimRight(base, "/"), g.IP)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.Point{}, &GeolocationError{Kind: GeolocationOther, Err: err}
	}
	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return types.Point{}, &GeolocationError{Kind: GeolocationTimeout, Err: err}
		}
		return types.Point{}, &GeolocationError{Kind: GeolocationUnavailable, Err: err}
	}
	defer resp.Body.Close()

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.Point{}, &GeolocationError{Kind: GeolocationOther, Err: err}
	}
	if body.Status != "success" {
		return types.Point{}, &GeolocationError{Kind: GeolocationUnavailable, Err: errors.New(body.Message)}
	}
	return types.Point{Lat: body.Lat, Lng: body.Lon}, nil
}
