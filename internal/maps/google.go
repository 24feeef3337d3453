package maps

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"geotag/internal/modules/location"
	"geotag/internal/types"
)

// GoogleProvider handles interactions with the Google Places and Geocoding APIs.
type GoogleProvider struct {
	client   *maps.Client
	language string
}

// NewGoogleProvider creates a new GoogleProvider with the given API Key.
func NewGoogleProvider(apiKey string) (*GoogleProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleProvider{client: client, language: "en"}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

// Search runs a Places text search biased to the requested country.
func (p *GoogleProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]location.Location, error) {
	r := &maps.TextSearchRequest{
		Query:    query,
		Language: p.language,
		Region:   strings.ToLower(opts.CountryCode),
	}
	if opts.Bias != nil {
		r.Location = &maps.LatLng{Lat: opts.Bias.Lat, Lng: opts.Bias.Lng}
		r.Radius = 50000
	}

	resp, err := p.client.TextSearch(ctx, r)
	if err != nil {
		return nil, &GeocodingError{Provider: p.Name(), Err: err}
	}

	var results []location.Location
	for _, result := range resp.Results {
		results = append(results, location.Location{
			ID:        result.PlaceID,
			Name:      result.Name,
			Address:   result.FormattedAddress,
			Latitude:  result.Geometry.Location.Lat,
			Longitude: result.Geometry.Location.Lng,
		})
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
	}
	return results, nil
}

func (p *GoogleProvider) Reverse(ctx context.Context, pt types.Point) (location.Location, string, bool, error) {
	results, err := p.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: pt.Lat, Lng: pt.Lng},
		Language: p.language,
	})
	if err != nil {
		return location.Location{}, "", false, &GeocodingError{Provider: p.Name(), Err: err}
	}
	if len(results) == 0 {
		return location.Location{}, "", false, nil
	}

	best := results[0]
	loc := location.Location{
		Name:      googleShortName(best.AddressComponents),
		Address:   best.FormattedAddress,
		Latitude:  best.Geometry.Location.Lat,
		Longitude: best.Geometry.Location.Lng,
	}
	return loc, googleCountry(best.AddressComponents), true, nil
}

func googleShortName(comps []maps.AddressComponent) string {
	for _, want := range []string{"point_of_interest", "premise", "route", "sublocality", "locality"} {
		for _, c := range comps {
			if hasType(c.Types, want) {
				return c.LongName
			}
		}
	}
	return ""
}

func googleCountry(comps []maps.AddressComponent) string {
	for _, c := range comps {
		if hasType(c.Types, "country") {
			return c.ShortName
		}
	}
	return ""
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
