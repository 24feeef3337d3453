package maps

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"geotag/internal/modules/location"
	"geotag/internal/types"
)

const tomtomBaseURL = "https://api.tomtom.com/search/2"

// TomTomProvider uses the TomTom fuzzy search and reverse geocode APIs.
type TomTomProvider struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewTomTomProvider(apiKey string) *TomTomProvider {
	return &TomTomProvider{apiKey: apiKey, baseURL: tomtomBaseURL, http: newHTTPClient()}
}

// WithBaseURL points the provider at another host (used by tests).
func (p *TomTomProvider) WithBaseURL(u string) *TomTomProvider {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

func (p *TomTomProvider) Name() string { return "tomtom" }

type tomtomAddress struct {
	FreeformAddress    string `json:"freeformAddress"`
	StreetName         string `json:"streetName"`
	Municipality       string `json:"municipality"`
	CountrySubdivision string `json:"countrySubdivision"`
	CountryCode        string `json:"countryCode"`
}

type tomtomSearchResponse struct {
	Results []struct {
		ID       string        `json:"id"`
		Type     string        `json:"type"`
		Address  tomtomAddress `json:"address"`
		Position struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"position"`
		POI *struct {
			Name string `json:"name"`
		} `json:"poi"`
	} `json:"results"`
}

type tomtomReverseResponse struct {
	Addresses []struct {
		Address  tomtomAddress `json:"address"`
		Position string        `json:"position"`
	} `json:"addresses"`
}

func (p *TomTomProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]location.Location, error) {
	q := url.Values{}
	q.Set("key", p.apiKey)
	q.Set("typeahead", "true")
	q.Set("limit", strconv.Itoa(opts.Limit))
	if opts.CountryCode != "" {
		q.Set("countrySet", opts.CountryCode)
	}
	if opts.Bias != nil {
		q.Set("lat", strconv.FormatFloat(opts.Bias.Lat, 'f', 6, 64))
		q.Set("lon", strconv.FormatFloat(opts.Bias.Lng, 'f', 6, 64))
	}
	u := fmt.Sprintf("%s/search/%s.json?%s", p.baseURL, url.PathEscape(query), q.Encode())

	var resp tomtomSearchResponse
	if err := getJSON(ctx, p.http, p.Name(), u, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]location.Location, 0, len(resp.Results))
	for _, r := range resp.Results {
		name := ""
		if r.POI != nil {
			name = r.POI.Name
		}
		if name == "" {
			name = tomtomShortName(r.Address)
		}
		out = append(out, location.Location{
			ID:        r.ID,
			Name:      name,
			Address:   r.Address.FreeformAddress,
			Latitude:  r.Position.Lat,
			Longitude: r.Position.Lon,
		})
	}
	return out, nil
}

func (p *TomTomProvider) Reverse(ctx context.Context, pt types.Point) (location.Location, string, bool, error) {
	q := url.Values{}
	q.Set("key", p.apiKey)
	u := fmt.Sprintf("%s/reverseGeocode/%s,%s.json?%s", p.baseURL,
		strconv.FormatFloat(pt.Lat, 'f', 6, 64), strconv.FormatFloat(pt.Lng, 'f', 6, 64), q.Encode())

	var resp tomtomReverseResponse
	if err := getJSON(ctx, p.http, p.Name(), u, nil, &resp); err != nil {
		return location.Location{}, "", false, err
	}
	if len(resp.Addresses) == 0 || resp.Addresses[0].Address.FreeformAddress == "" {
		return location.Location{}, "", false, nil
	}

	a := resp.Addresses[0]
	loc := location.Location{
		Name:    tomtomShortName(a.Address),
		Address: a.Address.FreeformAddress,
	}
	if lat, lng, ok := parseLatLon(a.Position); ok {
		loc.Latitude, loc.Longitude = lat, lng
	}
	return loc, a.Address.CountryCode, true, nil
}

func tomtomShortName(a tomtomAddress) string {
	switch {
	case a.StreetName != "":
		return a.StreetName
	case a.Municipality != "":
		return a.Municipality
	default:
		return location.NameFromAddress(a.FreeformAddress)
	}
}

// parseLatLon parses TomTom's "lat,lon" position string.
func parseLatLon(s string) (float64, float64, bool) {
	latS, lngS, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(lngS), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lng, true
}
