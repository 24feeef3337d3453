package maps

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"geotag/internal/modules/location"
	"geotag/internal/types"
)

const nominatimBaseURL = "https://nominatim.openstreetmap.org"

// NominatimProvider is the free OpenStreetMap fallback. The public instance
// allows one request per second and requires an identifying User-Agent.
type NominatimProvider struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

func NewNominatimProvider(userAgent string) *NominatimProvider {
	return &NominatimProvider{
		baseURL:   nominatimBaseURL,
		userAgent: userAgent,
		http:      newHTTPClient(),
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (p *NominatimProvider) WithBaseURL(u string) *NominatimProvider {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

// WithRate overrides the request rate (tests run without throttling).
func (p *NominatimProvider) WithRate(l rate.Limit, burst int) *NominatimProvider {
	p.limiter = rate.NewLimiter(l, burst)
	return p
}

func (p *NominatimProvider) Name() string { return "nominatim" }

type nominatimPlace struct {
	PlaceID     int64  `json:"place_id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Error       string `json:"error"`
	Address     struct {
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

func (p *NominatimProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]location.Location, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("q", query)
	q.Set("addressdetails", "1")
	q.Set("limit", strconv.Itoa(opts.Limit))
	if opts.CountryCode != "" {
		q.Set("countrycodes", strings.ToLower(opts.CountryCode))
	}

	var places []nominatimPlace
	if err := getJSON(ctx, p.http, p.Name(), p.baseURL+"/search?"+q.Encode(), p.header(), &places); err != nil {
		return nil, err
	}

	out := make([]location.Location, 0, len(places))
	for _, pl := range places {
		loc, ok := pl.toLocation()
		if !ok {
			continue
		}
		out = append(out, loc)
	}
	return out, nil
}

func (p *NominatimProvider) Reverse(ctx context.Context, pt types.Point) (location.Location, string, bool, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return location.Location{}, "", false, err
	}
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(pt.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(pt.Lng, 'f', 6, 64))
	q.Set("addressdetails", "1")

	var pl nominatimPlace
	if err := getJSON(ctx, p.http, p.Name(), p.baseURL+"/reverse?"+q.Encode(), p.header(), &pl); err != nil {
		return location.Location{}, "", false, err
	}
	if pl.Error != "" || pl.DisplayName == "" {
		return location.Location{}, "", false, nil
	}
	loc, ok := pl.toLocation()
	if !ok {
		return location.Location{}, "", false, nil
	}
	// Reverse results are client-identified; the OSM place id is not stable.
	loc.ID = ""
	return loc, pl.Address.CountryCode, true, nil
}

func (p *NominatimProvider) header() http.Header {
	h := http.Header{}
	h.Set("User-Agent", p.userAgent)
	return h
}

func (pl nominatimPlace) toLocation() (location.Location, bool) {
	lat, err1 := strconv.ParseFloat(pl.Lat, 64)
	lng, err2 := strconv.ParseFloat(pl.Lon, 64)
	if err1 != nil || err2 != nil {
		return location.Location{}, false
	}
	name := pl.Name
	if name == "" {
		name = location.NameFromAddress(pl.DisplayName)
	}
	return location.Location{
		ID:        fmt.Sprintf("osm-%d", pl.PlaceID),
		Name:      name,
		Address:   pl.DisplayName,
		Latitude:  lat,
		Longitude: lng,
	}, true
}
