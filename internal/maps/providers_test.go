package maps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	gmaps "googlemaps.github.io/maps"

	"geotag/internal/types"
)

func TestTomTomProvider_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/search/"))
		assert.Equal(t, "IN", r.URL.Query().Get("countrySet"))
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"results":[
			{"id":"tt1","type":"POI","poi":{"name":"India Gate"},
			 "address":{"freeformAddress":"Rajpath, New Delhi 110001","countryCode":"IN"},
			 "position":{"lat":28.6129,"lon":77.2295}},
			{"id":"tt2","type":"Geography",
			 "address":{"freeformAddress":"New Delhi, Delhi","municipality":"New Delhi","countryCode":"IN"},
			 "position":{"lat":28.61,"lon":77.2}}]}`))
	}))
	defer srv.Close()

	p := NewTomTomProvider("k").WithBaseURL(srv.URL)
	res, err := p.Search(context.Background(), "india gate", SearchOptions{CountryCode: "IN", Limit: 10})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "tt1", res[0].ID)
	assert.Equal(t, "India Gate", res[0].Name)
	assert.Equal(t, "New Delhi", res[1].Name)
	assert.InDelta(t, 77.2295, res[0].Longitude, 1e-9)
}

func TestTomTomProvider_Reverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/reverseGeocode/13.050000,80.280000.json")
		_, _ = w.Write([]byte(`{"addresses":[{"address":{"freeformAddress":"Kamarajar Salai, Chennai 600005","streetName":"Kamarajar Salai","countryCode":"IN"},"position":"13.049900,80.280100"}]}`))
	}))
	defer srv.Close()

	p := NewTomTomProvider("k").WithBaseURL(srv.URL)
	loc, cc, found, err := p.Reverse(context.Background(), types.Point{Lat: 13.05, Lng: 80.28})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "IN", cc)
	assert.Equal(t, "Kamarajar Salai", loc.Name)
	assert.InDelta(t, 13.0499, loc.Latitude, 1e-9)
}

func TestTomTomProvider_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errorText":"invalid key"}`))
	}))
	defer srv.Close()

	p := NewTomTomProvider("bad").WithBaseURL(srv.URL)
	_, err := p.Search(context.Background(), "x y", SearchOptions{Limit: 5})
	require.Error(t, err)
	var g *GeocodingError
	require.ErrorAs(t, err, &g)
	assert.Equal(t, http.StatusForbidden, g.Status)
	assert.Equal(t, "tomtom", g.Provider)
}

func TestNominatimProvider_Reverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "geotag-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"place_id":42,"name":"","display_name":"Charminar, Hyderabad, Telangana, India","lat":"17.3616","lon":"78.4747","address":{"country_code":"in"}}`))
	}))
	defer srv.Close()

	p := NewNominatimProvider("geotag-test").WithBaseURL(srv.URL).WithRate(rate.Inf, 1)
	loc, cc, found, err := p.Reverse(context.Background(), types.Point{Lat: 17.36, Lng: 78.47})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "in", cc)
	assert.Equal(t, "Charminar", loc.Name)
	assert.Empty(t, loc.ID)
}

func TestNominatimProvider_ReverseNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	p := NewNominatimProvider("geotag-test").WithBaseURL(srv.URL).WithRate(rate.Inf, 1)
	_, _, found, err := p.Reverse(context.Background(), types.Point{Lat: 10, Lng: 75})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNominatimProvider_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "in", r.URL.Query().Get("countrycodes"))
		_, _ = w.Write([]byte(`[{"place_id":1,"name":"Mysore Palace","display_name":"Mysore Palace, Mysuru, Karnataka, India","lat":"12.3052","lon":"76.6552"},
			{"place_id":2,"name":"broken","display_name":"x","lat":"n/a","lon":"76"}]`))
	}))
	defer srv.Close()

	p := NewNominatimProvider("geotag-test").WithBaseURL(srv.URL).WithRate(rate.Inf, 1)
	res, err := p.Search(context.Background(), "mysore palace", SearchOptions{CountryCode: "IN", Limit: 10})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "osm-1", res[0].ID)
}

func TestGoogleShortNameAndCountry(t *testing.T) {
	comps := []gmaps.AddressComponent{
		{LongName: "Mumbai", ShortName: "Mumbai", Types: []string{"locality", "political"}},
		{LongName: "Marine Drive", ShortName: "Marine Dr", Types: []string{"route"}},
		{LongName: "India", ShortName: "IN", Types: []string{"country", "political"}},
	}
	assert.Equal(t, "Marine Drive", googleShortName(comps))
	assert.Equal(t, "IN", googleCountry(comps))

	assert.Equal(t, "Mumbai", googleShortName(comps[:1]))
	assert.Empty(t, googleShortName(comps[2:]))
	assert.Empty(t, googleCountry(comps[:2]))
}

func TestGoogleProvider_ReverseReportsCountry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{
			"formatted_address":"Dhaka, Bangladesh",
			"address_components":[
				{"long_name":"Dhaka","short_name":"Dhaka","types":["locality","political"]},
				{"long_name":"Bangladesh","short_name":"BD","types":["country","political"]}
			],
			"geometry":{"location":{"lat":23.81,"lng":90.41}}
		}]}`))
	}))
	defer srv.Close()

	c, err := gmaps.NewClient(gmaps.WithAPIKey("test-key"), gmaps.WithBaseURL(srv.URL))
	require.NoError(t, err)
	p := &GoogleProvider{client: c, language: "en"}

	loc, country, ok, err := p.Reverse(context.Background(), types.Point{Lat: 23.81, Lng: 90.41})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "BD", country)
	assert.Equal(t, "Dhaka", loc.Name)
	assert.Equal(t, "Dhaka, Bangladesh", loc.Address)
}
