package maps

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"geotag/internal/modules/location"
	"geotag/internal/types"
)

const (
	DefaultMaxResults = 10
	MaxResultsCap     = 15
	MinQueryLength    = 2

	// duplicateRadiusMeters collapses the same place reported twice.
	duplicateRadiusMeters = 25
)

// Client resolves text queries and coordinates against an ordered chain of
// providers and normalizes everything into location.Location.
type Client struct {
	providers  []Provider
	cache      *Cache
	region     location.Region
	maxResults int
	log        zerolog.Logger
}

type Option func(*Client)

func WithCache(c *Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

func WithMaxResults(n int) Option {
	return func(cl *Client) {
		if n < 1 {
			n = 1
		}
		if n > MaxResultsCap {
			n = MaxResultsCap
		}
		cl.maxResults = n
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

func NewClient(region location.Region, providers []Provider, opts ...Option) *Client {
	c := &Client{
		providers:  providers,
		region:     region,
		maxResults: DefaultMaxResults,
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Region() location.Region {
	return c.region
}

// Search returns candidates for query ranked by provider relevance, limited
// to the client's region and capped at the configured result count. Queries
// shorter than MinQueryLength return no candidates without calling a provider.
func (c *Client) Search(ctx context.Context, query string) ([]location.Location, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return nil, nil
	}
	if len(c.providers) == 0 {
		return nil, ErrNoProviders
	}

	key := "search:" + strings.ToLower(query)
	if c.cache != nil {
		if v, ok := c.cache.Get(ctx, key); ok {
			return v, nil
		}
	}

	opts := SearchOptions{CountryCode: c.region.CountryCode, Limit: c.maxResults}
	var lastErr error
	for _, p := range c.providers {
		res, err := p.Search(ctx, query, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn().Err(err).Str("provider", p.Name()).Str("query", query).Msg("search failed, trying next provider")
			lastErr = asTransport(p.Name(), err)
			continue
		}
		out := c.filter(res)
		if c.cache != nil {
			c.cache.Set(ctx, key, out)
		}
		return out, nil
	}
	return nil, lastErr
}

// SearchSeq is a lazy, single-use view over Search. The query is only sent
// when the sequence is first ranged over; ranging again yields nothing. A
// failure is yielded once as the error half of the pair.
func (c *Client) SearchSeq(ctx context.Context, query string) iter.Seq2[location.Location, error] {
	consumed := false
	return func(yield func(location.Location, error) bool) {
		if consumed {
			return
		}
		consumed = true
		res, err := c.Search(ctx, query)
		if err != nil {
			yield(location.Location{}, err)
			return
		}
		for _, l := range res {
			if !yield(l, nil) {
				return
			}
		}
	}
}

// Reverse resolves p to at most one address. It returns a validation error
// wrapping location.ErrOutOfRegion when p or the resolved address lies
// outside the region, ErrNoResult when no provider knows the point, and a
// *GeocodingError when every provider failed.
func (c *Client) Reverse(ctx context.Context, p types.Point) (location.Location, error) {
	if err := c.region.Check(p); err != nil {
		return location.Location{}, err
	}
	if len(c.providers) == 0 {
		return location.Location{}, ErrNoProviders
	}

	key := fmt.Sprintf("reverse:%.5f,%.5f", p.Lat, p.Lng)
	if c.cache != nil {
		if v, ok := c.cache.Get(ctx, key); ok && len(v) == 1 {
			return v[0], nil
		}
	}

	var lastErr error
	for _, prov := range c.providers {
		loc, cc, found, err := prov.Reverse(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return location.Location{}, ctx.Err()
			}
			c.log.Warn().Err(err).Str("provider", prov.Name()).Msg("reverse geocode failed, trying next provider")
			lastErr = asTransport(prov.Name(), err)
			continue
		}
		if !found {
			continue
		}
		loc, err = c.accept(loc, cc, p)
		if err != nil {
			return location.Location{}, err
		}
		if c.cache != nil {
			c.cache.Set(ctx, key, []location.Location{loc})
		}
		return loc, nil
	}
	if lastErr != nil {
		return location.Location{}, lastErr
	}
	return location.Location{}, ErrNoResult
}

func (c *Client) accept(loc location.Location, countryCode string, clicked types.Point) (location.Location, error) {
	if countryCode != "" && c.region.CountryCode != "" && !strings.EqualFold(countryCode, c.region.CountryCode) {
		return location.Location{}, &location.ValidationError{
			Field:  "address",
			Reason: fmt.Sprintf("resolved address is in %s, outside %s", strings.ToUpper(countryCode), c.region.Name),
			Err:    location.ErrOutOfRegion,
		}
	}
	if loc.Latitude == 0 && loc.Longitude == 0 {
		loc.Latitude, loc.Longitude = clicked.Lat, clicked.Lng
	}
	if err := c.region.Check(loc.Point()); err != nil {
		return location.Location{}, err
	}
	if loc.Name == "" {
		loc.Name = location.NameFromAddress(loc.Address)
	}
	if loc.ID == "" {
		loc.ID = location.NewID()
	}
	return loc, nil
}

func (c *Client) filter(in []location.Location) []location.Location {
	out := make([]location.Location, 0, len(in))
	for _, l := range in {
		if !c.region.Contains(l.Point()) {
			continue
		}
		if l.Name == "" {
			l.Name = location.NameFromAddress(l.Address)
		}
		if isDuplicate(out, l) {
			continue
		}
		out = append(out, l)
		if len(out) >= c.maxResults {
			break
		}
	}
	return out
}

func isDuplicate(seen []location.Location, l location.Location) bool {
	for _, s := range seen {
		if location.SamePlace(s, l, duplicateRadiusMeters) {
			return true
		}
	}
	return false
}

func asTransport(provider string, err error) error {
	var g *GeocodingError
	if errors.As(err, &g) {
		return err
	}
	return &GeocodingError{Provider: provider, Err: err}
}
