// README: Location service validates canonical records and keeps a per-user history.
package location

import (
	"context"
	"strings"

	"geotag/internal/types"
)

const defaultRecentLimit = 10

// RecentStore persists recently selected locations.
type RecentStore interface {
	PushRecent(ctx context.Context, owner types.ID, loc Location, limit int) error
	Recent(ctx context.Context, owner types.ID, limit int) ([]Location, error)
}

type Service struct {
	store  RecentStore
	region Region
}

func NewService(store RecentStore, region Region) *Service {
	return &Service{store: store, region: region}
}

func (s *Service) Region() Region {
	return s.region
}

// Normalize trims text fields, assigns an ID when missing and validates the
// record against the region. The returned location is safe to fold into a draft.
func (s *Service) Normalize(loc Location) (Location, error) {
	loc.Name = strings.TrimSpace(loc.Name)
	loc.Address = strings.TrimSpace(loc.Address)
	if loc.Name == "" && loc.Address != "" {
		loc.Name = NameFromAddress(loc.Address)
	}
	if loc.ID == "" {
		loc.ID = NewID()
	}
	if err := s.region.Check(loc.Point()); err != nil {
		return Location{}, err
	}
	if !loc.Complete() {
		return Location{}, &ValidationError{Field: "location", Reason: "name, address and coordinates are required", Err: ErrIncomplete}
	}
	return loc, nil
}

// Remember records a selection for owner. Anonymous owners are ignored.
func (s *Service) Remember(ctx context.Context, owner types.ID, loc Location) error {
	if owner == "" || s.store == nil {
		return nil
	}
	return s.store.PushRecent(ctx, owner, loc, defaultRecentLimit)
}

func (s *Service) Recent(ctx context.Context, owner types.ID) ([]Location, error) {
	if owner == "" || s.store == nil {
		return nil, nil
	}
	return s.store.Recent(ctx, owner, defaultRecentLimit)
}
