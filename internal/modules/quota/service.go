// README: Quota service hands out a per-caller Quota: a Postgres-backed monthly
// allowance for signed-in users and an in-memory one for anonymous guests.
package quota

import (
	"context"
	"errors"

	"geotag/internal/types"
)

// UserStore is the persistence the registered quota needs.
type UserStore interface {
	UseExport(ctx context.Context, uid string) error
	EnsureUser(ctx context.Context, uid string) error
	Remaining(ctx context.Context, uid string) (remaining, limit int, err error)
}

type Service struct {
	store UserStore
	anon  *MemoryCounter
}

// NewService creates a Service. A nil store treats every caller as anonymous.
func NewService(store UserStore, anon *MemoryCounter) *Service {
	if anon == nil {
		anon = NewMemoryCounter(AnonymousExports)
	}
	return &Service{store: store, anon: anon}
}

// For returns the quota of owner, or of the guest guestKey when owner is
// empty. Every session of one guest shares its allowance.
func (s *Service) For(owner types.ID, guestKey string) Quota {
	if owner == "" || s.store == nil {
		return &anonymousQuota{counter: s.anon, key: guestKey}
	}
	return &userQuota{store: s.store, uid: string(owner)}
}

func (s *Service) Status(ctx context.Context, owner types.ID, guestKey string) (Status, error) {
	q := s.For(owner, guestKey)
	remaining, err := q.RemainingExports(ctx)
	if err != nil {
		return Status{}, err
	}
	limit, err := q.ExportLimit(ctx)
	if err != nil {
		return Status{}, err
	}
	_, anon := q.(*anonymousQuota)
	return Status{Remaining: remaining, Limit: limit, Anonymous: anon}, nil
}

// Exceeded builds the error shown when q refuses an export.
func Exceeded(ctx context.Context, q Quota) error {
	limit, err := q.ExportLimit(ctx)
	if err != nil {
		return err
	}
	_, anon := q.(*anonymousQuota)
	return &ExceededError{Limit: limit, Anonymous: anon}
}

type userQuota struct {
	store UserStore
	uid   string
}

func (q *userQuota) CanExportMore(ctx context.Context) (bool, error) {
	n, err := q.RemainingExports(ctx)
	return n > 0, err
}

func (q *userQuota) RemainingExports(ctx context.Context) (int, error) {
	remaining, _, err := q.store.Remaining(ctx, q.uid)
	return remaining, err
}

func (q *userQuota) ExportLimit(ctx context.Context) (int, error) {
	_, limit, err := q.store.Remaining(ctx, q.uid)
	return limit, err
}

// RecordExport deducts one export. A missing row is created and the
// deduction retried once.
func (q *userQuota) RecordExport(ctx context.Context) (bool, error) {
	err := q.store.UseExport(ctx, q.uid)
	if errors.Is(err, ErrExhausted) {
		if initErr := q.store.EnsureUser(ctx, q.uid); initErr != nil {
			return false, initErr
		}
		err = q.store.UseExport(ctx, q.uid)
	}
	if errors.Is(err, ErrExhausted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type anonymousQuota struct {
	counter *MemoryCounter
	key     string
}

func (q *anonymousQuota) CanExportMore(context.Context) (bool, error) {
	return q.counter.Remaining(q.key) > 0, nil
}

func (q *anonymousQuota) RemainingExports(context.Context) (int, error) {
	return q.counter.Remaining(q.key), nil
}

func (q *anonymousQuota) ExportLimit(context.Context) (int, error) {
	return q.counter.Limit(), nil
}

func (q *anonymousQuota) RecordExport(context.Context) (bool, error) {
	return q.counter.Use(q.key), nil
}
