package quota

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store handles export_quota persistence.
type Store struct {
	db    *pgxpool.Pool
	limit int
	now   func() time.Time
}

// NewStore returns a Store granting limit exports per month to new rows.
func NewStore(db *pgxpool.Pool, limit int) *Store {
	if limit <= 0 {
		limit = DefaultMonthlyExports
	}
	return &Store{db: db, limit: limit, now: time.Now}
}

func (s *Store) month() string {
	return s.now().UTC().Format("2006-01")
}

// UseExport atomically checks the monthly allowance and deducts one export.
// The counter is reset to export_limit when last_reset_month is behind the
// current month. Returns ErrExhausted when no row was updated.
func (s *Store) UseExport(ctx context.Context, uid string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE export_quota SET
			exports_remaining = CASE WHEN last_reset_month != $1 THEN export_limit - 1 ELSE exports_remaining - 1 END,
			last_reset_month = $1
		WHERE uid = $2 AND (last_reset_month < $1 OR exports_remaining > 0)
	`, s.month(), uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExhausted
	}
	return nil
}

// EnsureUser inserts the row for uid with the default allowance. Existing
// rows are left untouched.
func (s *Store) EnsureUser(ctx context.Context, uid string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO export_quota (uid, exports_remaining, export_limit, last_reset_month)
		VALUES ($1, $2, $2, $3)
		ON CONFLICT (uid) DO NOTHING
	`, uid, s.limit, s.month())
	return err
}

// Remaining reports the allowance left this month without consuming it.
// A user without a row has the full default allowance.
func (s *Store) Remaining(ctx context.Context, uid string) (int, int, error) {
	var remaining, limit int
	err := s.db.QueryRow(ctx, `
		SELECT CASE WHEN last_reset_month < $1 THEN export_limit ELSE exports_remaining END,
		       export_limit
		FROM export_quota
		WHERE uid = $2
	`, s.month(), uid).Scan(&remaining, &limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.limit, s.limit, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return remaining, limit, nil
}

// LogExport records one rendered export. uid is empty for anonymous sessions.
func (s *Store) LogExport(ctx context.Context, sessionID, uid, fileName, archiveKey string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO export_log (session_id, uid, file_name, archive_key)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''))
	`, sessionID, uid, fileName, archiveKey)
	return err
}
