// README: Export quota definitions shared by the registered and anonymous counters.
package quota

import (
	"context"
	"errors"
	"fmt"
)

// ErrExhausted is returned by the store when no exports remain this month.
var ErrExhausted = errors.New("export quota exhausted")

const (
	// DefaultMonthlyExports is the allowance granted to a signed-in user per month.
	DefaultMonthlyExports = 25
	// AnonymousExports is the monthly allowance of a guest without a user.
	AnonymousExports = 3
)

// Quota is the export allowance of one caller. RecordExport returns false
// and changes nothing once the limit is reached.
type Quota interface {
	CanExportMore(ctx context.Context) (bool, error)
	RemainingExports(ctx context.Context) (int, error)
	ExportLimit(ctx context.Context) (int, error)
	RecordExport(ctx context.Context) (bool, error)
}

// ExceededError blocks an export. Anonymous callers are prompted to log in.
type ExceededError struct {
	Limit     int
	Anonymous bool
}

func (e *ExceededError) Error() string {
	if e.Anonymous {
		return fmt.Sprintf("You have used all %d free exports. Log in to export more photos.", e.Limit)
	}
	return fmt.Sprintf("You have reached your limit of %d exports this month.", e.Limit)
}

// IsExceeded reports whether err is an *ExceededError.
func IsExceeded(err error) bool {
	var e *ExceededError
	return errors.As(err, &e)
}

// Status is the read-only view served to clients.
type Status struct {
	Remaining int  `json:"remaining"`
	Limit     int  `json:"limit"`
	Anonymous bool `json:"anonymous"`
}
