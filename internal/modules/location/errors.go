package location

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfRegion = errors.New("coordinates outside supported region")
	ErrIncomplete  = errors.New("location fields incomplete")
)

// ValidationError reports a field that blocks forward progress. It is shown
// next to the offending control and never corrected silently.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
