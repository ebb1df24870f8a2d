package split

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNoParticipants       = errors.New("at least one participant is required")
	ErrInvalidTotal         = errors.New("total must be greater than zero")
	ErrNegativeValue        = errors.New("value cannot be negative")
	ErrMissingValue         = errors.New("value is required")
	ErrCustomSum            = errors.New("custom amounts must add up to the total")
	ErrPercentageSum        = errors.New("percentages must add up to 100")
	ErrPercentageRange      = errors.New("percentage must be between 0 and 100")
	ErrZeroShares           = errors.New("shares must add up to more than zero")
	ErrFractionalShares     = errors.New("shares must be whole numbers")
	ErrDuplicateParticipant = errors.New("participant listed more than once")
	ErrUnknownParticipant   = errors.New("participant is not part of the split")
	ErrUnknownMethod        = errors.New("unknown split method")
)

// ValidationError reports which input field was rejected and why. For sum
// mismatches Discrepancy holds the signed difference (values minus expected).
type ValidationError struct {
	Field       string
	Reason      error
	Discrepancy decimal.Decimal
}

func (e *ValidationError) Error() string {
	if !e.Discrepancy.IsZero() {
		return fmt.Sprintf("split: %s: %v (off by %s)", e.Field, e.Reason, e.Discrepancy.String())
	}
	return fmt.Sprintf("split: %s: %v", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

func invalid(field string, reason error) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
