package core

import (
	"errors"
	"strings"
	"time"
)

// Frequency is how often a recurring template produces a ledger entry.
type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Biweekly  Frequency = "biweekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

var (
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidInterval  = errors.New("interval must be at least 1")
	ErrEndBeforeStart   = errors.New("end date is before the start date")
)

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// RecurringTemplate generates one transaction per occurrence. NextExecution
// is zero once the template has run its course.
type RecurringTemplate struct {
	ID            string
	UserID        string
	Name          string
	Amount        Money // signed like Transaction.Amount
	Type          TransactionType
	Description   string
	Category      string
	Currency      string
	Frequency     Frequency
	Interval      int
	StartDate     Date
	EndDate       *Date
	MaxExecutions int // 0 means unlimited
	NextExecution Date
	Executions    int
	Active        bool
	CreatedAt     time.Time
}

func (r RecurringTemplate) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if len(r.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if r.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if !r.Type.Valid() {
		return ErrInvalidTxType
	}
	if !r.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if r.Interval < 1 {
		return ErrInvalidInterval
	}
	if err := r.StartDate.Validate(); err != nil {
		return err
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate.Time) {
		return ErrEndBeforeStart
	}
	if r.MaxExecutions < 0 {
		return errors.New("max executions cannot be negative")
	}
	return nil
}

// Finished reports whether the template will never run again.
func (r RecurringTemplate) Finished() bool {
	return r.NextExecution.IsZero()
}

// DueOn reports whether an occurrence is scheduled on or before day.
func (r RecurringTemplate) DueOn(day Date) bool {
	return r.Active && !r.Finished() && !r.NextExecution.After(day.Time)
}
