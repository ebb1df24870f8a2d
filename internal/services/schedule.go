// This file holds the schedule strategies of recurring templates. Each
// frequency has a Scheduler that moves a date forward by one occurrence.

package services

import (
	"fmt"
	"time"

	"conti/internal/core"
)

// Scheduler advances a recurring date. anchorDay is the day of month of the
// template's start date; month-based schedules return to it whenever the
// target month is long enough.
type Scheduler interface {
	Next(from core.Date, interval, anchorDay int) core.Date
}

// DayScheduler steps a fixed number of days per interval.
type DayScheduler struct {
	Days int
}

func (s DayScheduler) Next(from core.Date, interval, _ int) core.Date {
	return core.Date{Time: from.AddDate(0, 0, s.Days*interval)}
}

// MonthScheduler steps whole calendar months, clamping to the last day of
// shorter months.
type MonthScheduler struct {
	Months int
}

func (s MonthScheduler) Next(from core.Date, interval, anchorDay int) core.Date {
	y, m, _ := from.Date()
	target := time.Date(y, m+time.Month(s.Months*interval), 1, 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(target.Year(), target.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	day := anchorDay
	if day > lastDay {
		day = lastDay
	}
	if day < 1 {
		day = 1
	}
	return core.NewDate(target.Year(), int(target.Month()), day)
}

// GetScheduler returns the scheduler of a frequency.
func GetScheduler(f core.Frequency) (Scheduler, error) {
	switch f {
	case core.Daily:
		return DayScheduler{Days: 1}, nil
	case core.Weekly:
		return DayScheduler{Days: 7}, nil
	case core.Biweekly:
		return DayScheduler{Days: 14}, nil
	case core.Monthly:
		return MonthScheduler{Months: 1}, nil
	case core.Quarterly:
		return MonthScheduler{Months: 3}, nil
	case core.Yearly:
		return MonthScheduler{Months: 12}, nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrInvalidFrequency, f)
}

// advance counts one execution of r and moves its next execution forward.
// The template deactivates itself when it reaches MaxExecutions or the next
// date would fall after EndDate.
func advance(r core.RecurringTemplate) (core.RecurringTemplate, error) {
	sched, err := GetScheduler(r.Frequency)
	if err != nil {
		return r, err
	}
	r.Executions++
	next := sched.Next(r.NextExecution, r.Interval, r.StartDate.Day())
	switch {
	case r.MaxExecutions > 0 && r.Executions >= r.MaxExecutions,
		r.EndDate != nil && next.After(r.EndDate.Time):
		r.NextExecution = core.Date{}
		r.Active = false
	default:
		r.NextExecution = next
	}
	return r, nil
}
