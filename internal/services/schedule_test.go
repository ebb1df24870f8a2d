package services

import (
	"errors"
	"testing"

	"conti/internal/core"
)

func TestSchedulers_Next(t *testing.T) {
	tests := []struct {
		name      string
		freq      core.Frequency
		from      core.Date
		interval  int
		anchorDay int
		want      core.Date
	}{
		{"daily", core.Daily, core.NewDate(2025, 2, 27), 3, 27, core.NewDate(2025, 3, 2)},
		{"weekly", core.Weekly, core.NewDate(2025, 3, 1), 1, 1, core.NewDate(2025, 3, 8)},
		{"biweekly", core.Biweekly, core.NewDate(2025, 3, 1), 2, 1, core.NewDate(2025, 3, 29)},
		{"monthly clamps to february", core.Monthly, core.NewDate(2025, 1, 31), 1, 31, core.NewDate(2025, 2, 28)},
		{"monthly returns to anchor", core.Monthly, core.NewDate(2025, 2, 28), 1, 31, core.NewDate(2025, 3, 31)},
		{"monthly leap year", core.Monthly, core.NewDate(2024, 1, 30), 1, 30, core.NewDate(2024, 2, 29)},
		{"quarterly crosses year", core.Quarterly, core.NewDate(2025, 11, 15), 1, 15, core.NewDate(2026, 2, 15)},
		{"yearly from leap day", core.Yearly, core.NewDate(2024, 2, 29), 1, 29, core.NewDate(2025, 2, 28)},
		{"every two months", core.Monthly, core.NewDate(2025, 12, 10), 2, 10, core.NewDate(2026, 2, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := GetScheduler(tt.freq)
			if err != nil {
				t.Fatal(err)
			}
			got := s.Next(tt.from, tt.interval, tt.anchorDay)
			if !got.Equal(tt.want.Time) {
				t.Errorf("Next() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGetScheduler_Unknown(t *testing.T) {
	if _, err := GetScheduler("hourly"); !errors.Is(err, core.ErrInvalidFrequency) {
		t.Fatalf("GetScheduler() error = %v", err)
	}
}

func TestGetScheduler_EveryFrequency(t *testing.T) {
	for _, f := range []core.Frequency{core.Daily, core.Weekly, core.Biweekly, core.Monthly, core.Quarterly, core.Yearly} {
		if !f.Valid() {
			t.Fatalf("%s should be valid", f)
		}
		first, err := GetScheduler(f)
		if err != nil {
			t.Fatalf("GetScheduler(%s) error = %v", f, err)
		}
		again, _ := GetScheduler(f)
		if first != again {
			t.Errorf("GetScheduler(%s) returned %#v then %#v", f, first, again)
		}
	}
}

func TestAdvance(t *testing.T) {
	end := core.NewDate(2025, 3, 20)
	base := core.RecurringTemplate{
		Frequency: core.Weekly, Interval: 1, StartDate: core.NewDate(2025, 3, 1),
		NextExecution: core.NewDate(2025, 3, 1), Active: true,
	}

	r, err := advance(base)
	if err != nil {
		t.Fatal(err)
	}
	if r.Executions != 1 || !r.NextExecution.Equal(core.NewDate(2025, 3, 8).Time) || !r.Active {
		t.Fatalf("advance = %+v", r)
	}

	limited := base
	limited.MaxExecutions = 1
	if r, _ = advance(limited); r.Active || !r.Finished() {
		t.Errorf("max executions reached: %+v", r)
	}

	ending := base
	ending.EndDate = &end
	ending.NextExecution = core.NewDate(2025, 3, 15)
	if r, _ = advance(ending); r.Active || !r.Finished() {
		t.Errorf("next after end date: %+v", r)
	}
}
