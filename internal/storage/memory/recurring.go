package memory

import (
	"context"
	"fmt"
	"slices"

	"conti/internal/core"
)

func copyRecurring(r core.RecurringTemplate) core.RecurringTemplate {
	if r.EndDate != nil {
		end := *r.EndDate
		r.EndDate = &end
	}
	return r
}

func (s *Store) CreateRecurring(_ context.Context, r core.RecurringTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recurring[r.ID]; ok {
		return fmt.Errorf("recurring template %s: %w", r.ID, core.ErrConflict)
	}
	s.recurring[r.ID] = copyRecurring(r)
	s.recurringOrder = append(s.recurringOrder, r.ID)
	return nil
}

func (s *Store) GetRecurring(_ context.Context, userID, id string) (core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recurring[id]
	if !ok || r.UserID != userID {
		return core.RecurringTemplate{}, notFound("recurring template")
	}
	return copyRecurring(r), nil
}

func (s *Store) ListRecurring(_ context.Context, userID string) ([]core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringTemplate
	for _, id := range s.recurringOrder {
		if r := s.recurring[id]; r.UserID == userID {
			out = append(out, copyRecurring(r))
		}
	}
	return out, nil
}

func (s *Store) SetRecurringActive(_ context.Context, userID, id string, active bool) (core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recurring[id]
	if !ok || r.UserID != userID {
		return core.RecurringTemplate{}, notFound("recurring template")
	}
	r.Active = active
	s.recurring[id] = r
	return copyRecurring(r), nil
}

func (s *Store) DueRecurring(_ context.Context, day core.Date, limit int) ([]core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringTemplate
	for _, id := range s.recurringOrder {
		if r := s.recurring[id]; r.DueOn(day) {
			out = append(out, copyRecurring(r))
		}
	}
	slices.SortStableFunc(out, func(a, b core.RecurringTemplate) int {
		if c := a.NextExecution.Compare(b.NextExecution.Time); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return page(out, limit, 0), nil
}

func (s *Store) RecordExecution(_ context.Context, tx core.Transaction, r core.RecurringTemplate, expectedNext core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.recurring[r.ID]
	if !ok {
		return notFound("recurring template")
	}
	if !stored.NextExecution.Equal(expectedNext.Time) {
		return fmt.Errorf("recurring template %s moved past %s: %w", r.ID, expectedNext, core.ErrConflict)
	}
	if _, ok := s.txs[tx.ID]; ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, core.ErrConflict)
	}
	stored.NextExecution = r.NextExecution
	stored.Executions = r.Executions
	stored.Active = r.Active
	s.recurring[r.ID] = stored
	s.insertLocked(tx)
	return nil
}
