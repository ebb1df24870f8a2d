package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"conti/internal/core"
	"conti/internal/storage"
)

func (s *Store) CreateAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("account %s: %w", a.ID, core.ErrConflict)
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) GetAccount(_ context.Context, userID, id string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.UserID != userID {
		return core.Account{}, notFound("account")
	}
	return a, nil
}

func (s *Store) ListAccounts(_ context.Context, userID string, includeArchived bool) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Account
	for _, a := range s.accounts {
		if a.UserID == userID && (a.Active || includeArchived) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b core.Account) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) SetAccountActive(_ context.Context, userID, id string, active bool) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.UserID != userID {
		return core.Account{}, notFound("account")
	}
	a.Active = active
	s.accounts[id] = a
	return a, nil
}

func (s *Store) LedgerTotals(_ context.Context, userID string) (map[string]storage.LedgerTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]storage.LedgerTotal)
	for _, row := range s.txs {
		tx := row.tx
		if tx.UserID != userID || tx.AccountID == "" || tx.Status == core.TxCancelled {
			continue
		}
		t := out[tx.AccountID]
		t.Cents += tx.Amount.Cents
		t.Entries++
		out[tx.AccountID] = t
	}
	return out, nil
}

func (s *Store) CreateTransfer(_ context.Context, out, in core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range []core.Transaction{out, in} {
		if _, ok := s.txs[tx.ID]; ok {
			return fmt.Errorf("transaction %s: %w", tx.ID, core.ErrConflict)
		}
	}
	s.insertLocked(out)
	s.insertLocked(in)
	return nil
}

func copyGoal(g core.Goal) core.Goal {
	if g.TargetDate != nil {
		d := *g.TargetDate
		g.TargetDate = &d
	}
	return g
}

func (s *Store) CreateGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[g.ID]; ok {
		return fmt.Errorf("goal %s: %w", g.ID, core.ErrConflict)
	}
	s.goals[g.ID] = copyGoal(g)
	s.goalOrder = append(s.goalOrder, g.ID)
	return nil
}

func (s *Store) GetGoal(_ context.Context, userID, id string) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return core.Goal{}, notFound("goal")
	}
	return copyGoal(g), nil
}

// ListGoals returns the newest goals first.
func (s *Store) ListGoals(_ context.Context, userID string) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Goal
	for i := len(s.goalOrder) - 1; i >= 0; i-- {
		if g := s.goals[s.goalOrder[i]]; g.UserID == userID {
			out = append(out, copyGoal(g))
		}
	}
	return out, nil
}

func (s *Store) UpdateGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.goals[g.ID]
	if !ok || stored.UserID != g.UserID {
		return notFound("goal")
	}
	stored.Contributed = g.Contributed
	stored.Status = g.Status
	s.goals[g.ID] = stored
	return nil
}
