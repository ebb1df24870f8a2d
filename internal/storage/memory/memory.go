// Package memory is an in-process implementation of storage.Store, used by
// the memory backend and by tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"conti/internal/core"
	"conti/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	groups   map[string]core.Group
	members  map[string][]core.Member // by group, in join order
	expenses map[string]*expenseRow
	order    []string // expense IDs in insertion order
	txs      map[string]*txRow
	txOrder  []string
	shareTxs map[string]string // expenseID/userID -> transaction ID
	seq      int

	recurring      map[string]core.RecurringTemplate
	recurringOrder []string

	accounts  map[string]core.Account
	goals     map[string]core.Goal
	goalOrder []string
}

type expenseRow struct {
	expense   core.GroupExpense
	projected core.ExpenseStatus
}

type txRow struct {
	tx        core.Transaction
	sheetsRef string
	seq       int
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		groups:   make(map[string]core.Group),
		members:  make(map[string][]core.Member),
		expenses: make(map[string]*expenseRow),
		txs:      make(map[string]*txRow),
		shareTxs: make(map[string]string),

		recurring: make(map[string]core.RecurringTemplate),
		accounts:  make(map[string]core.Account),
		goals:     make(map[string]core.Goal),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func notFound(what string) error { return fmt.Errorf("%s: %w", what, core.ErrNotFound) }

func (s *Store) CreateGroup(_ context.Context, g core.Group, owner core.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; ok {
		return fmt.Errorf("group %s: %w", g.ID, core.ErrConflict)
	}
	s.groups[g.ID] = g
	s.members[g.ID] = []core.Member{owner}
	return nil
}

func (s *Store) GetGroup(_ context.Context, id string) (core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return core.Group{}, notFound("group")
	}
	return g, nil
}

func (s *Store) ListGroupsForUser(_ context.Context, userID string) ([]core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Group
	for id, ms := range s.members {
		if slices.ContainsFunc(ms, func(m core.Member) bool { return m.UserID == userID }) {
			out = append(out, s.groups[id])
		}
	}
	slices.SortFunc(out, func(a, b core.Group) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) UpsertMember(_ context.Context, m core.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[m.GroupID]; !ok {
		return notFound("group")
	}
	ms := s.members[m.GroupID]
	for i := range ms {
		if ms[i].UserID == m.UserID {
			ms[i].Role = m.Role
			if m.Name != "" {
				ms[i].Name = m.Name
			}
			return nil
		}
	}
	s.members[m.GroupID] = append(ms, m)
	return nil
}

func (s *Store) RemoveMember(_ context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.members[groupID]
	i := slices.IndexFunc(ms, func(m core.Member) bool { return m.UserID == userID })
	if i < 0 {
		return notFound("member")
	}
	s.members[groupID] = slices.Delete(ms, i, i+1)
	return nil
}

func (s *Store) GetMember(_ context.Context, groupID, userID string) (core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members[groupID] {
		if m.UserID == userID {
			return m, nil
		}
	}
	return core.Member{}, notFound("member")
}

func (s *Store) ListMembers(_ context.Context, groupID string) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.members[groupID]), nil
}

// copyExpense detaches the shares slice from the stored row.
func copyExpense(e core.GroupExpense) core.GroupExpense {
	e.Shares = slices.Clone(e.Shares)
	return e
}

func (s *Store) CreateExpense(_ context.Context, e core.GroupExpense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[e.GroupID]; !ok {
		return notFound("group")
	}
	if _, ok := s.expenses[e.ID]; ok {
		return fmt.Errorf("expense %s: %w", e.ID, core.ErrConflict)
	}
	e = copyExpense(e)
	for i := range e.Shares {
		e.Shares[i].ExpenseID = e.ID
	}
	s.expenses[e.ID] = &expenseRow{expense: e}
	s.order = append(s.order, e.ID)
	return nil
}

func (s *Store) GetExpense(_ context.Context, groupID, id string) (core.GroupExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.expenses[id]
	if !ok || row.expense.GroupID != groupID {
		return core.GroupExpense{}, notFound("expense")
	}
	return copyExpense(row.expense), nil
}

func matchesExpense(e core.GroupExpense, q storage.ExpenseQuery) bool {
	if e.GroupID != q.GroupID {
		return false
	}
	if q.Status != "" && e.Status != q.Status {
		return false
	}
	if q.PaidBy != "" && e.PaidBy != q.PaidBy {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(e.Title), needle) && !strings.Contains(strings.ToLower(e.Description), needle) {
			return false
		}
	}
	return true
}

func (s *Store) ListExpenses(_ context.Context, q storage.ExpenseQuery) ([]core.GroupExpense, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []core.GroupExpense
	for _, id := range s.order {
		if e := s.expenses[id].expense; matchesExpense(e, q) {
			all = append(all, copyExpense(e))
		}
	}
	// newest first; ties keep the most recent insertion first
	slices.Reverse(all)
	slices.SortStableFunc(all, func(a, b core.GroupExpense) int { return b.Date.Compare(a.Date.Time) })
	return page(all, q.Limit, q.Offset), len(all), nil
}

func (s *Store) AllGroupExpenses(_ context.Context, groupID string) ([]core.GroupExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.GroupExpense
	for _, id := range s.order {
		if e := s.expenses[id].expense; e.GroupID == groupID {
			out = append(out, copyExpense(e))
		}
	}
	return out, nil
}

func (s *Store) SetExpenseStatus(_ context.Context, groupID, id string, status core.ExpenseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.expenses[id]
	if !ok || row.expense.GroupID != groupID {
		return notFound("expense")
	}
	row.expense.Status = status
	return nil
}

func (s *Store) AddPayment(_ context.Context, expenseID, userID string, amount core.Money, at time.Time) (core.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.expenses[expenseID]
	if !ok {
		return core.Share{}, notFound("expense")
	}
	for i := range row.expense.Shares {
		sh := &row.expense.Shares[i]
		if sh.UserID == userID {
			sh.Paid = sh.Paid.Add(amount)
			t := at
			sh.PaymentDate = &t
			return *sh, nil
		}
	}
	return core.Share{}, notFound("share")
}

func (s *Store) PendingProjection(_ context.Context, limit int) ([]core.GroupExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.GroupExpense
	for _, id := range s.order {
		row := s.expenses[id]
		if row.projected != row.expense.Status {
			out = append(out, copyExpense(row.expense))
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) MarkProjected(_ context.Context, id string, status core.ExpenseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.expenses[id]
	if !ok {
		return notFound("expense")
	}
	row.projected = status
	return nil
}

func (s *Store) insertLocked(tx core.Transaction) {
	s.seq++
	s.txs[tx.ID] = &txRow{tx: tx, seq: s.seq}
	s.txOrder = append(s.txOrder, tx.ID)
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[tx.ID]; ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, core.ErrConflict)
	}
	s.insertLocked(tx)
	return nil
}

func (s *Store) UpsertShareTransaction(_ context.Context, tx core.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tx.GroupExpenseID + "/" + tx.UserID
	if _, ok := s.shareTxs[key]; ok {
		return false, nil
	}
	s.shareTxs[key] = tx.ID
	s.insertLocked(tx)
	return true, nil
}

func (s *Store) SetStatusByExpense(_ context.Context, expenseID string, status core.TransactionStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.txs {
		if row.tx.GroupExpenseID == expenseID && row.tx.Status != status {
			row.tx.Status = status
			n++
		}
	}
	return n, nil
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.txs[id]
	if !ok || row.tx.UserID != userID {
		return core.Transaction{}, notFound("transaction")
	}
	return row.tx, nil
}

func (s *Store) matchesTx(tx core.Transaction, q storage.TransactionQuery) bool {
	switch {
	case tx.UserID != q.UserID:
		return false
	case q.AccountID != "" && tx.AccountID != q.AccountID:
		return false
	case q.Type != "" && tx.Type != q.Type:
		return false
	case q.Category != "" && tx.Category != q.Category:
		return false
	case q.Status != "" && tx.Status != q.Status:
		return false
	case q.Verified != nil && tx.Verified != *q.Verified:
		return false
	case q.DateFrom != nil && tx.Date.Before(*q.DateFrom):
		return false
	case q.DateTo != nil && tx.Date.After(*q.DateTo):
		return false
	}
	if q.MinAmountCents != nil {
		abs := tx.Amount.Cents
		if abs < 0 {
			abs = -abs
		}
		if abs < *q.MinAmountCents {
			return false
		}
	}
	if q.GroupID != "" {
		row, ok := s.expenses[tx.GroupExpenseID]
		if !ok || row.expense.GroupID != q.GroupID {
			return false
		}
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(tx.Description), needle) && !strings.Contains(strings.ToLower(tx.Category), needle) {
			return false
		}
	}
	return true
}

func (s *Store) ListTransactions(_ context.Context, q storage.TransactionQuery) ([]core.Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []*txRow
	for _, id := range s.txOrder {
		if row := s.txs[id]; s.matchesTx(row.tx, q) {
			rows = append(rows, row)
		}
	}
	slices.SortStableFunc(rows, func(a, b *txRow) int {
		if c := b.tx.Date.Compare(a.tx.Date.Time); c != 0 {
			return c
		}
		return b.seq - a.seq
	})
	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		out[i] = row.tx
	}
	return page(out, q.Limit, q.Offset), len(out), nil
}

func (s *Store) SetVerified(_ context.Context, userID, id string, verified bool) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.txs[id]
	if !ok || row.tx.UserID != userID {
		return core.Transaction{}, notFound("transaction")
	}
	row.tx.Verified = verified
	return row.tx, nil
}

func (s *Store) PendingMirror(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, id := range s.txOrder {
		if row := s.txs[id]; row.sheetsRef == "" {
			out = append(out, row.tx)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) MarkMirrored(_ context.Context, id, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.txs[id]
	if !ok {
		return notFound("transaction")
	}
	row.sheetsRef = ref
	return nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
