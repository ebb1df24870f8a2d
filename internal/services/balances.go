package services

import (
	"slices"
	"strings"

	"conti/internal/core"
)

// ComputeBalances applies the group balance rule: the payer is credited the
// total, every share debits its owner, and a payment by a non-payer moves the
// paid amount from the payer back to the debtor. Cancelled expenses do not
// count. A settled expense counts with every share fully paid, since settling
// records that the rest was repaid outside conti. The nets always add up to zero.
//
// Members come first in the given order; former members who still appear in
// expenses follow, sorted by ID.
func ComputeBalances(members []core.Member, expenses []core.GroupExpense) []core.Balance {
	net := make(map[string]int64)
	for _, e := range expenses {
		if e.Status == core.ExpenseCancelled {
			continue
		}
		net[e.PaidBy] += e.Total.Cents
		for _, sh := range e.Shares {
			net[sh.UserID] -= sh.Amount.Cents
			if sh.UserID == e.PaidBy {
				continue
			}
			paid := sh.Paid.Cents
			if e.Status == core.ExpenseSettled {
				paid = sh.Amount.Cents
			}
			net[sh.UserID] += paid
			net[e.PaidBy] -= paid
		}
	}

	out := make([]core.Balance, 0, len(members))
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		seen[m.UserID] = true
		name := m.Name
		if name == "" {
			name = m.UserID
		}
		out = append(out, core.Balance{UserID: m.UserID, Name: name, Net: core.Money{Cents: net[m.UserID]}})
	}
	var former []core.Balance
	for id, cents := range net {
		if !seen[id] {
			former = append(former, core.Balance{UserID: id, Name: id, Net: core.Money{Cents: cents}})
		}
	}
	slices.SortFunc(former, func(a, b core.Balance) int { return strings.Compare(a.UserID, b.UserID) })
	return append(out, former...)
}

// Settlement builds the settlement view of one expense.
func Settlement(e core.GroupExpense) core.SettlementStatus {
	st := core.SettlementStatus{Expense: e, Shares: make([]core.ShareStatus, 0, len(e.Shares))}
	for _, sh := range e.Shares {
		ss := core.ShareStatus{
			UserID:    sh.UserID,
			Amount:    sh.Amount,
			Paid:      sh.Paid,
			Remaining: sh.Remaining(),
			Settled:   sh.IsSettled(),
		}
		st.Shares = append(st.Shares, ss)
		st.TotalPaid = st.TotalPaid.Add(sh.Paid)
		st.TotalRemaining = st.TotalRemaining.Add(ss.Remaining)
		if ss.Settled {
			st.SettledShares++
		}
	}
	if n := len(e.Shares); n > 0 {
		st.Percent = float64(st.SettledShares) / float64(n) * 100
		st.FullySettled = st.SettledShares == n
	}
	return st
}

// Summarize counts and totals expenses per status.
func Summarize(groupID, fallbackCurrency string, expenses []core.GroupExpense) core.ExpenseSummary {
	s := core.ExpenseSummary{
		GroupID:  groupID,
		ByStatus: make(map[core.ExpenseStatus]core.StatusTotal, 3),
		Currency: fallbackCurrency,
	}
	for _, st := range []core.ExpenseStatus{core.ExpenseActive, core.ExpenseSettled, core.ExpenseCancelled} {
		s.ByStatus[st] = core.StatusTotal{}
	}
	currencies := make(map[string]bool)
	for _, e := range expenses {
		s.Count++
		s.Total = s.Total.Add(e.Total)
		t := s.ByStatus[e.Status]
		t.Count++
		t.Total = t.Total.Add(e.Total)
		s.ByStatus[e.Status] = t
		currencies[e.Currency] = true
	}
	if len(currencies) == 1 {
		for c := range currencies {
			s.Currency = c
		}
	}
	return s
}
