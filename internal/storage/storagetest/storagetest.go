// Package storagetest holds a conformance suite run against every
// storage.Store implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"conti/internal/core"
	"conti/internal/storage"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func seedGroup(t *testing.T, s storage.Store, id string, members ...string) core.Group {
	t.Helper()
	ctx := context.Background()
	g := core.Group{ID: id, Name: "Group " + id, Type: core.MultiPerson, OwnerID: members[0], CreatedAt: epoch}
	owner := core.Member{GroupID: id, UserID: members[0], Name: members[0], Role: core.RoleAdmin, JoinedAt: epoch}
	if err := s.CreateGroup(ctx, g, owner); err != nil {
		t.Fatalf("create group: %v", err)
	}
	for i, m := range members[1:] {
		err := s.UpsertMember(ctx, core.Member{GroupID: id, UserID: m, Name: m, Role: core.RoleMember, JoinedAt: epoch.Add(time.Duration(i+1) * time.Minute)})
		if err != nil {
			t.Fatalf("add member %s: %v", m, err)
		}
	}
	return g
}

func expense(id, groupID, paidBy string, day int, total int64, shares map[string]int64, order ...string) core.GroupExpense {
	e := core.GroupExpense{
		ID:        id,
		GroupID:   groupID,
		PaidBy:    paidBy,
		Title:     "Expense " + id,
		Total:     core.Money{Cents: total},
		Currency:  "USD",
		Method:    "equal",
		Date:      core.NewDate(2025, 3, day),
		Status:    core.ExpenseActive,
		CreatedAt: epoch.Add(time.Duration(day) * time.Hour),
	}
	for _, u := range order {
		e.Shares = append(e.Shares, core.Share{ExpenseID: id, UserID: u, Amount: core.Money{Cents: shares[u]}})
	}
	return e
}

// Run exercises every Store operation. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("groups and members", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedGroup(t, s, "g1", "alice", "bob")
		seedGroup(t, s, "g2", "carol")

		g, err := s.GetGroup(ctx, "g1")
		if err != nil || g.Name != "Group g1" || g.Type != core.MultiPerson || !g.CreatedAt.Equal(epoch) {
			t.Fatalf("get group = %+v, %v", g, err)
		}
		if _, err := s.GetGroup(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		groups, err := s.ListGroupsForUser(ctx, "bob")
		if err != nil || len(groups) != 1 || groups[0].ID != "g1" {
			t.Fatalf("groups for bob = %+v, %v", groups, err)
		}

		if err := s.UpsertMember(ctx, core.Member{GroupID: "g1", UserID: "bob", Role: core.RoleAdmin, JoinedAt: epoch}); err != nil {
			t.Fatal(err)
		}
		m, err := s.GetMember(ctx, "g1", "bob")
		if err != nil || m.Role != core.RoleAdmin || m.Name != "bob" {
			t.Fatalf("upsert should change role and keep name: %+v, %v", m, err)
		}

		members, err := s.ListMembers(ctx, "g1")
		if err != nil {
			t.Fatal(err)
		}
		var ids []string
		for _, m := range members {
			ids = append(ids, m.UserID)
		}
		if diff := cmp.Diff([]string{"alice", "bob"}, ids); diff != "" {
			t.Fatalf("members (-want +got):\n%s", diff)
		}

		if err := s.RemoveMember(ctx, "g1", "bob"); err != nil {
			t.Fatal(err)
		}
		if err := s.RemoveMember(ctx, "g1", "bob"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("second remove: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("expenses and payments", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedGroup(t, s, "g1", "alice", "bob", "carol")

		e1 := expense("e1", "g1", "alice", 1, 3000, map[string]int64{"alice": 1000, "bob": 1000, "carol": 1000}, "alice", "bob", "carol")
		e2 := expense("e2", "g1", "bob", 5, 1001, map[string]int64{"alice": 501, "bob": 500}, "alice", "bob")
		e2.Title = "Pizza night"
		for _, e := range []core.GroupExpense{e1, e2} {
			if err := s.CreateExpense(ctx, e); err != nil {
				t.Fatalf("create %s: %v", e.ID, err)
			}
		}

		got, err := s.GetExpense(ctx, "g1", "e1")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(e1, got); diff != "" {
			t.Fatalf("expense round trip (-want +got):\n%s", diff)
		}
		if _, err := s.GetExpense(ctx, "other", "e1"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expense from another group: %v", err)
		}

		list, total, err := s.ListExpenses(ctx, storage.ExpenseQuery{GroupID: "g1", Limit: 1})
		if err != nil || total != 2 || len(list) != 1 || list[0].ID != "e2" {
			t.Fatalf("list page = %v total=%d err=%v", list, total, err)
		}
		list, total, err = s.ListExpenses(ctx, storage.ExpenseQuery{GroupID: "g1", Search: "pizza"})
		if err != nil || total != 1 || list[0].ID != "e2" {
			t.Fatalf("search = %v total=%d err=%v", list, total, err)
		}

		share, err := s.AddPayment(ctx, "e1", "bob", core.Money{Cents: 400}, epoch)
		if err != nil || share.Paid.Cents != 400 || share.PaymentDate == nil {
			t.Fatalf("payment = %+v, %v", share, err)
		}
		share, err = s.AddPayment(ctx, "e1", "bob", core.Money{Cents: 600}, epoch.Add(time.Hour))
		if err != nil || share.Paid.Cents != 1000 || !share.IsSettled() {
			t.Fatalf("second payment = %+v, %v", share, err)
		}
		if _, err := s.AddPayment(ctx, "e1", "dave", core.Money{Cents: 1}, epoch); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("payment for non-share: %v", err)
		}

		if err := s.SetExpenseStatus(ctx, "g1", "e2", core.ExpenseCancelled); err != nil {
			t.Fatal(err)
		}
		list, total, _ = s.ListExpenses(ctx, storage.ExpenseQuery{GroupID: "g1", Status: core.ExpenseActive})
		if total != 1 || list[0].ID != "e1" {
			t.Fatalf("status filter = %v", list)
		}

		all, err := s.AllGroupExpenses(ctx, "g1")
		if err != nil || len(all) != 2 || len(all[0].Shares) != 3 {
			t.Fatalf("all expenses = %v, %v", all, err)
		}
	})

	t.Run("projection bookkeeping", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedGroup(t, s, "g1", "alice", "bob")
		e := expense("e1", "g1", "alice", 2, 2000, map[string]int64{"alice": 1000, "bob": 1000}, "alice", "bob")
		if err := s.CreateExpense(ctx, e); err != nil {
			t.Fatal(err)
		}
		pending, err := s.PendingProjection(ctx, 10)
		if err != nil || len(pending) != 1 {
			t.Fatalf("pending = %v, %v", pending, err)
		}
		if err := s.MarkProjected(ctx, "e1", core.ExpenseActive); err != nil {
			t.Fatal(err)
		}
		if pending, _ = s.PendingProjection(ctx, 10); len(pending) != 0 {
			t.Fatalf("still pending after mark: %v", pending)
		}
		_ = s.SetExpenseStatus(ctx, "g1", "e1", core.ExpenseCancelled)
		if pending, _ = s.PendingProjection(ctx, 10); len(pending) != 1 || pending[0].Status != core.ExpenseCancelled {
			t.Fatalf("status change should be pending: %v", pending)
		}
	})

	t.Run("transactions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedGroup(t, s, "g1", "alice", "bob")
		e := expense("e1", "g1", "alice", 2, 2000, map[string]int64{"alice": 1000, "bob": 1000}, "alice", "bob")
		if err := s.CreateExpense(ctx, e); err != nil {
			t.Fatal(err)
		}

		manual := core.Transaction{
			ID: "t1", UserID: "bob", Amount: core.Money{Cents: 250000}, Type: core.TxIncome,
			Description: "Salary", Category: "work", Date: core.NewDate(2025, 3, 1),
			Currency: "USD", Status: core.TxCompleted, Verified: true, CreatedAt: epoch,
		}
		if err := s.CreateTransaction(ctx, manual); err != nil {
			t.Fatal(err)
		}
		share := core.Transaction{
			ID: "t2", UserID: "bob", Amount: core.Money{Cents: -1000}, Type: core.TxExpense,
			Description: "Share of Expense e1 in Group g1", Category: "group", Date: core.NewDate(2025, 3, 2),
			Currency: "USD", Status: core.TxCompleted, GroupExpenseID: "e1", CreatedAt: epoch.Add(time.Minute),
		}
		created, err := s.UpsertShareTransaction(ctx, share)
		if err != nil || !created {
			t.Fatalf("first upsert created=%v err=%v", created, err)
		}
		again := share
		again.ID = "t3"
		if created, err = s.UpsertShareTransaction(ctx, again); err != nil || created {
			t.Fatalf("second upsert created=%v err=%v", created, err)
		}

		list, total, err := s.ListTransactions(ctx, storage.TransactionQuery{UserID: "bob"})
		if err != nil || total != 2 || list[0].ID != "t2" {
			t.Fatalf("list = %v total=%d err=%v", list, total, err)
		}

		verified := false
		minAmount := int64(500)
		from := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
		cases := []struct {
			name string
			q    storage.TransactionQuery
			want []string
		}{
			{"by type", storage.TransactionQuery{UserID: "bob", Type: core.TxIncome}, []string{"t1"}},
			{"by verified", storage.TransactionQuery{UserID: "bob", Verified: &verified}, []string{"t2"}},
			{"by group", storage.TransactionQuery{UserID: "bob", GroupID: "g1"}, []string{"t2"}},
			{"by date", storage.TransactionQuery{UserID: "bob", DateFrom: &from}, []string{"t2"}},
			{"by min amount", storage.TransactionQuery{UserID: "bob", MinAmountCents: &minAmount, Category: "work"}, []string{"t1"}},
			{"by search", storage.TransactionQuery{UserID: "bob", Search: "salary"}, []string{"t1"}},
			{"other user", storage.TransactionQuery{UserID: "alice"}, nil},
		}
		for _, tc := range cases {
			got, _, err := s.ListTransactions(ctx, tc.q)
			if err != nil {
				t.Fatalf("%s: %v", tc.name, err)
			}
			var ids []string
			for _, tx := range got {
				ids = append(ids, tx.ID)
			}
			if diff := cmp.Diff(tc.want, ids); diff != "" {
				t.Fatalf("%s (-want +got):\n%s", tc.name, diff)
			}
		}

		n, err := s.SetStatusByExpense(ctx, "e1", core.TxCancelled)
		if err != nil || n != 1 {
			t.Fatalf("cancel by expense n=%d err=%v", n, err)
		}
		tx, err := s.SetVerified(ctx, "bob", "t2", true)
		if err != nil || !tx.Verified || tx.Status != core.TxCancelled {
			t.Fatalf("verify = %+v, %v", tx, err)
		}
		if _, err := s.SetVerified(ctx, "alice", "t2", true); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("verify by another user: %v", err)
		}

		pending, err := s.PendingMirror(ctx, 10)
		if err != nil || len(pending) != 2 {
			t.Fatalf("pending mirror = %v, %v", pending, err)
		}
		if err := s.MarkMirrored(ctx, "t1", "Ledger!A2"); err != nil {
			t.Fatal(err)
		}
		if pending, _ = s.PendingMirror(ctx, 10); len(pending) != 1 || pending[0].ID != "t2" {
			t.Fatalf("pending after mirror = %v", pending)
		}
	})

	t.Run("recurring templates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		end := core.NewDate(2025, 12, 31)
		rent := core.RecurringTemplate{
			ID: "r1", UserID: "bob", Name: "Rent", Amount: core.Money{Cents: -90000}, Type: core.TxExpense,
			Category: "home", Currency: "USD", Frequency: core.Monthly, Interval: 1,
			StartDate: core.NewDate(2025, 3, 1), EndDate: &end, NextExecution: core.NewDate(2025, 3, 1),
			Active: true, CreatedAt: epoch,
		}
		gym := core.RecurringTemplate{
			ID: "r2", UserID: "bob", Name: "Gym", Amount: core.Money{Cents: -3000}, Type: core.TxExpense,
			Currency: "USD", Frequency: core.Weekly, Interval: 1, StartDate: core.NewDate(2025, 3, 20),
			NextExecution: core.NewDate(2025, 3, 20), Active: true, CreatedAt: epoch.Add(time.Minute),
		}
		for _, r := range []core.RecurringTemplate{rent, gym} {
			if err := s.CreateRecurring(ctx, r); err != nil {
				t.Fatalf("create %s: %v", r.ID, err)
			}
		}

		got, err := s.GetRecurring(ctx, "bob", "r1")
		if err != nil || got.EndDate == nil || !got.EndDate.Equal(end.Time) || got.Frequency != core.Monthly {
			t.Fatalf("get recurring = %+v, %v", got, err)
		}
		if _, err := s.GetRecurring(ctx, "alice", "r1"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("get by another user: %v", err)
		}
		list, err := s.ListRecurring(ctx, "bob")
		if err != nil || len(list) != 2 || list[0].ID != "r1" {
			t.Fatalf("list recurring = %+v, %v", list, err)
		}

		due, err := s.DueRecurring(ctx, core.NewDate(2025, 3, 15), 10)
		if err != nil || len(due) != 1 || due[0].ID != "r1" {
			t.Fatalf("due = %+v, %v", due, err)
		}

		advanced := rent
		advanced.NextExecution = core.NewDate(2025, 4, 1)
		advanced.Executions = 1
		tx := core.Transaction{
			ID: "rt1", UserID: "bob", Amount: rent.Amount, Type: core.TxExpense, Description: "Rent",
			Date: rent.NextExecution, Currency: "USD", Status: core.TxCompleted, CreatedAt: epoch,
		}
		if err := s.RecordExecution(ctx, tx, advanced, rent.NextExecution); err != nil {
			t.Fatalf("record execution: %v", err)
		}
		replay := tx
		replay.ID = "rt2"
		if err := s.RecordExecution(ctx, replay, advanced, rent.NextExecution); !errors.Is(err, core.ErrConflict) {
			t.Fatalf("stale execution: %v", err)
		}
		if _, total, _ := s.ListTransactions(ctx, storage.TransactionQuery{UserID: "bob"}); total != 1 {
			t.Fatalf("stale execution stored a transaction, total=%d", total)
		}
		if got, _ = s.GetRecurring(ctx, "bob", "r1"); got.Executions != 1 || !got.NextExecution.Equal(advanced.NextExecution.Time) {
			t.Fatalf("after execution = %+v", got)
		}

		paused, err := s.SetRecurringActive(ctx, "bob", "r2", false)
		if err != nil || paused.Active {
			t.Fatalf("pause = %+v, %v", paused, err)
		}
		if due, _ = s.DueRecurring(ctx, core.NewDate(2025, 6, 1), 0); len(due) != 1 || due[0].ID != "r1" {
			t.Fatalf("due after pause = %+v", due)
		}
		if _, err := s.SetRecurringActive(ctx, "alice", "r2", true); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("pause by another user: %v", err)
		}
	})

	t.Run("accounts and goals", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		checking := core.Account{
			ID: "a1", UserID: "bob", Name: "Checking", Type: core.AccountChecking, Currency: "USD",
			OpeningBalance: core.Money{Cents: 10000}, Active: true, CreatedAt: epoch,
		}
		card := core.Account{
			ID: "a2", UserID: "bob", Name: "Card", Type: core.AccountCredit, Currency: "USD",
			Active: true, CreatedAt: epoch,
		}
		for _, a := range []core.Account{checking, card} {
			if err := s.CreateAccount(ctx, a); err != nil {
				t.Fatalf("create %s: %v", a.ID, err)
			}
		}
		if got, err := s.GetAccount(ctx, "bob", "a1"); err != nil || got.OpeningBalance.Cents != 10000 || got.Type != core.AccountChecking {
			t.Fatalf("get account = %+v, %v", got, err)
		}
		if _, err := s.GetAccount(ctx, "alice", "a1"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("get by another user: %v", err)
		}

		entries := []core.Transaction{
			{ID: "t1", UserID: "bob", Amount: core.Money{Cents: 50000}, Type: core.TxIncome, AccountID: "a1", Status: core.TxCompleted},
			{ID: "t2", UserID: "bob", Amount: core.Money{Cents: -1500}, Type: core.TxExpense, AccountID: "a1", Status: core.TxCompleted},
			{ID: "t3", UserID: "bob", Amount: core.Money{Cents: -9999}, Type: core.TxExpense, AccountID: "a1", Status: core.TxCancelled},
			{ID: "t4", UserID: "bob", Amount: core.Money{Cents: -2500}, Type: core.TxExpense, AccountID: "a2", Status: core.TxPending},
			{ID: "t5", UserID: "bob", Amount: core.Money{Cents: -700}, Type: core.TxExpense, Status: core.TxCompleted},
		}
		for i, tx := range entries {
			tx.Description = "Entry " + tx.ID
			tx.Date = core.NewDate(2025, 3, i+1)
			tx.Currency = "USD"
			tx.CreatedAt = epoch.Add(time.Duration(i) * time.Minute)
			if err := s.CreateTransaction(ctx, tx); err != nil {
				t.Fatalf("create %s: %v", tx.ID, err)
			}
		}
		totals, err := s.LedgerTotals(ctx, "bob")
		if err != nil {
			t.Fatal(err)
		}
		want := map[string]storage.LedgerTotal{"a1": {Cents: 48500, Entries: 2}, "a2": {Cents: -2500, Entries: 1}}
		if diff := cmp.Diff(want, totals); diff != "" {
			t.Fatalf("ledger totals (-want +got):\n%s", diff)
		}
		out := core.Transaction{
			ID: "x1", UserID: "bob", Amount: core.Money{Cents: -1000}, Type: core.TxTransfer, AccountID: "a1",
			Description: "Transfer to Card", Date: core.NewDate(2025, 3, 6), Currency: "USD", Status: core.TxCompleted,
			CreatedAt: epoch.Add(time.Hour),
		}
		in := out
		in.ID, in.AccountID, in.Amount, in.Description = "x2", "a2", core.Money{Cents: 1000}, "Transfer from Checking"
		if err := s.CreateTransfer(ctx, out, in); err != nil {
			t.Fatal(err)
		}
		dup := in
		dup.ID = "x3"
		if err := s.CreateTransfer(ctx, dup, in); err == nil {
			t.Fatal("transfer reusing a transaction ID was stored")
		}
		if totals, _ = s.LedgerTotals(ctx, "bob"); totals["a1"].Cents != 47500 || totals["a2"].Cents != -1500 {
			t.Fatalf("totals after transfer = %+v", totals)
		}

		booked, total, err := s.ListTransactions(ctx, storage.TransactionQuery{UserID: "bob", AccountID: "a1"})
		if err != nil || total != 4 || booked[0].ID != "x1" {
			t.Fatalf("list by account = %+v total=%d err=%v", booked, total, err)
		}

		if _, err := s.SetAccountActive(ctx, "bob", "a2", false); err != nil {
			t.Fatal(err)
		}
		names := func(includeArchived bool) []string {
			as, err := s.ListAccounts(ctx, "bob", includeArchived)
			if err != nil {
				t.Fatal(err)
			}
			var out []string
			for _, a := range as {
				out = append(out, a.Name)
			}
			return out
		}
		if diff := cmp.Diff([]string{"Checking"}, names(false)); diff != "" {
			t.Fatalf("active accounts (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"Card", "Checking"}, names(true)); diff != "" {
			t.Fatalf("all accounts (-want +got):\n%s", diff)
		}

		deadline := core.NewDate(2025, 12, 1)
		holiday := core.Goal{
			ID: "g1", UserID: "bob", Name: "Holiday", Type: core.GoalSavings, Target: core.Money{Cents: 200000},
			Currency: "USD", TargetDate: &deadline, Status: core.GoalActive, CreatedAt: epoch,
		}
		buffer := core.Goal{
			ID: "g2", UserID: "bob", Name: "Buffer", Type: core.GoalSavings, Target: core.Money{Cents: 100000},
			Currency: "USD", AccountID: "a1", Status: core.GoalActive, CreatedAt: epoch.Add(time.Hour),
		}
		for _, g := range []core.Goal{holiday, buffer} {
			if err := s.CreateGoal(ctx, g); err != nil {
				t.Fatalf("create %s: %v", g.ID, err)
			}
		}
		got, err := s.GetGoal(ctx, "bob", "g1")
		if err != nil || got.TargetDate == nil || !got.TargetDate.Equal(deadline.Time) || got.AccountID != "" {
			t.Fatalf("get goal = %+v, %v", got, err)
		}
		goals, err := s.ListGoals(ctx, "bob")
		if err != nil || len(goals) != 2 || goals[0].ID != "g2" || goals[0].AccountID != "a1" {
			t.Fatalf("list goals = %+v, %v", goals, err)
		}

		got.Contributed = core.Money{Cents: 200000}
		got.Status = core.GoalCompleted
		if err := s.UpdateGoal(ctx, got); err != nil {
			t.Fatal(err)
		}
		if got, _ = s.GetGoal(ctx, "bob", "g1"); got.Contributed.Cents != 200000 || got.Status != core.GoalCompleted {
			t.Fatalf("after update = %+v", got)
		}
		stranger := got
		stranger.UserID = "alice"
		if err := s.UpdateGoal(ctx, stranger); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("update by another user: %v", err)
		}
	})
}
