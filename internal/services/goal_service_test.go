package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"conti/internal/core"
	"conti/internal/storage/memory"
)

func newGoalService(store *memory.Store) *GoalService {
	svc := NewGoalService(store, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestGoalContributionsComplete(t *testing.T) {
	svc := newGoalService(memory.New())
	ctx := context.Background()
	deadline := core.NewDate(2025, 12, 1)
	g, err := svc.Create(ctx, "bob", GoalInput{Name: "Bike", Target: dec("300"), TargetDate: &deadline})
	if err != nil {
		t.Fatal(err)
	}
	if g.Type != core.GoalSavings || g.Status != core.GoalActive || g.Currency != "USD" || !g.Percent.IsZero() {
		t.Fatalf("created = %+v", g)
	}

	p, err := svc.Contribute(ctx, "bob", g.ID, dec("100"))
	if err != nil || p.Percent.String() != "33.33" || p.Remaining.Cents != 20000 || p.Status != core.GoalActive {
		t.Fatalf("after first contribution = %+v, %v", p, err)
	}
	_, err = svc.Contribute(ctx, "bob", g.ID, dec("-150"))
	assertInputErr(t, err, "amount", ErrOverWithdrawal)

	if p, err = svc.Contribute(ctx, "bob", g.ID, dec("250")); err != nil || p.Status != core.GoalCompleted || !p.Reached() {
		t.Fatalf("reaching the target = %+v, %v", p, err)
	}
	if p.Percent.String() != "100" || p.Current.Cents != 35000 {
		t.Fatalf("overshoot = %s%% of %d", p.Percent, p.Current.Cents)
	}
	if _, err := svc.Contribute(ctx, "bob", g.ID, dec("1")); !errors.Is(err, core.ErrGoalNotActive) {
		t.Fatalf("contribute to completed goal: %v", err)
	}
	if _, err := svc.Get(ctx, "alice", g.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get by another user: %v", err)
	}
}

func TestLinkedGoalTracksAccount(t *testing.T) {
	f := newLedgerFixture()
	svc := newGoalService(f.store)
	ctx := context.Background()
	savings := f.account(t, AccountInput{Name: "Savings", Type: core.AccountSavings, OpeningBalance: dec("200")})

	g, err := svc.Create(ctx, "bob", GoalInput{Name: "Buffer", Target: dec("1000"), AccountID: savings.ID})
	if err != nil {
		t.Fatal(err)
	}
	if g.Current.Cents != 20000 || g.Percent.String() != "20" {
		t.Fatalf("initial progress = %d (%s%%)", g.Current.Cents, g.Percent)
	}
	f.book(t, savings.ID, "550", core.TxIncome)
	if g, err = svc.Get(ctx, "bob", g.ID); err != nil || g.Current.Cents != 75000 || g.Remaining.Cents != 25000 {
		t.Fatalf("progress after deposit = %+v, %v", g, err)
	}
	if _, err := svc.Contribute(ctx, "bob", g.ID, dec("10")); !errors.Is(err, core.ErrGoalLinked) || !errors.Is(err, core.ErrConflict) {
		t.Fatalf("contribute to linked goal: %v", err)
	}

	_, err = svc.Create(ctx, "bob", GoalInput{Name: "Other", Target: dec("1"), AccountID: savings.ID, Currency: "EUR"})
	assertInputErr(t, err, "currency", ErrCurrencyMismatch)
	_, err = svc.Create(ctx, "alice", GoalInput{Name: "Other", Target: dec("1"), AccountID: savings.ID})
	assertInputErr(t, err, "account_id", core.ErrNotFound)
}

func TestGoalValidation(t *testing.T) {
	svc := newGoalService(memory.New())
	ctx := context.Background()
	_, err := svc.Create(ctx, "bob", GoalInput{Name: "", Target: dec("1")})
	assertInputErr(t, err, "name", core.ErrEmptyName)
	_, err = svc.Create(ctx, "bob", GoalInput{Name: "X", Target: dec("0")})
	assertInputErr(t, err, "target", core.ErrInvalidAmount)
	_, err = svc.Create(ctx, "bob", GoalInput{Name: "X", Target: dec("1"), Type: "lottery"})
	assertInputErr(t, err, "type", core.ErrInvalidGoalType)
}

func TestGoalTransitions(t *testing.T) {
	svc := newGoalService(memory.New())
	ctx := context.Background()
	g, err := svc.Create(ctx, "bob", GoalInput{Name: "Car", Target: dec("5000")})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Transition(ctx, "bob", g.ID, core.GoalActive); err != nil {
		t.Fatalf("active to active is a no-op: %v", err)
	}
	steps := []struct {
		to   core.GoalStatus
		want error
	}{
		{core.GoalPaused, nil},
		{core.GoalCompleted, core.ErrGoalNotActive},
		{core.GoalActive, nil},
		{core.GoalCompleted, nil},
		{core.GoalActive, core.ErrGoalNotPaused},
		{core.GoalCancelled, core.ErrGoalNotActive},
	}
	for _, st := range steps {
		p, err := svc.Transition(ctx, "bob", g.ID, st.to)
		if st.want != nil {
			if !errors.Is(err, st.want) || !errors.Is(err, core.ErrConflict) {
				t.Fatalf("-> %s: got %v, want %v", st.to, err, st.want)
			}
			continue
		}
		if err != nil || p.Status != st.to {
			t.Fatalf("-> %s: %+v, %v", st.to, p, err)
		}
	}
	_, err = svc.Transition(ctx, "bob", g.ID, "dreaming")
	assertInputErr(t, err, "status", core.ErrInvalidStatus)
}

func TestGoalSummary(t *testing.T) {
	svc := newGoalService(memory.New())
	ctx := context.Background()
	mk := func(name, target string) core.GoalProgress {
		g, err := svc.Create(ctx, "bob", GoalInput{Name: name, Target: dec(target)})
		if err != nil {
			t.Fatal(err)
		}
		return g
	}
	a := mk("A", "100")
	b := mk("B", "200")
	mk("C", "300")
	if _, err := svc.Contribute(ctx, "bob", a.ID, dec("100")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Contribute(ctx, "bob", b.ID, dec("50")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Transition(ctx, "bob", b.ID, core.GoalPaused); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Summary(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	want := GoalSummary{
		Total: 3, Active: 1, Completed: 1, Paused: 1,
		Target:          core.Money{Cents: 60000},
		Current:         core.Money{Cents: 15000},
		AverageProgress: dec("41.67"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary (-want +got):\n%s", diff)
	}
}
