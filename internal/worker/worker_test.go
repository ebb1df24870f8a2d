package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/goleak"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/services"
	sheetsmem "conti/internal/sheets/memory"
	"conti/internal/storage"
	"conti/internal/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type env struct {
	store  *memory.Store
	mirror *sheetsmem.Store
	worker *Worker
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	mirror := sheetsmem.New()
	ctx := context.Background()

	g := core.Group{ID: "g1", Name: "Flat", Type: core.MultiPerson, OwnerID: "alice", CreatedAt: epoch}
	if err := store.CreateGroup(ctx, g, core.Member{GroupID: "g1", UserID: "alice", Name: "Alice", Role: core.RoleAdmin, JoinedAt: epoch}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertMember(ctx, core.Member{GroupID: "g1", UserID: "bob", Name: "Bob", Role: core.RoleMember, JoinedAt: epoch}); err != nil {
		t.Fatal(err)
	}
	return &env{
		store:  store,
		mirror: mirror,
		worker: New(services.NewLedgerProjector(store), store, mirror, 10),
	}
}

func (e *env) expense(t *testing.T, id string) core.GroupExpense {
	t.Helper()
	ex := core.GroupExpense{
		ID: id, GroupID: "g1", PaidBy: "alice", Title: "Groceries",
		Total: core.Money{Cents: 3000}, Currency: "EUR", Method: "equal",
		Date: core.NewDate(2025, 3, 1), Status: core.ExpenseActive, CreatedAt: epoch,
		Shares: []core.Share{
			{ExpenseID: id, UserID: "alice", Amount: core.Money{Cents: 1500}, Paid: core.Money{Cents: 1500}},
			{ExpenseID: id, UserID: "bob", Amount: core.Money{Cents: 1500}},
		},
	}
	if err := e.store.CreateExpense(context.Background(), ex); err != nil {
		t.Fatal(err)
	}
	return ex
}

func (e *env) ledger(t *testing.T, user string) []core.Transaction {
	t.Helper()
	out, _, err := e.store.ListTransactions(context.Background(), storageQuery(user))
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestHandleEvent_ProjectsShares(t *testing.T) {
	e := newEnv(t)
	ex := e.expense(t, "e1")
	ev := amqp.NewExpenseEvent(amqp.ExpenseCreated, ex.GroupID, ex.ID)

	for range 2 {
		if err := e.worker.HandleEvent(context.Background(), ev); err != nil {
			t.Fatalf("HandleEvent: %v", err)
		}
	}

	bob := e.ledger(t, "bob")
	if len(bob) != 1 {
		t.Fatalf("bob has %d ledger entries, want 1", len(bob))
	}
	if bob[0].Amount.Cents != -1500 || bob[0].Description != "Share of Groceries in Flat" {
		t.Fatalf("unexpected entry %+v", bob[0])
	}
	pending, err := e.store.PendingProjection(context.Background(), 0)
	if err != nil || len(pending) != 0 {
		t.Fatalf("pending projections = %d, %v", len(pending), err)
	}
}

func TestHandleEvent_UnknownExpenseIsDropped(t *testing.T) {
	e := newEnv(t)
	ev := amqp.NewExpenseEvent(amqp.ExpenseCreated, "g1", "missing")
	if err := e.worker.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("expected the event to be dropped, got %v", err)
	}
}

func TestHandleEvent_Cancel(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ex := e.expense(t, "e1")
	if err := e.worker.HandleEvent(ctx, amqp.NewExpenseEvent(amqp.ExpenseCreated, "g1", ex.ID)); err != nil {
		t.Fatal(err)
	}
	if err := e.store.SetExpenseStatus(ctx, "g1", ex.ID, core.ExpenseCancelled); err != nil {
		t.Fatal(err)
	}
	if err := e.worker.HandleEvent(ctx, amqp.NewExpenseEvent(amqp.ExpenseCancelled, "g1", ex.ID)); err != nil {
		t.Fatal(err)
	}
	for _, tx := range e.ledger(t, "alice") {
		if tx.Status != core.TxCancelled {
			t.Fatalf("alice entry %s still %s", tx.ID, tx.Status)
		}
	}
}

func TestTick_ReconcilesAndMirrors(t *testing.T) {
	e := newEnv(t)
	e.expense(t, "e1")
	e.expense(t, "e2")

	e.worker.Tick(context.Background())

	if got := len(e.ledger(t, "alice")) + len(e.ledger(t, "bob")); got != 4 {
		t.Fatalf("ledger entries = %d, want 4", got)
	}
	if got := len(e.mirror.Rows()); got != 4 {
		t.Fatalf("mirrored rows = %d, want 4", got)
	}

	// A second tick finds nothing new.
	e.worker.Tick(context.Background())
	if got := len(e.mirror.Rows()); got != 4 {
		t.Fatalf("mirrored rows after second tick = %d, want 4", got)
	}
}

func TestMirrorPending_StopsOnFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.expense(t, "e1")
	if _, err := e.worker.projector.Reconcile(ctx, 0); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("sheets unavailable")
	e.mirror.FailWith(boom)
	n, err := e.worker.MirrorPending(ctx)
	if !errors.Is(err, boom) || n != 0 {
		t.Fatalf("MirrorPending = %d, %v", n, err)
	}

	e.mirror.FailWith(nil)
	n, err = e.worker.MirrorPending(ctx)
	if err != nil || n != 2 {
		t.Fatalf("retry MirrorPending = %d, %v", n, err)
	}
}

func TestMirrorPending_Disabled(t *testing.T) {
	store := memory.New()
	w := New(services.NewLedgerProjector(store), store, nil, 0)
	if n, err := w.MirrorPending(context.Background()); n != 0 || err != nil {
		t.Fatalf("MirrorPending without a mirror = %d, %v", n, err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	e := newEnv(t)
	e.expense(t, "e1")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.worker.Run(ctx, 10*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for len(e.mirror.Rows()) < 2 {
		select {
		case <-deadline:
			t.Fatal("worker did not mirror the startup backlog")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

type failingRunner struct{ calls int }

func (f *failingRunner) ProcessDue(context.Context) (int, error) {
	f.calls++
	return 0, errors.New("store unavailable")
}

func TestTick_RunsRecurringTemplates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rec := services.NewRecurringService(e.store, nil)
	e.worker.WithRecurring(rec)

	y, m, d := time.Now().AddDate(0, 0, -5).Date()
	if _, err := rec.Create(ctx, "bob", services.RecurringInput{
		Name: "Gym", Amount: decimal.NewFromInt(30), Frequency: core.Daily,
		StartDate: core.NewDate(y, int(m), d), MaxExecutions: 2,
	}); err != nil {
		t.Fatal(err)
	}

	e.worker.Tick(ctx)
	if got := len(e.ledger(t, "bob")); got != 2 {
		t.Fatalf("bob ledger has %d entries, want 2", got)
	}
	if got := len(e.mirror.Rows()); got != 2 {
		t.Errorf("mirrored %d rows, want 2", got)
	}

	e.worker.Tick(ctx)
	if got := len(e.ledger(t, "bob")); got != 2 {
		t.Errorf("finished template ran again: %d entries", got)
	}
}

func TestRunRecurring_ErrorIsWrapped(t *testing.T) {
	e := newEnv(t)
	runner := &failingRunner{}
	e.worker.WithRecurring(runner)
	if _, err := e.worker.RunRecurring(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	// Tick logs the failure and carries on.
	e.worker.Tick(context.Background())
	if runner.calls != 2 {
		t.Errorf("calls = %d", runner.calls)
	}
}

func storageQuery(user string) storage.TransactionQuery {
	return storage.TransactionQuery{UserID: user}
}
