package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/storage/memory"
)

var fixedNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.ExpenseEvent
	err    error
}

func (p *recordingPublisher) PublishExpenseEvent(_ context.Context, ev *amqp.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, *ev)
	return nil
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []amqp.EventKind
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	store *memory.Store
	svc   *GroupService
	group core.Group
}

// newFixture creates a group owned by alice with bob and carol as members.
func newFixture(t *testing.T, pub Publisher) *fixture {
	t.Helper()
	store := memory.New()
	proj := NewLedgerProjector(store)
	proj.now = func() time.Time { return fixedNow }
	svc := NewGroupService(store, proj, Options{
		Publisher: pub,
		Now:       func() time.Time { return fixedNow },
	})
	ctx := context.Background()
	g, err := svc.CreateGroup(ctx, CreateGroupInput{Name: "Trip", OwnerID: "alice", OwnerName: "Alice"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	for _, u := range []string{"bob", "carol"} {
		if _, err := svc.AddMember(ctx, "alice", g.ID, MemberInput{UserID: u, Name: u}); err != nil {
			t.Fatalf("add %s: %v", u, err)
		}
	}
	return &fixture{store: store, svc: svc, group: g}
}

func (f *fixture) expense(t *testing.T, in CreateExpenseInput) core.GroupExpense {
	t.Helper()
	e, err := f.svc.CreateExpense(context.Background(), "alice", f.group.ID, in)
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return e
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertInputErr(t *testing.T, err error, field string, want error) {
	t.Helper()
	var ie *InputError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InputError on %s, got %v", field, err)
	}
	if ie.Field != field {
		t.Fatalf("field = %q, want %q (%v)", ie.Field, field, err)
	}
	if want != nil && !errors.Is(err, want) {
		t.Fatalf("error %v is not %v", err, want)
	}
}
