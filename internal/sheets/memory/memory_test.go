package memory

import (
	"context"
	"errors"
	"testing"

	"conti/internal/core"
)

func TestAppendTransaction(t *testing.T) {
	s := New()
	tx := core.Transaction{
		ID:          "t1",
		UserID:      "bob",
		Amount:      core.Money{Cents: -1250},
		Type:        core.TxExpense,
		Description: "Lunch",
		Date:        core.NewDate(2025, 3, 4),
		Currency:    "EUR",
		Status:      core.TxCompleted,
	}
	ref, err := s.AppendTransaction(context.Background(), tx)
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	rows := s.Rows()
	if len(rows) != 1 || rows[0][0] != "2025-03-04" || rows[0][5] != "-12.50" {
		t.Fatalf("unexpected rows %v", rows)
	}

	boom := errors.New("quota")
	s.FailWith(boom)
	if _, err := s.AppendTransaction(context.Background(), tx); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
}
