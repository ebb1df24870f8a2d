package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind names a group expense lifecycle transition.
type EventKind string

const (
	ExpenseCreated   EventKind = "expense.created"
	ExpenseSettled   EventKind = "expense.settled"
	ExpenseCancelled EventKind = "expense.cancelled"
)

func (k EventKind) Valid() bool {
	return k == ExpenseCreated || k == ExpenseSettled || k == ExpenseCancelled
}

// ExpenseEvent is a lightweight notification about a group expense.
// It carries only identifiers; consumers load the expense from storage.
type ExpenseEvent struct {
	Kind      EventKind `json:"kind"`
	GroupID   string    `json:"group_id"`
	ExpenseID string    `json:"expense_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEvent(kind EventKind, groupID, expenseID string) *ExpenseEvent {
	return &ExpenseEvent{
		Kind:      kind,
		GroupID:   groupID,
		ExpenseID: expenseID,
		Timestamp: time.Now(),
	}
}

func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes and validates an event body.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var ev ExpenseEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if !ev.Kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if ev.ExpenseID == "" {
		return nil, fmt.Errorf("event without expense_id")
	}
	return &ev, nil
}
