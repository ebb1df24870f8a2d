package services

import (
	"context"

	"conti/internal/amqp"
	"conti/internal/storage"
)

// Publisher announces expense lifecycle events to the worker. A nil
// Publisher makes the services project ledger entries inline.
type Publisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

var _ Publisher = (*amqp.Client)(nil)

// LedgerStore is a user's ledger together with the accounts it books to.
type LedgerStore interface {
	storage.TransactionStore
	storage.AccountStore
}
