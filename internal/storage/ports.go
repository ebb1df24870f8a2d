package storage

import (
	"context"
	"time"

	"conti/internal/core"
)

// Ports implemented by the SQLite repository and the in-memory store.
type (
	GroupStore interface {
		// CreateGroup stores g together with its owner membership.
		CreateGroup(ctx context.Context, g core.Group, owner core.Member) error
		GetGroup(ctx context.Context, id string) (core.Group, error)
		ListGroupsForUser(ctx context.Context, userID string) ([]core.Group, error)
		UpsertMember(ctx context.Context, m core.Member) error
		RemoveMember(ctx context.Context, groupID, userID string) error
		GetMember(ctx context.Context, groupID, userID string) (core.Member, error)
		ListMembers(ctx context.Context, groupID string) ([]core.Member, error)
	}

	ExpenseStore interface {
		// CreateExpense stores e and its shares atomically.
		CreateExpense(ctx context.Context, e core.GroupExpense) error
		GetExpense(ctx context.Context, groupID, id string) (core.GroupExpense, error)
		ListExpenses(ctx context.Context, q ExpenseQuery) ([]core.GroupExpense, int, error)
		// AllGroupExpenses returns every expense of a group with its shares.
		AllGroupExpenses(ctx context.Context, groupID string) ([]core.GroupExpense, error)
		SetExpenseStatus(ctx context.Context, groupID, id string, status core.ExpenseStatus) error
		// AddPayment adds amount to the paid total of one share.
		AddPayment(ctx context.Context, expenseID, userID string, amount core.Money, at time.Time) (core.Share, error)
		// PendingProjection lists expenses whose status has not been projected
		// into member ledgers yet.
		PendingProjection(ctx context.Context, limit int) ([]core.GroupExpense, error)
		MarkProjected(ctx context.Context, id string, status core.ExpenseStatus) error
	}

	TransactionStore interface {
		CreateTransaction(ctx context.Context, tx core.Transaction) error
		// UpsertShareTransaction creates the ledger entry of one share unless it
		// already exists. It reports whether a row was created.
		UpsertShareTransaction(ctx context.Context, tx core.Transaction) (bool, error)
		SetStatusByExpense(ctx context.Context, expenseID string, status core.TransactionStatus) (int, error)
		GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
		ListTransactions(ctx context.Context, q TransactionQuery) ([]core.Transaction, int, error)
		SetVerified(ctx context.Context, userID, id string, verified bool) (core.Transaction, error)
		// PendingMirror lists transactions not yet copied to the spreadsheet.
		PendingMirror(ctx context.Context, limit int) ([]core.Transaction, error)
		MarkMirrored(ctx context.Context, id, ref string) error
	}

	RecurringStore interface {
		CreateRecurring(ctx context.Context, r core.RecurringTemplate) error
		GetRecurring(ctx context.Context, userID, id string) (core.RecurringTemplate, error)
		ListRecurring(ctx context.Context, userID string) ([]core.RecurringTemplate, error)
		SetRecurringActive(ctx context.Context, userID, id string, active bool) (core.RecurringTemplate, error)
		// DueRecurring lists active templates, of every user, whose next
		// execution is on or before day.
		DueRecurring(ctx context.Context, day core.Date, limit int) ([]core.RecurringTemplate, error)
		// RecordExecution stores tx and saves the advanced template r in one
		// step. It fails with core.ErrConflict when the stored next execution
		// is no longer expectedNext.
		RecordExecution(ctx context.Context, tx core.Transaction, r core.RecurringTemplate, expectedNext core.Date) error
	}

	AccountStore interface {
		CreateAccount(ctx context.Context, a core.Account) error
		GetAccount(ctx context.Context, userID, id string) (core.Account, error)
		// ListAccounts returns the accounts of a user by name, archived ones
		// only when includeArchived is set.
		ListAccounts(ctx context.Context, userID string, includeArchived bool) ([]core.Account, error)
		SetAccountActive(ctx context.Context, userID, id string, active bool) (core.Account, error)
		// LedgerTotals sums the non-cancelled entries of a user per account.
		LedgerTotals(ctx context.Context, userID string) (map[string]LedgerTotal, error)
		// CreateTransfer stores both legs of a transfer or neither.
		CreateTransfer(ctx context.Context, out, in core.Transaction) error
	}

	GoalStore interface {
		CreateGoal(ctx context.Context, g core.Goal) error
		GetGoal(ctx context.Context, userID, id string) (core.Goal, error)
		ListGoals(ctx context.Context, userID string) ([]core.Goal, error)
		// UpdateGoal saves the contributed amount and status of g.
		UpdateGoal(ctx context.Context, g core.Goal) error
	}

	Store interface {
		GroupStore
		ExpenseStore
		TransactionStore
		RecurringStore
		AccountStore
		GoalStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// ExpenseQuery selects a page of group expenses, newest first.
type ExpenseQuery struct {
	GroupID string
	Status  core.ExpenseStatus
	PaidBy  string
	Search  string
	Limit   int
	Offset  int
}

// TransactionQuery selects a page of one user's ledger, newest first.
// Zero values mean "no filter".
type TransactionQuery struct {
	UserID         string
	Type           core.TransactionType
	Category       string
	Status         core.TransactionStatus
	Verified       *bool
	DateFrom       *time.Time
	DateTo         *time.Time
	MinAmountCents *int64 // compared against the absolute amount
	GroupID        string
	AccountID      string
	Search         string
	Limit          int
	Offset         int
}

// LedgerTotal is the signed sum and count of the entries booked to an account.
type LedgerTotal struct {
	Cents   int64
	Entries int
}
