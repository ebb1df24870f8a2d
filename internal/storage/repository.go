package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"conti/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY under load
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// inTx runs fn inside a transaction, rolling back on error.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// notFound maps sql.ErrNoRows to core.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

func affected(n int64, err error, what string) error {
	if err != nil {
		return fmt.Errorf("update %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) CreateGroup(ctx context.Context, g core.Group, owner core.Member) error {
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.CreateGroup(ctx, g); err != nil {
			return fmt.Errorf("create group: %w", err)
		}
		if err := q.UpsertMember(ctx, owner); err != nil {
			return fmt.Errorf("add owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Group saved to SQLite", "group_id", g.ID, "owner_id", g.OwnerID)
	return nil
}

func (r *SQLiteRepository) GetGroup(ctx context.Context, id string) (core.Group, error) {
	g, err := r.queries.GetGroup(ctx, id)
	if err != nil {
		return core.Group{}, notFound(err, "group")
	}
	return g, nil
}

func (r *SQLiteRepository) ListGroupsForUser(ctx context.Context, userID string) ([]core.Group, error) {
	groups, err := r.queries.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups for user: %w", err)
	}
	return groups, nil
}

func (r *SQLiteRepository) UpsertMember(ctx context.Context, m core.Member) error {
	if err := r.queries.UpsertMember(ctx, m); err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	n, err := r.queries.DeleteMember(ctx, groupID, userID)
	return affected(n, err, "member")
}

func (r *SQLiteRepository) GetMember(ctx context.Context, groupID, userID string) (core.Member, error) {
	m, err := r.queries.GetMember(ctx, groupID, userID)
	if err != nil {
		return core.Member{}, notFound(err, "member")
	}
	return m, nil
}

func (r *SQLiteRepository) ListMembers(ctx context.Context, groupID string) ([]core.Member, error) {
	members, err := r.queries.ListMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.GroupExpense) error {
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.CreateExpense(ctx, e); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		for _, s := range e.Shares {
			s.ExpenseID = e.ID
			if err := q.CreateShare(ctx, s); err != nil {
				return fmt.Errorf("create share for %s: %w", s.UserID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Group expense saved to SQLite",
		"expense_id", e.ID,
		"group_id", e.GroupID,
		"amount_cents", e.Total.Cents,
		"shares", len(e.Shares))
	return nil
}

func (r *SQLiteRepository) withShares(ctx context.Context, expenses []core.GroupExpense) ([]core.GroupExpense, error) {
	for i := range expenses {
		shares, err := r.queries.ListShares(ctx, expenses[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list shares of %s: %w", expenses[i].ID, err)
		}
		expenses[i].Shares = shares
	}
	return expenses, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, groupID, id string) (core.GroupExpense, error) {
	e, err := r.queries.GetExpense(ctx, groupID, id)
	if err != nil {
		return core.GroupExpense{}, notFound(err, "expense")
	}
	out, err := r.withShares(ctx, []core.GroupExpense{e})
	if err != nil {
		return core.GroupExpense{}, err
	}
	return out[0], nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, q ExpenseQuery) ([]core.GroupExpense, int, error) {
	total, err := r.queries.CountExpenses(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count expenses: %w", err)
	}
	expenses, err := r.queries.ListExpenses(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list expenses: %w", err)
	}
	expenses, err = r.withShares(ctx, expenses)
	return expenses, total, err
}

func (r *SQLiteRepository) AllGroupExpenses(ctx context.Context, groupID string) ([]core.GroupExpense, error) {
	expenses, err := r.queries.AllGroupExpenses(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group expenses: %w", err)
	}
	return r.withShares(ctx, expenses)
}

func (r *SQLiteRepository) SetExpenseStatus(ctx context.Context, groupID, id string, status core.ExpenseStatus) error {
	n, err := r.queries.SetExpenseStatus(ctx, groupID, id, status)
	return affected(n, err, "expense")
}

func (r *SQLiteRepository) AddPayment(ctx context.Context, expenseID, userID string, amount core.Money, at time.Time) (core.Share, error) {
	var share core.Share
	err := r.inTx(ctx, func(q *Queries) error {
		n, err := q.AddPayment(ctx, expenseID, userID, amount.Cents, at)
		if err := affected(n, err, "share"); err != nil {
			return err
		}
		share, err = q.GetShare(ctx, expenseID, userID)
		if err != nil {
			return notFound(err, "share")
		}
		return nil
	})
	return share, err
}

func (r *SQLiteRepository) PendingProjection(ctx context.Context, limit int) ([]core.GroupExpense, error) {
	expenses, err := r.queries.PendingProjection(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending projections: %w", err)
	}
	return r.withShares(ctx, expenses)
}

func (r *SQLiteRepository) MarkProjected(ctx context.Context, id string, status core.ExpenseStatus) error {
	n, err := r.queries.MarkProjected(ctx, id, status)
	return affected(n, err, "expense")
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	if err := r.queries.CreateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertShareTransaction(ctx context.Context, tx core.Transaction) (bool, error) {
	n, err := r.queries.InsertShareTransaction(ctx, tx)
	if err != nil {
		return false, fmt.Errorf("insert share transaction: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) SetStatusByExpense(ctx context.Context, expenseID string, status core.TransactionStatus) (int, error) {
	n, err := r.queries.SetStatusByExpense(ctx, expenseID, status)
	if err != nil {
		return 0, fmt.Errorf("update transactions of expense: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	tx, err := r.queries.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction")
	}
	return tx, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, q TransactionQuery) ([]core.Transaction, int, error) {
	total, err := r.queries.CountTransactions(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	txs, err := r.queries.ListTransactions(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return txs, total, nil
}

func (r *SQLiteRepository) SetVerified(ctx context.Context, userID, id string, verified bool) (core.Transaction, error) {
	n, err := r.queries.SetVerified(ctx, userID, id, verified)
	if err := affected(n, err, "transaction"); err != nil {
		return core.Transaction{}, err
	}
	return r.GetTransaction(ctx, userID, id)
}

func (r *SQLiteRepository) PendingMirror(ctx context.Context, limit int) ([]core.Transaction, error) {
	txs, err := r.queries.PendingMirror(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending mirror: %w", err)
	}
	return txs, nil
}

func (r *SQLiteRepository) MarkMirrored(ctx context.Context, id, ref string) error {
	n, err := r.queries.MarkMirrored(ctx, id, ref)
	if err := affected(n, err, "transaction"); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction marked as mirrored", "transaction_id", id, "sheets_ref", ref)
	return nil
}

func (r *SQLiteRepository) CreateRecurring(ctx context.Context, t core.RecurringTemplate) error {
	if err := r.queries.CreateRecurring(ctx, t); err != nil {
		return fmt.Errorf("create recurring template: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetRecurring(ctx context.Context, userID, id string) (core.RecurringTemplate, error) {
	t, err := r.queries.GetRecurring(ctx, userID, id)
	if err != nil {
		return core.RecurringTemplate{}, notFound(err, "recurring template")
	}
	return t, nil
}

func (r *SQLiteRepository) ListRecurring(ctx context.Context, userID string) ([]core.RecurringTemplate, error) {
	ts, err := r.queries.ListRecurring(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}
	return ts, nil
}

func (r *SQLiteRepository) SetRecurringActive(ctx context.Context, userID, id string, active bool) (core.RecurringTemplate, error) {
	n, err := r.queries.SetRecurringActive(ctx, userID, id, active)
	if err := affected(n, err, "recurring template"); err != nil {
		return core.RecurringTemplate{}, err
	}
	return r.GetRecurring(ctx, userID, id)
}

func (r *SQLiteRepository) DueRecurring(ctx context.Context, day core.Date, limit int) ([]core.RecurringTemplate, error) {
	ts, err := r.queries.DueRecurring(ctx, day, limit)
	if err != nil {
		return nil, fmt.Errorf("get due recurring templates: %w", err)
	}
	return ts, nil
}

func (r *SQLiteRepository) RecordExecution(ctx context.Context, tx core.Transaction, t core.RecurringTemplate, expectedNext core.Date) error {
	return r.inTx(ctx, func(q *Queries) error {
		n, err := q.AdvanceRecurring(ctx, t, expectedNext)
		if err != nil {
			return fmt.Errorf("advance recurring template: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("recurring template %s moved past %s: %w", t.ID, expectedNext, core.ErrConflict)
		}
		if err := q.CreateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	if err := r.queries.CreateAccount(ctx, a); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, userID, id string) (core.Account, error) {
	a, err := r.queries.GetAccount(ctx, userID, id)
	if err != nil {
		return core.Account{}, notFound(err, "account")
	}
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID string, includeArchived bool) ([]core.Account, error) {
	as, err := r.queries.ListAccounts(ctx, userID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return as, nil
}

func (r *SQLiteRepository) SetAccountActive(ctx context.Context, userID, id string, active bool) (core.Account, error) {
	n, err := r.queries.SetAccountActive(ctx, userID, id, active)
	if err := affected(n, err, "account"); err != nil {
		return core.Account{}, err
	}
	return r.GetAccount(ctx, userID, id)
}

func (r *SQLiteRepository) LedgerTotals(ctx context.Context, userID string) (map[string]LedgerTotal, error) {
	totals, err := r.queries.LedgerTotals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sum ledger per account: %w", err)
	}
	return totals, nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) error {
	if err := r.queries.CreateGoal(ctx, g); err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, userID, id string) (core.Goal, error) {
	g, err := r.queries.GetGoal(ctx, userID, id)
	if err != nil {
		return core.Goal{}, notFound(err, "goal")
	}
	return g, nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	gs, err := r.queries.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return gs, nil
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g core.Goal) error {
	n, err := r.queries.UpdateGoal(ctx, g)
	return affected(n, err, "goal")
}

func (r *SQLiteRepository) CreateTransfer(ctx context.Context, out, in core.Transaction) error {
	return r.inTx(ctx, func(q *Queries) error {
		for _, tx := range []core.Transaction{out, in} {
			if err := q.CreateTransaction(ctx, tx); err != nil {
				return fmt.Errorf("create transfer leg: %w", err)
			}
		}
		return nil
	})
}
