package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/core"
	"conti/internal/storage"
)

// LedgerCategory is the category given to projected share entries.
const LedgerCategory = "group"

// LedgerProjector mirrors group expenses into the personal ledger of every
// participant: one negative expense transaction per share.
type LedgerProjector struct {
	store storage.Store
	now   func() time.Time
}

func NewLedgerProjector(store storage.Store) *LedgerProjector {
	return &LedgerProjector{store: store, now: time.Now}
}

// ShareDescription is the ledger description of a share, e.g.
// "Share of Dinner in Trip".
func ShareDescription(title, group string) string {
	return fmt.Sprintf("Share of %s in %s", title, group)
}

// Project brings the ledger entries of e in line with its status. It is
// idempotent: running it twice creates no duplicate entries.
func (p *LedgerProjector) Project(ctx context.Context, e core.GroupExpense) error {
	g, err := p.store.GetGroup(ctx, e.GroupID)
	if err != nil {
		return fmt.Errorf("get group of expense %s: %w", e.ID, err)
	}

	switch e.Status {
	case core.ExpenseActive, core.ExpenseSettled:
		created := 0
		for _, sh := range e.Shares {
			ok, err := p.store.UpsertShareTransaction(ctx, core.Transaction{
				ID:             core.NewID(),
				UserID:         sh.UserID,
				Amount:         sh.Amount.Neg(),
				Type:           core.TxExpense,
				Description:    ShareDescription(e.Title, g.Name),
				Category:       LedgerCategory,
				Date:           e.Date,
				Currency:       e.Currency,
				Status:         core.TxCompleted,
				GroupExpenseID: e.ID,
				CreatedAt:      p.now(),
			})
			if err != nil {
				return fmt.Errorf("project share of %s: %w", sh.UserID, err)
			}
			if ok {
				created++
			}
		}
		if created > 0 {
			slog.InfoContext(ctx, "Projected expense shares",
				"component", "ledger",
				"group_id", e.GroupID,
				"expense_id", e.ID,
				"created", created)
		}
	case core.ExpenseCancelled:
		n, err := p.store.SetStatusByExpense(ctx, e.ID, core.TxCancelled)
		if err != nil {
			return fmt.Errorf("cancel ledger entries of %s: %w", e.ID, err)
		}
		slog.InfoContext(ctx, "Cancelled expense ledger entries",
			"component", "ledger",
			"expense_id", e.ID,
			"updated", n)
	default:
		return fmt.Errorf("expense %s: %w", e.ID, core.ErrInvalidStatus)
	}

	if err := p.store.MarkProjected(ctx, e.ID, e.Status); err != nil {
		return fmt.Errorf("mark expense %s projected: %w", e.ID, err)
	}
	return nil
}

// ProjectByID loads an expense and projects it.
func (p *LedgerProjector) ProjectByID(ctx context.Context, groupID, expenseID string) error {
	e, err := p.store.GetExpense(ctx, groupID, expenseID)
	if err != nil {
		return fmt.Errorf("get expense %s: %w", expenseID, err)
	}
	return p.Project(ctx, e)
}

// Reconcile projects up to limit expenses whose ledger is behind their
// status. It returns how many were brought up to date.
func (p *LedgerProjector) Reconcile(ctx context.Context, limit int) (int, error) {
	pending, err := p.store.PendingProjection(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending projections: %w", err)
	}
	var errs []error
	done := 0
	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := p.Project(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Failed to project expense", "component", "ledger", "expense_id", e.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}
