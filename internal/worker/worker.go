// Package worker runs the asynchronous side of conti. It projects expense
// events into member ledgers and reconciles projections missed while the
// broker was unreachable. It also executes due recurring templates and
// mirrors new ledger entries to the spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/sheets"
	"conti/internal/storage"
)

// Projector is the part of services.LedgerProjector the worker drives.
type Projector interface {
	ProjectByID(ctx context.Context, groupID, expenseID string) error
	Reconcile(ctx context.Context, limit int) (int, error)
}

// RecurringRunner is the part of services.RecurringService the worker drives.
type RecurringRunner interface {
	ProcessDue(ctx context.Context) (int, error)
}

type Worker struct {
	projector Projector
	ledger    storage.TransactionStore
	mirror    sheets.LedgerWriter // nil disables mirroring
	recurring RecurringRunner     // nil disables recurring templates
	batchSize int
}

func New(projector Projector, ledger storage.TransactionStore, mirror sheets.LedgerWriter, batchSize int) *Worker {
	if batchSize < 1 {
		batchSize = 50
	}
	return &Worker{
		projector: projector,
		ledger:    ledger,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// WithRecurring makes every tick execute due recurring templates.
func (w *Worker) WithRecurring(r RecurringRunner) *Worker {
	w.recurring = r
	return w
}

// HandleEvent projects the expense named by ev. Events for expenses that no
// longer exist are dropped so they are not redelivered forever.
func (w *Worker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	slog.InfoContext(ctx, "Processing expense event",
		"component", "worker",
		"kind", ev.Kind,
		"group_id", ev.GroupID,
		"expense_id", ev.ExpenseID)

	err := w.projector.ProjectByID(ctx, ev.GroupID, ev.ExpenseID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Dropping event for unknown expense", "component", "worker", "expense_id", ev.ExpenseID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("project expense %s: %w", ev.ExpenseID, err)
	}
	return nil
}

// MirrorPending copies up to one batch of unmirrored ledger entries to the
// spreadsheet. It stops at the first append failure; the remaining entries
// are retried on the next tick.
func (w *Worker) MirrorPending(ctx context.Context) (int, error) {
	if w.mirror == nil {
		return 0, nil
	}
	pending, err := w.ledger.PendingMirror(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending mirror entries: %w", err)
	}

	done := 0
	for _, tx := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		ref, err := w.mirror.AppendTransaction(ctx, tx)
		if err != nil {
			return done, fmt.Errorf("mirror transaction %s: %w", tx.ID, err)
		}
		if err := w.ledger.MarkMirrored(ctx, tx.ID, ref); err != nil {
			// The row is in the sheet already; a retry would duplicate it.
			slog.ErrorContext(ctx, "Failed to mark as mirrored", "component", "worker", "id", tx.ID, "ref", ref, "error", err)
			continue
		}
		done++
	}
	if done > 0 {
		slog.InfoContext(ctx, "Mirrored ledger entries", "component", "worker", "count", done)
	}
	return done, nil
}

// RunRecurring executes the due recurring templates.
func (w *Worker) RunRecurring(ctx context.Context) (int, error) {
	if w.recurring == nil {
		return 0, nil
	}
	n, err := w.recurring.ProcessDue(ctx)
	if err != nil {
		return n, fmt.Errorf("process recurring templates: %w", err)
	}
	return n, nil
}

// Tick runs one reconcile, recurring and mirror pass. Failures are logged, not returned.
func (w *Worker) Tick(ctx context.Context) {
	if n, err := w.projector.Reconcile(ctx, w.batchSize); err != nil {
		slog.ErrorContext(ctx, "Reconcile failed", "component", "worker", "projected", n, "error", err)
	} else if n > 0 {
		slog.InfoContext(ctx, "Reconciled pending projections", "component", "worker", "projected", n)
	}
	if _, err := w.RunRecurring(ctx); err != nil {
		slog.ErrorContext(ctx, "Recurring templates failed", "component", "worker", "error", err)
	}
	if _, err := w.MirrorPending(ctx); err != nil {
		slog.ErrorContext(ctx, "Mirror failed", "component", "worker", "error", err)
	}
}

// StartupCheck catches up on everything missed while the worker was down.
func (w *Worker) StartupCheck(ctx context.Context) error {
	projected, err := w.projector.Reconcile(ctx, 0)
	if err != nil {
		return fmt.Errorf("startup reconcile: %w", err)
	}
	recurring, err := w.RunRecurring(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Startup recurring run incomplete", "component", "worker", "error", err)
	}
	mirrored, err := w.MirrorPending(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Startup mirror incomplete", "component", "worker", "error", err)
	}
	slog.InfoContext(ctx, "Startup check completed",
		"component", "worker",
		"projected", projected,
		"recurring", recurring,
		"mirrored", mirrored)
	return nil
}

// Run performs the startup check and then ticks every interval until ctx is done.
func (w *Worker) Run(ctx context.Context, interval time.Duration) error {
	if err := w.StartupCheck(ctx); err != nil {
		slog.WarnContext(ctx, "Startup check failed", "component", "worker", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}
