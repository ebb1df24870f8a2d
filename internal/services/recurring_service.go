package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"conti/internal/core"
	"conti/internal/storage"
)

const (
	recurringBatchSize = 100
	// maxCatchUp bounds the occurrences one template may produce in a single
	// pass, so a daily template left for years cannot stall the worker.
	maxCatchUp = 366
)

var ErrTemplateFinished = errors.New("recurring template has no executions left")

// RecurringService manages recurring templates and turns due occurrences
// into ledger entries.
type RecurringService struct {
	store      storage.RecurringStore
	currencies *core.CurrencyTable
	now        func() time.Time
}

func NewRecurringService(store storage.RecurringStore, currencies *core.CurrencyTable) *RecurringService {
	if currencies == nil {
		currencies = core.DefaultCurrencyTable("")
	}
	return &RecurringService{store: store, currencies: currencies, now: time.Now}
}

type RecurringInput struct {
	Name          string
	Amount        decimal.Decimal
	Type          core.TransactionType
	Description   string
	Category      string
	Currency      string
	Frequency     core.Frequency
	Interval      int
	StartDate     core.Date
	EndDate       *core.Date
	MaxExecutions int
}

func (s *RecurringService) today() core.Date {
	y, m, d := s.now().Date()
	return core.NewDate(y, int(m), d)
}

// Create stores a template whose first occurrence is its start date.
func (s *RecurringService) Create(ctx context.Context, userID string, in RecurringInput) (core.RecurringTemplate, error) {
	if in.Type == "" {
		in.Type = core.TxExpense
	}
	if in.Interval == 0 {
		in.Interval = 1
	}
	if in.StartDate.IsZero() {
		in.StartDate = s.today()
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currencies.Default()
	}
	if !s.currencies.Known(currency) {
		return core.RecurringTemplate{}, inputErr("currency", ErrUnknownCurrency)
	}

	r := core.RecurringTemplate{
		ID:            core.NewID(),
		UserID:        userID,
		Name:          strings.TrimSpace(in.Name),
		Amount:        signed(core.MoneyFromDecimal(in.Amount), in.Type),
		Type:          in.Type,
		Description:   strings.TrimSpace(in.Description),
		Category:      strings.TrimSpace(in.Category),
		Currency:      currency,
		Frequency:     core.Frequency(strings.ToLower(strings.TrimSpace(string(in.Frequency)))),
		Interval:      in.Interval,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		MaxExecutions: in.MaxExecutions,
		NextExecution: in.StartDate,
		Active:        true,
		CreatedAt:     s.now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return core.RecurringTemplate{}, inputErr(recurringField(err), err)
	}
	if err := s.store.CreateRecurring(ctx, r); err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("create recurring template: %w", err)
	}
	slog.InfoContext(ctx, "Recurring template created",
		"component", "ledger",
		"recurring_id", r.ID,
		"user_id", userID,
		"frequency", r.Frequency,
		"next_execution", r.NextExecution.String())
	return r, nil
}

func recurringField(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyName), strings.Contains(err.Error(), "name"):
		return "name"
	case strings.Contains(err.Error(), "description"):
		return "description"
	case errors.Is(err, core.ErrInvalidAmount):
		return "amount"
	case errors.Is(err, core.ErrInvalidTxType):
		return "type"
	case errors.Is(err, core.ErrInvalidFrequency):
		return "frequency"
	case errors.Is(err, core.ErrInvalidInterval):
		return "interval"
	case errors.Is(err, core.ErrEndBeforeStart):
		return "end_date"
	case strings.Contains(err.Error(), "max executions"):
		return "max_executions"
	default:
		return "start_date"
	}
}

func (s *RecurringService) List(ctx context.Context, userID string) ([]core.RecurringTemplate, error) {
	ts, err := s.store.ListRecurring(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}
	return ts, nil
}

func (s *RecurringService) Get(ctx context.Context, userID, id string) (core.RecurringTemplate, error) {
	return s.store.GetRecurring(ctx, userID, id)
}

// SetActive pauses or resumes a template. A finished template cannot be resumed.
func (s *RecurringService) SetActive(ctx context.Context, userID, id string, active bool) (core.RecurringTemplate, error) {
	r, err := s.store.GetRecurring(ctx, userID, id)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	if active && r.Finished() {
		return core.RecurringTemplate{}, fmt.Errorf("resume %s: %w: %w", id, ErrTemplateFinished, core.ErrConflict)
	}
	if r.Active == active {
		return r, nil
	}
	return s.store.SetRecurringActive(ctx, userID, id, active)
}

// ProcessDue creates the ledger entries of every occurrence due on or before
// today, catching up on missed ones, and returns how many were created.
// A failing template is logged and skipped.
func (s *RecurringService) ProcessDue(ctx context.Context) (int, error) {
	today := s.today()
	due, err := s.store.DueRecurring(ctx, today, recurringBatchSize)
	if err != nil {
		return 0, fmt.Errorf("get due recurring templates: %w", err)
	}

	created := 0
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		n, err := s.runTemplate(ctx, r, today)
		created += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to execute recurring template",
				"component", "ledger",
				"recurring_id", r.ID,
				"created", n,
				"error", err)
		}
	}
	if created > 0 {
		slog.InfoContext(ctx, "Recurring templates executed",
			"component", "ledger",
			"created", created,
			"templates", len(due),
			"processing_date", today.String())
	}
	return created, nil
}

func (s *RecurringService) runTemplate(ctx context.Context, r core.RecurringTemplate, today core.Date) (int, error) {
	n := 0
	for r.DueOn(today) && n < maxCatchUp {
		occurrence := r.NextExecution
		next, err := advance(r)
		if err != nil {
			return n, err
		}
		tx := s.occurrence(r, occurrence)
		if err := s.store.RecordExecution(ctx, tx, next, occurrence); err != nil {
			if errors.Is(err, core.ErrConflict) {
				// Another worker executed this occurrence first.
				return n, nil
			}
			return n, err
		}
		r = next
		n++
	}
	return n, nil
}

func (s *RecurringService) occurrence(r core.RecurringTemplate, day core.Date) core.Transaction {
	desc := r.Description
	if desc == "" {
		desc = r.Name
	}
	return core.Transaction{
		ID:          core.NewID(),
		UserID:      r.UserID,
		Amount:      r.Amount,
		Type:        r.Type,
		Description: desc,
		Category:    r.Category,
		Date:        day,
		Currency:    r.Currency,
		Status:      core.TxCompleted,
		CreatedAt:   s.now().UTC(),
	}
}
