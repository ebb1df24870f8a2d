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

var ErrOverWithdrawal = errors.New("withdrawal exceeds the contributed amount")

// GoalService manages savings and reduction goals. A goal linked to an
// account reads its progress from that account's balance.
type GoalService struct {
	store      storage.Store
	currencies *core.CurrencyTable
	now        func() time.Time
}

func NewGoalService(store storage.Store, currencies *core.CurrencyTable) *GoalService {
	if currencies == nil {
		currencies = core.DefaultCurrencyTable("")
	}
	return &GoalService{store: store, currencies: currencies, now: time.Now}
}

type GoalInput struct {
	Name        string
	Description string
	Type        core.GoalType
	Target      decimal.Decimal
	Currency    string
	AccountID   string
	TargetDate  *core.Date
}

func (s *GoalService) Create(ctx context.Context, userID string, in GoalInput) (core.GoalProgress, error) {
	if in.Type == "" {
		in.Type = core.GoalSavings
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	accountID := strings.TrimSpace(in.AccountID)
	if accountID != "" {
		a, err := bookable(ctx, s.store, userID, accountID)
		if err != nil {
			return core.GoalProgress{}, err
		}
		if currency == "" {
			currency = a.Currency
		}
		if currency != a.Currency {
			return core.GoalProgress{}, inputErr("currency", ErrCurrencyMismatch)
		}
	}
	if currency == "" {
		currency = s.currencies.Default()
	}
	if !s.currencies.Known(currency) {
		return core.GoalProgress{}, inputErr("currency", ErrUnknownCurrency)
	}

	g := core.Goal{
		ID:          core.NewID(),
		UserID:      userID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Type:        core.GoalType(strings.ToLower(strings.TrimSpace(string(in.Type)))),
		Target:      core.MoneyFromDecimal(in.Target),
		Currency:    currency,
		AccountID:   accountID,
		TargetDate:  in.TargetDate,
		Status:      core.GoalActive,
		CreatedAt:   s.now().UTC(),
	}
	if err := g.Validate(); err != nil {
		return core.GoalProgress{}, inputErr(goalField(err), err)
	}
	if err := s.store.CreateGoal(ctx, g); err != nil {
		return core.GoalProgress{}, fmt.Errorf("create goal: %w", err)
	}
	slog.InfoContext(ctx, "Goal created",
		"component", "goals",
		"goal_id", g.ID,
		"user_id", userID,
		"target_cents", g.Target.Cents)
	return s.progress(ctx, g)
}

func goalField(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidGoalType):
		return "type"
	case errors.Is(err, core.ErrInvalidAmount):
		return "target"
	case errors.Is(err, core.ErrEmptyName), strings.Contains(err.Error(), "name"):
		return "name"
	default:
		return "target_date"
	}
}

// progress resolves the amount reached by g.
func (s *GoalService) progress(ctx context.Context, g core.Goal) (core.GoalProgress, error) {
	ps, err := s.progressAll(ctx, g.UserID, []core.Goal{g})
	if err != nil {
		return core.GoalProgress{}, err
	}
	return ps[0], nil
}

func (s *GoalService) progressAll(ctx context.Context, userID string, goals []core.Goal) ([]core.GoalProgress, error) {
	var totals map[string]storage.LedgerTotal
	accounts := make(map[string]core.Account)
	out := make([]core.GoalProgress, 0, len(goals))
	for _, g := range goals {
		if g.AccountID == "" {
			out = append(out, core.ProgressOf(g, g.Contributed))
			continue
		}
		if totals == nil {
			var err error
			if totals, err = s.store.LedgerTotals(ctx, userID); err != nil {
				return nil, fmt.Errorf("goal progress: %w", err)
			}
		}
		a, ok := accounts[g.AccountID]
		if !ok {
			var err error
			if a, err = s.store.GetAccount(ctx, userID, g.AccountID); err != nil {
				return nil, fmt.Errorf("goal progress: %w", err)
			}
			accounts[g.AccountID] = a
		}
		out = append(out, core.ProgressOf(g, withTotal(a, totals[a.ID]).Balance))
	}
	return out, nil
}

func (s *GoalService) List(ctx context.Context, userID string) ([]core.GoalProgress, error) {
	goals, err := s.store.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return s.progressAll(ctx, userID, goals)
}

func (s *GoalService) Get(ctx context.Context, userID, id string) (core.GoalProgress, error) {
	g, err := s.store.GetGoal(ctx, userID, id)
	if err != nil {
		return core.GoalProgress{}, err
	}
	return s.progress(ctx, g)
}

// Contribute adds amount to an active unlinked goal, completing it once the
// target is reached. A negative amount withdraws, down to zero.
func (s *GoalService) Contribute(ctx context.Context, userID, id string, amount decimal.Decimal) (core.GoalProgress, error) {
	m := core.MoneyFromDecimal(amount)
	if m.IsZero() {
		return core.GoalProgress{}, inputErr("amount", ErrRequired)
	}
	g, err := s.store.GetGoal(ctx, userID, id)
	if err != nil {
		return core.GoalProgress{}, err
	}
	if g.AccountID != "" {
		return core.GoalProgress{}, fmt.Errorf("contribute to %s: %w: %w", id, core.ErrGoalLinked, core.ErrConflict)
	}
	if g.Status != core.GoalActive {
		return core.GoalProgress{}, fmt.Errorf("contribute to %s: %w: %w", id, core.ErrGoalNotActive, core.ErrConflict)
	}
	g.Contributed = g.Contributed.Add(m)
	if g.Contributed.Cents < 0 {
		return core.GoalProgress{}, inputErr("amount", ErrOverWithdrawal)
	}
	if g.Contributed.Cents >= g.Target.Cents {
		g.Status = core.GoalCompleted
	}
	if err := s.store.UpdateGoal(ctx, g); err != nil {
		return core.GoalProgress{}, fmt.Errorf("contribute to goal: %w", err)
	}
	slog.InfoContext(ctx, "Goal contribution recorded",
		"component", "goals",
		"goal_id", id,
		"user_id", userID,
		"amount_cents", m.Cents,
		"status", g.Status)
	return core.ProgressOf(g, g.Contributed), nil
}

// goalTransitions lists the statuses each status may move to.
var goalTransitions = map[core.GoalStatus][]core.GoalStatus{
	core.GoalActive: {core.GoalCompleted, core.GoalPaused, core.GoalCancelled},
	core.GoalPaused: {core.GoalActive, core.GoalCancelled},
}

// Transition moves a goal to status. Only a paused goal can be resumed.
func (s *GoalService) Transition(ctx context.Context, userID, id string, status core.GoalStatus) (core.GoalProgress, error) {
	if !status.Valid() {
		return core.GoalProgress{}, inputErr("status", core.ErrInvalidStatus)
	}
	g, err := s.store.GetGoal(ctx, userID, id)
	if err != nil {
		return core.GoalProgress{}, err
	}
	if g.Status == status {
		return s.progress(ctx, g)
	}
	allowed := false
	for _, next := range goalTransitions[g.Status] {
		allowed = allowed || next == status
	}
	if !allowed {
		reason := core.ErrGoalNotActive
		if status == core.GoalActive {
			reason = core.ErrGoalNotPaused
		}
		return core.GoalProgress{}, fmt.Errorf("goal %s %s -> %s: %w: %w", id, g.Status, status, reason, core.ErrConflict)
	}
	g.Status = status
	if err := s.store.UpdateGoal(ctx, g); err != nil {
		return core.GoalProgress{}, fmt.Errorf("update goal status: %w", err)
	}
	return s.progress(ctx, g)
}

type GoalSummary struct {
	Total           int
	Active          int
	Completed       int
	Paused          int
	Target          core.Money
	Current         core.Money
	AverageProgress decimal.Decimal
}

// Summary counts a user's goals by status and averages their progress over
// all of them. Cancelled goals have no status count of their own.
func (s *GoalService) Summary(ctx context.Context, userID string) (GoalSummary, error) {
	goals, err := s.List(ctx, userID)
	if err != nil {
		return GoalSummary{}, err
	}
	sum := GoalSummary{Total: len(goals), AverageProgress: decimal.Zero}
	percent := decimal.Zero
	for _, p := range goals {
		switch p.Status {
		case core.GoalActive:
			sum.Active++
		case core.GoalCompleted:
			sum.Completed++
		case core.GoalPaused:
			sum.Paused++
		}
		sum.Target = sum.Target.Add(p.Target)
		sum.Current = sum.Current.Add(p.Current)
		percent = percent.Add(p.Percent)
	}
	if len(goals) > 0 {
		sum.AverageProgress = percent.Div(decimal.NewFromInt(int64(len(goals)))).Round(2)
	}
	return sum, nil
}
