package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	GoalType   string
	GoalStatus string
)

const (
	GoalSavings          GoalType = "savings"
	GoalDebtReduction    GoalType = "debt_reduction"
	GoalInvestment       GoalType = "investment"
	GoalExpenseReduction GoalType = "expense_reduction"

	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
	GoalCancelled GoalStatus = "cancelled"
)

var (
	ErrInvalidGoalType = errors.New("invalid goal type")
	ErrGoalNotActive   = errors.New("goal is not active")
	ErrGoalNotPaused   = errors.New("goal is not paused")
	ErrGoalLinked      = errors.New("goal follows an account balance")
)

func (t GoalType) Valid() bool {
	switch t {
	case GoalSavings, GoalDebtReduction, GoalInvestment, GoalExpenseReduction:
		return true
	}
	return false
}

func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalCompleted, GoalPaused, GoalCancelled:
		return true
	}
	return false
}

// Goal is a target amount. A goal linked to an account tracks that account's
// balance; an unlinked goal tracks the contributions recorded against it.
type Goal struct {
	ID          string
	UserID      string
	Name        string
	Description string
	Type        GoalType
	Target      Money
	Contributed Money
	Currency    string
	AccountID   string
	TargetDate  *Date
	Status      GoalStatus
	CreatedAt   time.Time
}

func (g Goal) Validate() error {
	name := strings.TrimSpace(g.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 255 {
		return errors.New("name too long (max 255 characters)")
	}
	if !g.Type.Valid() {
		return ErrInvalidGoalType
	}
	if err := g.Target.Validate(); err != nil {
		return err
	}
	if !g.Status.Valid() {
		return ErrInvalidStatus
	}
	if g.TargetDate != nil {
		if err := g.TargetDate.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GoalProgress is a goal with the amount reached so far.
type GoalProgress struct {
	Goal
	Current   Money
	Remaining Money
	Percent   decimal.Decimal // 0 to 100, two places
}

// ProgressOf reports how far current is towards the target of g.
func ProgressOf(g Goal, current Money) GoalProgress {
	p := GoalProgress{Goal: g, Current: current, Percent: decimal.Zero}
	if rem := g.Target.Sub(current); rem.Cents > 0 {
		p.Remaining = rem
	}
	if g.Target.Cents > 0 && current.Cents > 0 {
		pct := decimal.NewFromInt(current.Cents).Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(g.Target.Cents)).Round(2)
		p.Percent = decimal.Min(pct, decimal.NewFromInt(100))
	}
	return p
}

// Reached reports whether the target is met.
func (p GoalProgress) Reached() bool {
	return p.Current.Cents >= p.Target.Cents
}
