// Package split divides a monetary total among participants.
//
// All arithmetic is done in integer cents. Whatever the method, the returned
// shares add up to the rounded total exactly: the cents lost to rounding are
// handed out one at a time, in input order, starting from the participant
// named in Input.RemainderTo.
package split

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"conti/internal/core"
)

type Method string

const (
	Equal      Method = "equal"
	Custom     Method = "custom"
	Percentage Method = "percentage"
	Shares     Method = "shares"
)

var (
	hundred   = decimal.NewFromInt(100)
	tolerance = decimal.New(1, -2)
)

// ParseMethod maps a wire name to a Method. "amount" is accepted for Custom.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case Equal, Custom, Percentage, Shares:
		return m, nil
	case "amount":
		return Custom, nil
	default:
		return "", invalid("method", fmt.Errorf("%w: %q", ErrUnknownMethod, s))
	}
}

// Participant is one person in the split. Value is ignored for Equal; it is
// the absolute amount for Custom, 0-100 for Percentage and a whole-number
// weight for Shares.
type Participant struct {
	ID    string
	Value *decimal.Decimal
}

type Input struct {
	Total        decimal.Decimal
	Method       Method
	Participants []Participant
	// RemainderTo receives rounding residue first. Defaults to the first participant.
	RemainderTo string
}

type Share struct {
	ParticipantID string
	Amount        core.Money
}

type Result struct {
	Method Method
	Total  core.Money
	Shares []Share
}

// Amounts returns the shares keyed by participant.
func (r Result) Amounts() map[string]core.Money {
	out := make(map[string]core.Money, len(r.Shares))
	for _, s := range r.Shares {
		out[s.ParticipantID] = s.Amount
	}
	return out
}

// Value is a convenience for building participants from literals.
func Value(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// Compute validates in and returns one share per participant in input order.
func Compute(in Input) (Result, error) {
	total := core.MoneyFromDecimal(in.Total)
	if total.Cents <= 0 {
		return Result{}, invalid("total", ErrInvalidTotal)
	}
	if len(in.Participants) == 0 {
		return Result{}, invalid("participants", ErrNoParticipants)
	}
	start, err := checkParticipants(in)
	if err != nil {
		return Result{}, err
	}

	method, err := ParseMethod(string(in.Method))
	if err != nil {
		return Result{}, err
	}

	var cents, weights []int64
	switch method {
	case Equal:
		cents, weights = equal(total.Cents, len(in.Participants))
	case Custom:
		cents, weights, err = custom(in.Total, in.Participants)
	case Percentage:
		cents, weights, err = percentage(total.Cents, in.Participants)
	case Shares:
		cents, weights, err = byShares(total.Cents, in.Participants)
	}
	if err != nil {
		return Result{}, err
	}

	var sum int64
	for _, c := range cents {
		sum += c
	}
	distribute(cents, weights, total.Cents-sum, start)

	res := Result{Method: method, Total: total, Shares: make([]Share, len(cents))}
	for i, p := range in.Participants {
		res.Shares[i] = Share{ParticipantID: p.ID, Amount: core.Money{Cents: cents[i]}}
	}
	return res, nil
}

func checkParticipants(in Input) (int, error) {
	seen := make(map[string]int, len(in.Participants))
	for i, p := range in.Participants {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return 0, invalid(fmt.Sprintf("participants[%d].id", i), ErrMissingValue)
		}
		if _, dup := seen[id]; dup {
			return 0, invalid(fmt.Sprintf("participants[%d].id", i), ErrDuplicateParticipant)
		}
		seen[id] = i
	}
	if in.RemainderTo == "" {
		return 0, nil
	}
	idx, ok := seen[strings.TrimSpace(in.RemainderTo)]
	if !ok {
		return 0, invalid("remainder_to", ErrUnknownParticipant)
	}
	return idx, nil
}

func value(i int, p Participant) (decimal.Decimal, error) {
	field := fmt.Sprintf("participants[%d].value", i)
	if p.Value == nil {
		return decimal.Zero, invalid(field, ErrMissingValue)
	}
	if p.Value.IsNegative() {
		return decimal.Zero, invalid(field, ErrNegativeValue)
	}
	return *p.Value, nil
}

func equal(total int64, n int) ([]int64, []int64) {
	cents := make([]int64, n)
	weights := make([]int64, n)
	base := total / int64(n)
	for i := range cents {
		cents[i] = base
		weights[i] = 1
	}
	return cents, weights
}

// custom checks the raw amounts against the raw total; rounding each amount
// to cents is left for distribute to reconcile.
func custom(total decimal.Decimal, ps []Participant) ([]int64, []int64, error) {
	cents := make([]int64, len(ps))
	weights := make([]int64, len(ps))
	sum := decimal.Zero
	for i, p := range ps {
		v, err := value(i, p)
		if err != nil {
			return nil, nil, err
		}
		sum = sum.Add(v)
		cents[i] = core.MoneyFromDecimal(v).Cents
		if v.IsPositive() {
			weights[i] = 1
		}
	}
	if diff := sum.Sub(total); diff.Abs().GreaterThan(tolerance) {
		return nil, nil, &ValidationError{
			Field:       "participants",
			Reason:      ErrCustomSum,
			Discrepancy: diff,
		}
	}
	return cents, weights, nil
}

func percentage(total int64, ps []Participant) ([]int64, []int64, error) {
	cents := make([]int64, len(ps))
	weights := make([]int64, len(ps))
	t := decimal.NewFromInt(total)
	sum := decimal.Zero
	for i, p := range ps {
		v, err := value(i, p)
		if err != nil {
			return nil, nil, err
		}
		if v.GreaterThan(hundred) {
			return nil, nil, invalid(fmt.Sprintf("participants[%d].value", i), ErrPercentageRange)
		}
		sum = sum.Add(v)
		cents[i] = t.Mul(v).Div(hundred).Floor().IntPart()
		if v.IsPositive() {
			weights[i] = 1
		}
	}
	if diff := sum.Sub(hundred); diff.Abs().GreaterThan(tolerance) {
		return nil, nil, &ValidationError{Field: "participants", Reason: ErrPercentageSum, Discrepancy: diff}
	}
	return cents, weights, nil
}

func byShares(total int64, ps []Participant) ([]int64, []int64, error) {
	weights := make([]int64, len(ps))
	var sum int64
	for i, p := range ps {
		v, err := value(i, p)
		if err != nil {
			return nil, nil, err
		}
		if !v.Equal(v.Truncate(0)) {
			return nil, nil, invalid(fmt.Sprintf("participants[%d].value", i), ErrFractionalShares)
		}
		weights[i] = v.IntPart()
		sum += weights[i]
	}
	if sum <= 0 {
		return nil, nil, invalid("participants", ErrZeroShares)
	}
	t := decimal.NewFromInt(total)
	s := decimal.NewFromInt(sum)
	cents := make([]int64, len(ps))
	for i, w := range weights {
		cents[i] = t.Mul(decimal.NewFromInt(w)).Div(s).Floor().IntPart()
	}
	return cents, weights, nil
}

// distribute spreads residue cents one at a time over participants with a
// positive weight, starting at start and wrapping around. A negative residue
// never takes a share below zero.
func distribute(cents, weights []int64, residue int64, start int) {
	step := int64(1)
	if residue < 0 {
		step = -1
	}
	n := len(cents)
	for residue != 0 {
		moved := false
		for k := 0; k < n && residue != 0; k++ {
			i := (start + k) % n
			if weights[i] <= 0 || (step < 0 && cents[i] == 0) {
				continue
			}
			cents[i] += step
			residue -= step
			moved = true
		}
		if !moved {
			// no eligible participant; fall back to the designated one
			cents[start] += residue
			return
		}
	}
}
