package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"conti/internal/core"
	"conti/internal/split"
)

func parseTotal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid total %q", s)
	}
	return d, nil
}

// parseParticipants reads "id" or "id=value" arguments.
func parseParticipants(args []string) ([]split.Participant, error) {
	out := make([]split.Participant, 0, len(args))
	for _, arg := range args {
		id, raw, hasValue := strings.Cut(arg, "=")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("participant %q has no name", arg)
		}
		p := split.Participant{ID: id}
		if hasValue {
			d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."))
			if err != nil {
				return nil, fmt.Errorf("invalid value for %s: %q", id, raw)
			}
			p.Value = &d
		}
		out = append(out, p)
	}
	return out, nil
}

// parseBalances reads "id=net" arguments. The nets must sum to zero.
func parseBalances(args []string) ([]core.Balance, error) {
	out := make([]core.Balance, 0, len(args))
	var sum int64
	for _, arg := range args {
		id, raw, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("balance %q must look like name=amount", arg)
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."))
		if err != nil {
			return nil, fmt.Errorf("invalid balance for %s: %q", id, raw)
		}
		net := core.MoneyFromDecimal(d)
		sum += net.Cents
		out = append(out, core.Balance{UserID: strings.TrimSpace(id), Net: net})
	}
	if sum != 0 {
		return nil, fmt.Errorf("balances add up to %s, not zero", core.Money{Cents: sum})
	}
	return out, nil
}
