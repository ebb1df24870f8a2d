package split

import (
	"sort"

	"conti/internal/core"
)

// Transfer is one payment in a settle-up plan.
type Transfer struct {
	From   string
	To     string
	Amount core.Money
}

type position struct {
	id    string
	cents int64
}

// SettleUp turns net balances into a short list of transfers: the largest
// debtor pays the largest creditor until one of them is even, then the next
// pair is taken. Ties are broken by user ID so the plan is stable.
func SettleUp(balances []core.Balance) []Transfer {
	var debtors, creditors []position
	for _, b := range balances {
		switch {
		case b.Net.Cents > 0:
			creditors = append(creditors, position{b.UserID, b.Net.Cents})
		case b.Net.Cents < 0:
			debtors = append(debtors, position{b.UserID, -b.Net.Cents})
		}
	}
	order := func(ps []position) {
		sort.SliceStable(ps, func(i, j int) bool {
			if ps[i].cents != ps[j].cents {
				return ps[i].cents > ps[j].cents
			}
			return ps[i].id < ps[j].id
		})
	}
	order(debtors)
	order(creditors)

	var out []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amt := min(debtors[i].cents, creditors[j].cents)
		out = append(out, Transfer{From: debtors[i].id, To: creditors[j].id, Amount: core.Money{Cents: amt}})
		debtors[i].cents -= amt
		creditors[j].cents -= amt
		if debtors[i].cents == 0 {
			i++
		}
		if creditors[j].cents == 0 {
			j++
		}
	}
	return out
}
