package split

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"conti/internal/core"
)

func people(ids ...string) []Participant {
	out := make([]Participant, len(ids))
	for i, id := range ids {
		out[i] = Participant{ID: id}
	}
	return out
}

func weighted(pairs ...string) []Participant {
	out := make([]Participant, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Participant{ID: pairs[i], Value: Value(pairs[i+1])})
	}
	return out
}

func cents(r Result) []int64 {
	out := make([]int64, len(r.Shares))
	for i, s := range r.Shares {
		out[i] = s.Amount.Cents
	}
	return out
}

func TestComputeMethods(t *testing.T) {
	cases := []struct {
		name string
		in   Input
		want []int64
	}{
		{
			name: "equal even",
			in:   Input{Total: decimal.RequireFromString("30"), Method: Equal, Participants: people("a", "b", "c")},
			want: []int64{1000, 1000, 1000},
		},
		{
			name: "equal remainder from first",
			in:   Input{Total: decimal.RequireFromString("100"), Method: Equal, Participants: people("a", "b", "c")},
			want: []int64{3334, 3333, 3333},
		},
		{
			name: "equal remainder from payer wraps",
			in:   Input{Total: decimal.RequireFromString("0.05"), Method: Equal, Participants: people("a", "b", "c"), RemainderTo: "c"},
			want: []int64{2, 1, 2},
		},
		{
			name: "shares 1 1 2",
			in:   Input{Total: decimal.RequireFromString("100.00"), Method: Shares, Participants: weighted("a", "1", "b", "1", "c", "2")},
			want: []int64{2500, 2500, 5000},
		},
		{
			name: "shares zero weight gets nothing",
			in:   Input{Total: decimal.RequireFromString("10"), Method: Shares, Participants: weighted("a", "0", "b", "1", "c", "2")},
			want: []int64{0, 334, 666},
		},
		{
			name: "percentage 50 30 20 of 99.99",
			in:   Input{Total: decimal.RequireFromString("99.99"), Method: Percentage, Participants: weighted("a", "50", "b", "30", "c", "20")},
			want: []int64{5000, 3000, 1999},
		},
		{
			name: "percentage within tolerance over 100",
			in:   Input{Total: decimal.RequireFromString("100"), Method: Percentage, Participants: weighted("a", "50.01", "b", "30", "c", "20")},
			want: []int64{5000, 3000, 2000},
		},
		{
			name: "custom exact",
			in:   Input{Total: decimal.RequireFromString("50"), Method: Custom, Participants: weighted("a", "20", "b", "30")},
			want: []int64{2000, 3000},
		},
		{
			name: "custom one cent short reconciled on payer",
			in:   Input{Total: decimal.RequireFromString("50"), Method: "amount", Participants: weighted("a", "20", "b", "29.99"), RemainderTo: "b"},
			want: []int64{2000, 3000},
		},
		{
			name: "total rounded half up",
			in:   Input{Total: decimal.RequireFromString("10.005"), Method: Equal, Participants: people("a", "b")},
			want: []int64{501, 500},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Compute(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, cents(res)); diff != "" {
				t.Fatalf("shares mismatch (-want +got):\n%s", diff)
			}
			var sum int64
			for _, c := range cents(res) {
				sum += c
			}
			if sum != res.Total.Cents {
				t.Fatalf("sum %d != total %d", sum, res.Total.Cents)
			}
		})
	}
}

func TestEqualSplitIsBalanced(t *testing.T) {
	for n := 1; n <= 9; n++ {
		for _, total := range []string{"0.01", "1", "9.99", "100", "1234.57"} {
			ids := make([]string, n)
			for i := range ids {
				ids[i] = fmt.Sprintf("p%d", i)
			}
			res, err := Compute(Input{Total: decimal.RequireFromString(total), Method: Equal, Participants: people(ids...)})
			if err != nil {
				t.Fatalf("n=%d total=%s: %v", n, total, err)
			}
			var sum, lo, hi int64
			lo = res.Shares[0].Amount.Cents
			hi = lo
			for _, s := range res.Shares {
				sum += s.Amount.Cents
				lo = min(lo, s.Amount.Cents)
				hi = max(hi, s.Amount.Cents)
			}
			if sum != res.Total.Cents {
				t.Fatalf("n=%d total=%s: sum %d != %d", n, total, sum, res.Total.Cents)
			}
			if hi-lo > 1 {
				t.Fatalf("n=%d total=%s: spread %d cents", n, total, hi-lo)
			}
		}
	}
}

func TestComputeValidation(t *testing.T) {
	cases := []struct {
		name  string
		in    Input
		want  error
		field string
	}{
		{"zero total", Input{Total: decimal.Zero, Method: Equal, Participants: people("a")}, ErrInvalidTotal, "total"},
		{"negative total", Input{Total: decimal.RequireFromString("-5"), Method: Equal, Participants: people("a")}, ErrInvalidTotal, "total"},
		{"no participants", Input{Total: decimal.RequireFromString("5"), Method: Equal}, ErrNoParticipants, "participants"},
		{"duplicate", Input{Total: decimal.RequireFromString("5"), Method: Equal, Participants: people("a", "a")}, ErrDuplicateParticipant, "participants[1].id"},
		{"empty id", Input{Total: decimal.RequireFromString("5"), Method: Equal, Participants: people("")}, ErrMissingValue, "participants[0].id"},
		{"unknown remainder", Input{Total: decimal.RequireFromString("5"), Method: Equal, Participants: people("a"), RemainderTo: "z"}, ErrUnknownParticipant, "remainder_to"},
		{"unknown method", Input{Total: decimal.RequireFromString("5"), Method: "lottery", Participants: people("a")}, ErrUnknownMethod, "method"},
		{"missing value", Input{Total: decimal.RequireFromString("5"), Method: Custom, Participants: people("a")}, ErrMissingValue, "participants[0].value"},
		{"negative value", Input{Total: decimal.RequireFromString("5"), Method: Shares, Participants: weighted("a", "-1")}, ErrNegativeValue, "participants[0].value"},
		{"fractional shares", Input{Total: decimal.RequireFromString("5"), Method: Shares, Participants: weighted("a", "1.5")}, ErrFractionalShares, "participants[0].value"},
		{"zero shares", Input{Total: decimal.RequireFromString("5"), Method: Shares, Participants: weighted("a", "0", "b", "0")}, ErrZeroShares, "participants"},
		{"percentage over range", Input{Total: decimal.RequireFromString("5"), Method: Percentage, Participants: weighted("a", "120")}, ErrPercentageRange, "participants[0].value"},
		{"percentage sum", Input{Total: decimal.RequireFromString("5"), Method: Percentage, Participants: weighted("a", "50", "b", "40")}, ErrPercentageSum, "participants"},
		{"custom sum", Input{Total: decimal.RequireFromString("50"), Method: Custom, Participants: weighted("a", "20", "b", "20")}, ErrCustomSum, "participants"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compute(tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestCustomSubCentAmountsReconcile(t *testing.T) {
	in := Input{
		Total:        decimal.RequireFromString("0.02"),
		Method:       Custom,
		Participants: weighted("a", "0.005", "b", "0.005", "c", "0.005", "d", "0.005"),
	}
	res, err := Compute(in)
	if err != nil {
		t.Fatalf("raw amounts add up to the total exactly: %v", err)
	}
	if diff := cmp.Diff([]int64{0, 0, 1, 1}, cents(res)); diff != "" {
		t.Errorf("cents (-want +got):\n%s", diff)
	}

	// Within a cent of the total is accepted and reconciled.
	in = Input{Total: decimal.RequireFromString("10"), Method: Custom, Participants: weighted("a", "3.333", "b", "3.333", "c", "3.333")}
	res, err = Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{334, 333, 333}, cents(res)); diff != "" {
		t.Errorf("cents (-want +got):\n%s", diff)
	}
}

func TestDiscrepancyReported(t *testing.T) {
	_, err := Compute(Input{Total: decimal.RequireFromString("50"), Method: Custom, Participants: weighted("a", "20", "b", "20")})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !ve.Discrepancy.Equal(decimal.RequireFromString("-10")) {
		t.Fatalf("discrepancy = %s", ve.Discrepancy)
	}

	_, err = Compute(Input{Total: decimal.RequireFromString("5"), Method: Percentage, Participants: weighted("a", "60", "b", "45")})
	if !errors.As(err, &ve) || !ve.Discrepancy.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("percentage discrepancy = %v", err)
	}
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]Method{"equal": Equal, " Shares ": Shares, "amount": Custom, "PERCENTAGE": Percentage} {
		got, err := ParseMethod(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %q, %v", in, got, err)
		}
	}
	if _, err := ParseMethod("split"); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}

func TestAmounts(t *testing.T) {
	res, err := Compute(Input{Total: decimal.RequireFromString("10"), Method: Equal, Participants: people("a", "b")})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]core.Money{"a": {Cents: 500}, "b": {Cents: 500}}
	if diff := cmp.Diff(want, res.Amounts()); diff != "" {
		t.Fatalf("amounts (-want +got):\n%s", diff)
	}
}
