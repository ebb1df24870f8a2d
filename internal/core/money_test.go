package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyDecimalRoundTrip(t *testing.T) {
	m := MoneyFromDecimal(decimal.RequireFromString("12.345"))
	if m.Cents != 1235 {
		t.Fatalf("expected half-up 1235, got %d", m.Cents)
	}
	if got := (Money{Cents: -1230}).String(); got != "-12.30" {
		t.Fatalf("got %q", got)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestCurrencyTable(t *testing.T) {
	tbl := DefaultCurrencyTable("eur")
	if tbl.Default() != "EUR" {
		t.Fatalf("default = %q", tbl.Default())
	}
	if got := tbl.Format(Money{Cents: -1230}, "eur"); got != "-€12.30" {
		t.Fatalf("got %q", got)
	}
	if got := tbl.Format(Money{Cents: 500}, ""); got != "€5.00" {
		t.Fatalf("empty code should use default, got %q", got)
	}
	if got := tbl.Symbol("XYZ"); got != "XYZ " {
		t.Fatalf("unknown code symbol = %q", got)
	}
}

func TestLoadCurrencyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "currencies.yaml")
	body := "default: GBP\ncurrencies:\n  BRL: \"R$\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	tbl, err := LoadCurrencyTable(path, "USD")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tbl.Default() != "GBP" || tbl.Symbol("BRL") != "R$" || tbl.Symbol("USD") != "$" {
		t.Fatalf("unexpected table: default=%s codes=%v", tbl.Default(), tbl.Codes())
	}
	if _, err := LoadCurrencyTable(filepath.Join(t.TempDir(), "missing.yaml"), "USD"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
