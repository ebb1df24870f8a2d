package core

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// CurrencyTable maps ISO 4217 codes to display symbols. It is built once at
// startup and handed to the components that format money; it is never
// mutated afterwards.
type CurrencyTable struct {
	fallback string
	symbols  map[string]string
}

// defaultSymbols is the table used when no CURRENCY_TABLE_FILE is configured.
var defaultSymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
	"CHF": "CHF ",
	"CAD": "CA$",
	"AUD": "A$",
}

// NewCurrencyTable copies symbols into a new table. fallback is the currency
// used when an empty code is formatted.
func NewCurrencyTable(fallback string, symbols map[string]string) *CurrencyTable {
	t := &CurrencyTable{
		fallback: strings.ToUpper(strings.TrimSpace(fallback)),
		symbols:  make(map[string]string, len(symbols)),
	}
	for code, sym := range symbols {
		t.symbols[strings.ToUpper(strings.TrimSpace(code))] = sym
	}
	if t.fallback == "" {
		t.fallback = "USD"
	}
	return t
}

// DefaultCurrencyTable returns the built-in symbol set.
func DefaultCurrencyTable(fallback string) *CurrencyTable {
	return NewCurrencyTable(fallback, defaultSymbols)
}

type currencyFile struct {
	Default    string            `yaml:"default"`
	Currencies map[string]string `yaml:"currencies"`
}

// LoadCurrencyTable reads a YAML file of the form
//
//	default: EUR
//	currencies:
//	  EUR: "€"
//	  USD: "$"
//
// Entries override the built-in symbols. fallback is used when the file has no default.
func LoadCurrencyTable(path, fallback string) (*CurrencyTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read currency table: %w", err)
	}
	var f currencyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse currency table %s: %w", path, err)
	}
	merged := make(map[string]string, len(defaultSymbols)+len(f.Currencies))
	for k, v := range defaultSymbols {
		merged[k] = v
	}
	for k, v := range f.Currencies {
		merged[k] = v
	}
	if f.Default != "" {
		fallback = f.Default
	}
	return NewCurrencyTable(fallback, merged), nil
}

// Default returns the fallback currency code.
func (t *CurrencyTable) Default() string { return t.fallback }

// Known reports whether code has a symbol.
func (t *CurrencyTable) Known(code string) bool {
	_, ok := t.symbols[strings.ToUpper(code)]
	return ok
}

// Symbol returns the symbol for code, or the code itself followed by a space.
func (t *CurrencyTable) Symbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = t.fallback
	}
	if s, ok := t.symbols[code]; ok {
		return s
	}
	return code + " "
}

// Format renders m with the symbol of code, e.g. "-€12.30".
func (t *CurrencyTable) Format(m Money, code string) string {
	sign := ""
	if m.Cents < 0 {
		sign = "-"
		m = m.Neg()
	}
	return sign + t.Symbol(code) + m.String()
}

// Codes lists the known currency codes in sorted order.
func (t *CurrencyTable) Codes() []string {
	out := make([]string, 0, len(t.symbols))
	for k := range t.symbols {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
