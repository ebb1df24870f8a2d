package query

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Kind int

const (
	String Kind = iota
	Int
	Bool
	Date
	Decimal
)

var (
	ErrUnknownFilter = errors.New("unknown filter")
	ErrFilterValue   = errors.New("invalid filter value")
)

// FilterDef declares one filter. Default and values are kept in canonical
// string form; the empty string means unset. Transform, when set, rewrites the
// value sent to the API (not the one kept in the URL).
type FilterDef struct {
	Key       string
	Kind      Kind
	Default   string
	ParamName string
	Transform func(string) (string, error)
}

func (d FilterDef) param() string {
	if d.ParamName != "" {
		return d.ParamName
	}
	return d.Key
}

// canonical parses raw according to kind.
func canonical(kind Kind, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	switch kind {
	case String:
		return raw, nil
	case Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not an integer", ErrFilterValue, raw)
		}
		return strconv.Itoa(n), nil
	case Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not a boolean", ErrFilterValue, raw)
		}
		return strconv.FormatBool(b), nil
	case Date:
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not a date", ErrFilterValue, raw)
		}
		return t.Format(time.DateOnly), nil
	case Decimal:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not a number", ErrFilterValue, raw)
		}
		return d.String(), nil
	default:
		return "", fmt.Errorf("%w: unsupported kind %d", ErrFilterValue, kind)
	}
}

// Filters is a set of declared filters and their current values. Not safe
// for concurrent use; Composer guards it.
type Filters struct {
	defs   []FilterDef
	index  map[string]int
	values map[string]string
}

func NewFilters(defs ...FilterDef) (*Filters, error) {
	f := &Filters{
		defs:   make([]FilterDef, 0, len(defs)),
		index:  make(map[string]int, len(defs)),
		values: make(map[string]string, len(defs)),
	}
	for _, d := range defs {
		if d.Key == "" {
			return nil, errors.New("filter key required")
		}
		if reserved(d.Key) {
			return nil, fmt.Errorf("filter key %q is reserved", d.Key)
		}
		if _, dup := f.index[d.Key]; dup {
			return nil, fmt.Errorf("duplicate filter %q", d.Key)
		}
		def, err := canonical(d.Kind, d.Default)
		if err != nil {
			return nil, fmt.Errorf("filter %q default: %w", d.Key, err)
		}
		d.Default = def
		f.index[d.Key] = len(f.defs)
		f.defs = append(f.defs, d)
		f.values[d.Key] = def
	}
	return f, nil
}

func (f *Filters) def(key string) (FilterDef, error) {
	i, ok := f.index[key]
	if !ok {
		return FilterDef{}, fmt.Errorf("%w: %q", ErrUnknownFilter, key)
	}
	return f.defs[i], nil
}

// parse canonicalises raw for d; an empty value means the default.
func parse(d FilterDef, raw string) (string, error) {
	v, err := canonical(d.Kind, raw)
	if err != nil {
		return "", fmt.Errorf("filter %q: %w", d.Key, err)
	}
	if v == "" {
		return d.Default, nil
	}
	return v, nil
}

// Set assigns one filter. Invalid values are rejected and leave the filter
// unchanged; an empty value resets it.
func (f *Filters) Set(key, raw string) error {
	d, err := f.def(key)
	if err != nil {
		return err
	}
	v, err := parse(d, raw)
	if err != nil {
		return err
	}
	f.values[key] = v
	return nil
}

// SetMany assigns several filters; nothing changes if any value is rejected.
func (f *Filters) SetMany(values map[string]string) error {
	parsed := make(map[string]string, len(values))
	for key, raw := range values {
		d, err := f.def(key)
		if err != nil {
			return err
		}
		v, err := parse(d, raw)
		if err != nil {
			return err
		}
		parsed[key] = v
	}
	for k, v := range parsed {
		f.values[k] = v
	}
	return nil
}

func (f *Filters) Clear(key string) error {
	d, err := f.def(key)
	if err != nil {
		return err
	}
	f.values[key] = d.Default
	return nil
}

func (f *Filters) ClearAll() {
	for _, d := range f.defs {
		f.values[d.Key] = d.Default
	}
}

func (f *Filters) Get(key string) string { return f.values[key] }

func (f *Filters) IsActive(key string) bool {
	d, err := f.def(key)
	if err != nil {
		return false
	}
	return f.values[key] != d.Default
}

func (f *Filters) ActiveCount() int {
	n := 0
	for _, d := range f.defs {
		if f.values[d.Key] != d.Default {
			n++
		}
	}
	return n
}

// Active returns the keys of the active filters in declaration order.
func (f *Filters) Active() []string {
	var out []string
	for _, d := range f.defs {
		if f.values[d.Key] != d.Default {
			out = append(out, d.Key)
		}
	}
	return out
}

// APIParams returns the value of every active, non-empty filter under its
// API name, after Transform. Values the transform rejects are left out.
func (f *Filters) APIParams() map[string]string {
	out := make(map[string]string)
	for _, d := range f.defs {
		v := f.values[d.Key]
		if v == d.Default || v == "" {
			continue
		}
		if d.Transform != nil {
			tv, err := d.Transform(v)
			if err != nil || tv == "" {
				continue
			}
			v = tv
		}
		out[d.param()] = v
	}
	return out
}

// Encode writes the active filters into values.
func (f *Filters) Encode(values url.Values) {
	for _, d := range f.defs {
		if v := f.values[d.Key]; v != d.Default {
			values.Set(d.Key, v)
		}
	}
}

// Decode loads every declared filter from values. Missing or unparseable
// entries fall back to the default.
func (f *Filters) Decode(values url.Values) {
	for _, d := range f.defs {
		v, err := parse(d, values.Get(d.Key))
		if err != nil {
			v = d.Default
		}
		f.values[d.Key] = v
	}
}

// Keys lists the declared filter keys, sorted.
func (f *Filters) Keys() []string {
	out := make([]string, 0, len(f.defs))
	for _, d := range f.defs {
		out = append(out, d.Key)
	}
	sort.Strings(out)
	return out
}

func reserved(key string) bool {
	return key == KeyPage || key == KeyPageSize || key == KeySearch
}

// CentsTransform converts a decimal amount to integer cents.
func CentsTransform(v string) (string, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return "", err
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).String(), nil
}
