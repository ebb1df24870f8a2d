package query

import (
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func ledgerFilters(t *testing.T) *Filters {
	t.Helper()
	f, err := NewFilters(
		FilterDef{Key: "type", Kind: String},
		FilterDef{Key: "verified", Kind: Bool},
		FilterDef{Key: "status", Kind: String, Default: "completed"},
		FilterDef{Key: "date_from", Kind: Date},
		FilterDef{Key: "min_amount", Kind: Decimal, ParamName: "min_amount_cents", Transform: CentsTransform},
		FilterDef{Key: "limit", Kind: Int},
	)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestAPIParamsOmitsDefaults(t *testing.T) {
	f := ledgerFilters(t)
	if got := f.APIParams(); len(got) != 0 {
		t.Fatalf("expected no params at defaults, got %v", got)
	}
	if err := f.Set("type", "expense"); err != nil {
		t.Fatal(err)
	}
	if got := f.APIParams(); len(got) != 1 || got["type"] != "expense" {
		t.Fatalf("got %v", got)
	}
	if _, ok := f.APIParams()["verified"]; ok {
		t.Fatalf("unset verified must be omitted")
	}
}

func TestFilterTransformAndCanonicalForm(t *testing.T) {
	f := ledgerFilters(t)
	err := f.SetMany(map[string]string{
		"verified":   "1",
		"min_amount": "12.5",
		"date_from":  "2025-02-01",
		"limit":      "007",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"verified":         "true",
		"min_amount_cents": "1250",
		"date_from":        "2025-02-01",
		"limit":            "7",
	}
	if diff := cmp.Diff(want, f.APIParams()); diff != "" {
		t.Fatalf("params (-want +got):\n%s", diff)
	}
	if f.ActiveCount() != 4 {
		t.Fatalf("active = %d", f.ActiveCount())
	}
}

func TestFilterSetRejectsBadValues(t *testing.T) {
	f := ledgerFilters(t)
	_ = f.Set("limit", "5")
	if err := f.Set("limit", "five"); !errors.Is(err, ErrFilterValue) {
		t.Fatalf("expected ErrFilterValue, got %v", err)
	}
	if f.Get("limit") != "5" {
		t.Fatalf("rejected value changed state to %q", f.Get("limit"))
	}
	if err := f.Set("colour", "red"); !errors.Is(err, ErrUnknownFilter) {
		t.Fatalf("expected ErrUnknownFilter, got %v", err)
	}
	if err := f.SetMany(map[string]string{"type": "income", "verified": "maybe"}); err == nil {
		t.Fatalf("expected error")
	}
	if f.IsActive("type") {
		t.Fatalf("SetMany must be all or nothing")
	}
}

func TestFilterClearAndDefaults(t *testing.T) {
	f := ledgerFilters(t)
	_ = f.Set("status", "pending")
	if !f.IsActive("status") {
		t.Fatalf("status should be active")
	}
	_ = f.Set("status", "completed")
	if f.IsActive("status") {
		t.Fatalf("setting the default deactivates the filter")
	}
	_ = f.Set("status", "pending")
	_ = f.Clear("status")
	if f.Get("status") != "completed" {
		t.Fatalf("clear -> %q", f.Get("status"))
	}
	_ = f.Set("type", "income")
	f.ClearAll()
	if f.ActiveCount() != 0 {
		t.Fatalf("clear all left %v", f.Active())
	}
}

func TestFilterDecodeFallsBack(t *testing.T) {
	f := ledgerFilters(t)
	f.Decode(url.Values{
		"verified":   {"perhaps"},
		"date_from":  {"01/02/2025"},
		"type":       {"income"},
		"min_amount": {"3"},
	})
	if f.Get("verified") != "" || f.Get("date_from") != "" {
		t.Fatalf("bad values should fall back: verified=%q date_from=%q", f.Get("verified"), f.Get("date_from"))
	}
	if f.Get("status") != "completed" {
		t.Fatalf("missing value should use default, got %q", f.Get("status"))
	}
	v := url.Values{}
	f.Encode(v)
	if got := v.Encode(); got != "min_amount=3&type=income" {
		t.Fatalf("encode = %q", got)
	}
}

func TestNewFiltersRejectsBadDefs(t *testing.T) {
	cases := [][]FilterDef{
		{{Key: ""}},
		{{Key: "page"}},
		{{Key: "a"}, {Key: "a"}},
		{{Key: "n", Kind: Int, Default: "x"}},
	}
	for i, defs := range cases {
		if _, err := NewFilters(defs...); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
