package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pterm/pterm"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	pterm.DisableStyling()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestSplitByShares(t *testing.T) {
	out, err := run(t, "--method", "shares", "--total", "100", "--payer", "alice", "--currency", "EUR", "alice=1", "bob=1", "carol=2")
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, out)
	}
	for _, want := range []string{"shares split of €100.00", "Owes alice", "€25.00", "€50.00", "€0.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSplitValidationMessage(t *testing.T) {
	_, err := run(t, "--method", "percentage", "--total", "100", "alice=50", "bob=40")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "off by -10.00") {
		t.Errorf("error = %v", err)
	}
}

func TestSplitUnknownPayer(t *testing.T) {
	_, err := run(t, "--total", "30", "--payer", "dave", "alice", "bob")
	if err == nil || !strings.Contains(err.Error(), "not a participant") {
		t.Fatalf("error = %v", err)
	}
}

func TestSettleCommand(t *testing.T) {
	out, err := run(t, "settle", "alice=56.66", "bob=-23.33", "carol=-33.33")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	carol := strings.Index(out, "carol")
	bob := strings.Index(out, "bob")
	if carol < 0 || bob < 0 || carol > bob {
		t.Errorf("largest debtor should pay first:\n%s", out)
	}

	if _, err := run(t, "settle", "alice=10", "bob=-5"); err == nil {
		t.Error("expected error for unbalanced input")
	}
}

func TestParseParticipants(t *testing.T) {
	ps, err := parseParticipants([]string{"alice", "bob=12,50"})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, p := range ps {
		v := "-"
		if p.Value != nil {
			v = p.Value.StringFixed(2)
		}
		got = append(got, p.ID+":"+v)
	}
	if diff := cmp.Diff([]string{"alice:-", "bob:12.50"}, got); diff != "" {
		t.Errorf("participants (-want +got):\n%s", diff)
	}

	for _, bad := range [][]string{{"=3"}, {"bob=x"}} {
		if _, err := parseParticipants(bad); err == nil {
			t.Errorf("parseParticipants(%v) should fail", bad)
		}
	}
}

func TestCapitalize(t *testing.T) {
	if got := capitalize("total: invalid"); got != "Total: invalid" {
		t.Errorf("got %q", got)
	}
	if capitalize("") != "" {
		t.Error("empty input")
	}
}
