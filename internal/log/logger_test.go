package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: slog.LevelDebug}).WithComponent(ComponentGroup)
	l.Info("created", FieldGroupID, "g1")
	out := buf.String()
	if !strings.Contains(out, "component=group") || !strings.Contains(out, "group_id=g1") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))
	r := httptest.NewRequest(http.MethodPost, "/api/groups/g1/expenses?page=2", nil)
	sl.LogRequestError(context.Background(), r, errors.New("disk full"))
	for _, want := range []string{"level=ERROR", `error="disk full"`, "error_type=internal_error", "path=/api/groups/g1/expenses", "component=http"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("missing %s in %s", want, buf.String())
		}
	}

	buf.Reset()
	sl.LogPaymentRecorded(context.Background(), "g1", "e1", "bob", 1250, true)
	for _, want := range []string{"level=INFO", "amount_cents=1250", "user_id=bob", "settled=true", "operation=payment"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("missing %s in %s", want, buf.String())
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := Discard().WithComponent(ComponentHTTP)
	if got := FromContext(NewContext(context.Background(), l)); got != l {
		t.Fatalf("logger not carried by context")
	}
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Fatalf("fallback component = %q", got.Component())
	}
}
