package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"conti/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{CredentialsJSON: "{}"})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCredentialsPreferInlineJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := credentials(Config{CredentialsJSON: `{"from":"env"}`, CredentialsFile: path})
	if err != nil || string(got) != `{"from":"env"}` {
		t.Fatalf("inline = %s, %v", got, err)
	}
	got, err = credentials(Config{CredentialsFile: path})
	if err != nil || string(got) != `{"from":"file"}` {
		t.Fatalf("file = %s, %v", got, err)
	}
	if _, err := credentials(Config{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestAppendWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Ledger"}
	if _, err := c.AppendTransaction(context.Background(), core.Transaction{ID: "t1"}); err == nil {
		t.Fatal("expected an error without a service")
	}
}

func TestLastColumn(t *testing.T) {
	if got := lastColumn(); got != "K" {
		t.Fatalf("lastColumn() = %q, want K", got)
	}
}
