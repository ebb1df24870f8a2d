package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/services"
	"conti/internal/storage/memory"
)

type testServer struct {
	srv       *Server
	store     *memory.Store
	recurring *services.RecurringService
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	store := memory.New()
	currencies := core.DefaultCurrencyTable("EUR")
	groups := services.NewGroupService(store, services.NewLedgerProjector(store), services.Options{Currencies: currencies})
	recurring := services.NewRecurringService(store, currencies)
	srv := NewServer(cfg, Deps{
		Groups:       groups,
		Transactions: services.NewTransactionService(store, currencies),
		Recurring:    recurring,
		Accounts:     services.NewAccountService(store, currencies),
		Goals:        services.NewGoalService(store, currencies),
		Currencies:   currencies,
		Logger:       applog.Discard(),
		Ready:        store.Ping,
	})
	t.Cleanup(func() { srv.limiter.Stop() })
	return &testServer{srv: srv, store: store, recurring: recurring}
}

func (ts *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body %s", rr.Code, want, rr.Body.String())
	}
}

// seedGroup creates a group owned by alice with bob and carol as members.
func (ts *testServer) seedGroup(t *testing.T) string {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/groups", "alice", createGroupRequest{Name: "Trip", OwnerName: "Alice"})
	expectStatus(t, rr, http.StatusCreated)
	g := decode[groupJSON](t, rr)
	for _, u := range []string{"bob", "carol"} {
		rr := ts.do(t, http.MethodPost, "/api/groups/"+g.ID+"/members", "alice", memberRequest{UserID: u, Name: u})
		expectStatus(t, rr, http.StatusOK)
	}
	return g.ID
}

func TestHealthReadyMetrics(t *testing.T) {
	ts := newTestServer(t, Config{})
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := ts.do(t, http.MethodGet, path, "", nil)
		expectStatus(t, rr, http.StatusOK)
	}
	rr := ts.do(t, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(rr.Body.String(), "conti_http_requests_total 3") {
		t.Fatalf("metrics body: %s", rr.Body.String())
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
}

func TestReadyFailure(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.srv.ready = func(ctx context.Context) error { return errors.New("db down") }
	expectStatus(t, ts.do(t, http.MethodGet, "/readyz", "", nil), http.StatusServiceUnavailable)
}

func TestAPIRequiresCaller(t *testing.T) {
	ts := newTestServer(t, Config{})
	rr := ts.do(t, http.MethodGet, "/api/groups", "", nil)
	expectStatus(t, rr, http.StatusUnauthorized)
}

func TestClientConfig(t *testing.T) {
	ts := newTestServer(t, Config{PageSizes: []int{10, 25}, DefaultPageSize: 25, SearchDebounce: 300 * time.Millisecond})
	rr := ts.do(t, http.MethodGet, "/api/config", "alice", nil)
	expectStatus(t, rr, http.StatusOK)
	got := decode[clientConfigJSON](t, rr)
	if got.SearchDebounceMS != 300 || got.DefaultPageSize != 25 || got.DefaultCurrency != "EUR" {
		t.Fatalf("config = %+v", got)
	}
	if diff := cmp.Diff([]int{10, 25}, got.PageSizes); diff != "" {
		t.Errorf("page sizes (-want +got):\n%s", diff)
	}
}

func TestSplitPreview(t *testing.T) {
	ts := newTestServer(t, Config{})
	one, two := "1", "2"
	rr := ts.do(t, http.MethodPost, "/api/splits/preview", "alice", splitRequest{
		Total:  "100",
		Method: "shares",
		Participants: []participantRequest{
			{ID: "alice", Value: &one}, {ID: "bob", Value: &one}, {ID: "carol", Value: &two},
		},
	})
	expectStatus(t, rr, http.StatusOK)
	got := decode[splitJSON](t, rr)
	var amounts []string
	for _, s := range got.Shares {
		amounts = append(amounts, s.Amount.Amount)
	}
	if diff := cmp.Diff([]string{"25.00", "25.00", "50.00"}, amounts); diff != "" {
		t.Fatalf("shares mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitPreview_Validation(t *testing.T) {
	ts := newTestServer(t, Config{})
	sixty, thirty := "60", "30"
	rr := ts.do(t, http.MethodPost, "/api/splits/preview", "alice", splitRequest{
		Total:        "50",
		Method:       "percentage",
		Participants: []participantRequest{{ID: "a", Value: &sixty}, {ID: "b", Value: &thirty}},
	})
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	body := decode[errorBody](t, rr)
	if body.Field == "" || body.Discrepancy != "-10" {
		t.Fatalf("unexpected error body %+v", body)
	}

	rr = ts.do(t, http.MethodPost, "/api/splits/preview", "alice", splitRequest{Total: "0", Participants: []participantRequest{{ID: "a"}}})
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	if body := decode[errorBody](t, rr); body.Field != "total" {
		t.Fatalf("field = %q, want total", body.Field)
	}

	rr = ts.do(t, http.MethodPost, "/api/splits/preview", "alice", "{not json")
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestExpenseLifecycle(t *testing.T) {
	ts := newTestServer(t, Config{})
	groupID := ts.seedGroup(t)
	base := "/api/groups/" + groupID

	rr := ts.do(t, http.MethodPost, base+"/expenses", "alice", createExpenseRequest{Title: "Dinner", Total: "100,00", Date: "2025-06-01"})
	expectStatus(t, rr, http.StatusCreated)
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "expense:created") {
		t.Fatalf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
	e := decode[expenseJSON](t, rr)
	var amounts []string
	for _, s := range e.Shares {
		amounts = append(amounts, s.UserID+"="+s.Amount.Amount)
	}
	if diff := cmp.Diff([]string{"alice=33.34", "bob=33.33", "carol=33.33"}, amounts); diff != "" {
		t.Fatalf("shares mismatch (-want +got):\n%s", diff)
	}
	if e.Total.Display != "€100.00" {
		t.Fatalf("display = %q", e.Total.Display)
	}

	// Outsiders see nothing.
	expectStatus(t, ts.do(t, http.MethodGet, base+"/expenses/"+e.ID, "mallory", nil), http.StatusForbidden)
	expectStatus(t, ts.do(t, http.MethodGet, base+"/expenses/missing", "alice", nil), http.StatusNotFound)

	rr = ts.do(t, http.MethodPost, base+"/expenses/"+e.ID+"/payments", "bob", paymentRequest{Amount: "10"})
	expectStatus(t, rr, http.StatusOK)
	if sh := decode[shareJSON](t, rr); sh.Remaining.Amount != "23.33" {
		t.Fatalf("remaining = %s", sh.Remaining.Amount)
	}
	rr = ts.do(t, http.MethodPost, base+"/expenses/"+e.ID+"/payments", "bob", paymentRequest{Amount: "50"})
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	if body := decode[errorBody](t, rr); body.Field != "amount" {
		t.Fatalf("field = %q", body.Field)
	}

	rr = ts.do(t, http.MethodGet, base+"/balances", "carol", nil)
	expectStatus(t, rr, http.StatusOK)
	nets := map[string]string{}
	for _, b := range decode[[]balanceJSON](t, rr) {
		nets[b.UserID] = b.Net.Amount
	}
	if diff := cmp.Diff(map[string]string{"alice": "56.66", "bob": "-23.33", "carol": "-33.33"}, nets); diff != "" {
		t.Fatalf("balances mismatch (-want +got):\n%s", diff)
	}

	rr = ts.do(t, http.MethodGet, base+"/settle-up", "alice", nil)
	expectStatus(t, rr, http.StatusOK)
	if plan := decode[[]transferJSON](t, rr); len(plan) != 2 || plan[0].From != "carol" || plan[0].To != "alice" {
		t.Fatalf("plan = %+v", plan)
	}

	rr = ts.do(t, http.MethodPost, base+"/expenses/"+e.ID+"/settle", "bob", nil)
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "expense:settled") {
		t.Fatalf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
	expectStatus(t, ts.do(t, http.MethodPost, base+"/expenses/"+e.ID+"/cancel", "bob", nil), http.StatusConflict)

	rr = ts.do(t, http.MethodGet, base+"/expenses/summary", "alice", nil)
	expectStatus(t, rr, http.StatusOK)
	sum := decode[summaryJSON](t, rr)
	if sum.Count != 1 || sum.ByStatus["settled"].Count != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	// The inline projection gave bob a ledger entry for his share.
	rr = ts.do(t, http.MethodGet, "/api/transactions?category=group", "bob", nil)
	expectStatus(t, rr, http.StatusOK)
	list := decode[listJSON[transactionJSON]](t, rr)
	if len(list.Items) != 1 || list.Items[0].Amount.Amount != "-33.33" {
		t.Fatalf("bob ledger = %+v", list.Items)
	}
}

func TestListExpenses_QueryWriteBack(t *testing.T) {
	ts := newTestServer(t, Config{})
	groupID := ts.seedGroup(t)
	base := "/api/groups/" + groupID + "/expenses"
	for _, title := range []string{"Coffee", "Train", "Coffee beans"} {
		expectStatus(t, ts.do(t, http.MethodPost, base, "alice", createExpenseRequest{Title: title, Total: "9"}), http.StatusCreated)
	}

	rr := ts.do(t, http.MethodGet, base+"?search=+coffee+&page_size=50&page=3&paid_by=alice&bogus=1", "bob", nil)
	expectStatus(t, rr, http.StatusOK)
	list := decode[listJSON[expenseJSON]](t, rr)
	if len(list.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(list.Items))
	}
	want := pageJSON{Page: 1, PageSize: 50, TotalCount: 2, TotalPages: 1, Query: "page_size=50&paid_by=alice&search=coffee"}
	if diff := cmp.Diff(want, list.Page); diff != "" {
		t.Fatalf("page mismatch (-want +got):\n%s", diff)
	}
	if got := rr.Header().Get("HX-Replace-Url"); got != base+"?page_size=50&paid_by=alice&search=coffee" {
		t.Fatalf("HX-Replace-Url = %q", got)
	}

	rr = ts.do(t, http.MethodGet, base, "bob", nil)
	if got := rr.Header().Get("HX-Replace-Url"); got != base {
		t.Fatalf("default state must encode to a bare path, got %q", got)
	}

	expectStatus(t, ts.do(t, http.MethodGet, base+"?status=lost", "bob", nil), http.StatusUnprocessableEntity)
}

func TestMemberManagement(t *testing.T) {
	ts := newTestServer(t, Config{})
	groupID := ts.seedGroup(t)
	base := "/api/groups/" + groupID + "/members"

	expectStatus(t, ts.do(t, http.MethodDelete, base+"/carol", "bob", nil), http.StatusForbidden)
	expectStatus(t, ts.do(t, http.MethodDelete, base+"/alice", "alice", nil), http.StatusUnprocessableEntity)
	expectStatus(t, ts.do(t, http.MethodDelete, base+"/carol", "alice", nil), http.StatusNoContent)

	rr := ts.do(t, http.MethodGet, base, "bob", nil)
	expectStatus(t, rr, http.StatusOK)
	var ids []string
	for _, m := range decode[[]memberJSON](t, rr) {
		ids = append(ids, m.UserID)
	}
	if diff := cmp.Diff([]string{"alice", "bob"}, ids); diff != "" {
		t.Fatalf("members mismatch (-want +got):\n%s", diff)
	}

	rr = ts.do(t, http.MethodGet, "/api/groups", "bob", nil)
	if groups := decode[[]groupJSON](t, rr); len(groups) != 1 || groups[0].ID != groupID {
		t.Fatalf("bob's groups = %+v", groups)
	}
}

func TestTransactions(t *testing.T) {
	ts := newTestServer(t, Config{})

	rr := ts.do(t, http.MethodPost, "/api/transactions", "dana", transactionRequest{Amount: "12.50", Description: "Lunch", Category: "food", Date: "2025-05-02"})
	expectStatus(t, rr, http.StatusCreated)
	lunch := decode[transactionJSON](t, rr)
	if lunch.Amount.Amount != "-12.50" || lunch.Type != "expense" {
		t.Fatalf("lunch = %+v", lunch)
	}
	expectStatus(t, ts.do(t, http.MethodPost, "/api/transactions", "dana", transactionRequest{Amount: "3", Description: "Gum", Date: "2025-05-03"}), http.StatusCreated)
	expectStatus(t, ts.do(t, http.MethodPost, "/api/transactions", "dana", transactionRequest{Description: "No amount"}), http.StatusUnprocessableEntity)

	rr = ts.do(t, http.MethodGet, "/api/transactions?min_amount=10", "dana", nil)
	list := decode[listJSON[transactionJSON]](t, rr)
	if len(list.Items) != 1 || list.Items[0].ID != lunch.ID {
		t.Fatalf("filtered list = %+v", list.Items)
	}

	rr = ts.do(t, http.MethodPost, "/api/transactions/"+lunch.ID+"/verify", "dana", nil)
	expectStatus(t, rr, http.StatusOK)
	if !decode[transactionJSON](t, rr).Verified {
		t.Fatal("transaction not verified")
	}
	expectStatus(t, ts.do(t, http.MethodPost, "/api/transactions/"+lunch.ID+"/verify", "erin", nil), http.StatusNotFound)

	rr = ts.do(t, http.MethodGet, "/api/transactions?verified=true", "dana", nil)
	if list := decode[listJSON[transactionJSON]](t, rr); len(list.Items) != 1 {
		t.Fatalf("verified list = %+v", list.Items)
	}
}

func TestRecurringTemplates(t *testing.T) {
	ts := newTestServer(t, Config{})

	rr := ts.do(t, http.MethodPost, "/api/recurring", "alice", recurringRequest{
		Name:          "Rent",
		Amount:        "800",
		Frequency:     "Monthly",
		StartDate:     "2025-01-31",
		MaxExecutions: 2,
	})
	expectStatus(t, rr, http.StatusCreated)
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "recurring:created") {
		t.Fatalf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
	tmpl := decode[recurringJSON](t, rr)
	if tmpl.Frequency != "monthly" || tmpl.Interval != 1 || tmpl.NextExecution != "2025-01-31" || !tmpl.Active {
		t.Fatalf("created = %+v", tmpl)
	}
	if tmpl.Amount.Amount != "-800.00" || tmpl.Type != "expense" {
		t.Fatalf("amount = %+v type = %q", tmpl.Amount, tmpl.Type)
	}

	expectStatus(t, ts.do(t, http.MethodGet, "/api/recurring/"+tmpl.ID, "bob", nil), http.StatusNotFound)
	rr = ts.do(t, http.MethodGet, "/api/recurring", "alice", nil)
	expectStatus(t, rr, http.StatusOK)
	if list := decode[[]recurringJSON](t, rr); len(list) != 1 || list[0].ID != tmpl.ID {
		t.Fatalf("list = %+v", list)
	}

	rr = ts.do(t, http.MethodPost, "/api/recurring/"+tmpl.ID+"/active", "alice", map[string]bool{"active": false})
	expectStatus(t, rr, http.StatusOK)
	if got := decode[recurringJSON](t, rr); got.Active {
		t.Fatal("template still active after pause")
	}
	expectStatus(t, ts.do(t, http.MethodPost, "/api/recurring/"+tmpl.ID+"/active", "alice", nil), http.StatusUnprocessableEntity)
	expectStatus(t, ts.do(t, http.MethodPost, "/api/recurring/"+tmpl.ID+"/active", "alice", map[string]bool{"active": true}), http.StatusOK)

	n, err := ts.recurring.ProcessDue(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("ProcessDue = %d, %v", n, err)
	}
	rr = ts.do(t, http.MethodGet, "/api/recurring/"+tmpl.ID, "alice", nil)
	expectStatus(t, rr, http.StatusOK)
	done := decode[recurringJSON](t, rr)
	if done.Executions != 2 || done.NextExecution != "" || done.Active {
		t.Fatalf("finished template = %+v", done)
	}
	expectStatus(t, ts.do(t, http.MethodPost, "/api/recurring/"+tmpl.ID+"/active", "alice", map[string]bool{"active": true}), http.StatusConflict)

	rr = ts.do(t, http.MethodGet, "/api/transactions", "alice", nil)
	expectStatus(t, rr, http.StatusOK)
	var dates []string
	for _, tx := range decode[listJSON[transactionJSON]](t, rr).Items {
		dates = append(dates, tx.Date)
	}
	if diff := cmp.Diff([]string{"2025-02-28", "2025-01-31"}, dates); diff != "" {
		t.Errorf("ledger dates (-want +got):\n%s", diff)
	}
}

func TestCreateRecurring_Validation(t *testing.T) {
	ts := newTestServer(t, Config{})
	tests := []struct {
		name  string
		req   recurringRequest
		field string
	}{
		{"missing amount", recurringRequest{Name: "Gym", Frequency: "weekly"}, "amount"},
		{"bad frequency", recurringRequest{Name: "Gym", Amount: "30", Frequency: "hourly"}, "frequency"},
		{"bad start", recurringRequest{Name: "Gym", Amount: "30", Frequency: "weekly", StartDate: "01/02/2025"}, "start_date"},
		{"end before start", recurringRequest{Name: "Gym", Amount: "30", Frequency: "weekly", StartDate: "2025-03-01", EndDate: "2025-02-01"}, "end_date"},
		{"missing name", recurringRequest{Amount: "30", Frequency: "weekly"}, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, "/api/recurring", "alice", tt.req)
			expectStatus(t, rr, http.StatusUnprocessableEntity)
			if body := decode[errorBody](t, rr); body.Field != tt.field {
				t.Fatalf("field = %q, want %q (%+v)", body.Field, tt.field, body)
			}
		})
	}
}

func TestAccounts(t *testing.T) {
	ts := newTestServer(t, Config{})

	rr := ts.do(t, http.MethodPost, "/api/accounts", "dana", accountRequest{Name: "Conto", OpeningBalance: "100,00"})
	expectStatus(t, rr, http.StatusCreated)
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "account:created") {
		t.Fatalf("trigger = %q", rr.Header().Get("HX-Trigger"))
	}
	conto := decode[accountJSON](t, rr)
	if conto.Type != "checking" || conto.Balance.Cents != 10000 || conto.Balance.Currency != "EUR" {
		t.Fatalf("created = %+v", conto)
	}
	rr = ts.do(t, http.MethodPost, "/api/accounts", "dana", accountRequest{Name: "Libretto", Type: "savings"})
	expectStatus(t, rr, http.StatusCreated)
	libretto := decode[accountJSON](t, rr)

	rr = ts.do(t, http.MethodPost, "/api/transactions", "dana", transactionRequest{Amount: "30", Description: "Spesa", AccountID: conto.ID})
	expectStatus(t, rr, http.StatusCreated)
	if tx := decode[transactionJSON](t, rr); tx.AccountID != conto.ID {
		t.Fatalf("entry not booked: %+v", tx)
	}
	expectStatus(t, ts.do(t, http.MethodPost, "/api/transactions", "erin", transactionRequest{Amount: "1", Description: "x", AccountID: conto.ID}), http.StatusUnprocessableEntity)
	expectStatus(t, ts.do(t, http.MethodPost, "/api/transactions", "dana", transactionRequest{Amount: "2", Description: "Caffè"}), http.StatusCreated)

	rr = ts.do(t, http.MethodGet, "/api/transactions?account="+conto.ID, "dana", nil)
	expectStatus(t, rr, http.StatusOK)
	if list := decode[listJSON[transactionJSON]](t, rr); len(list.Items) != 1 || list.Page.Query != "account="+conto.ID {
		t.Fatalf("account list = %+v", list)
	}

	rr = ts.do(t, http.MethodPost, "/api/accounts/transfers", "dana", transferRequest{From: conto.ID, To: libretto.ID, Amount: "50"})
	expectStatus(t, rr, http.StatusCreated)
	transfer := decode[accountTransferJSON](t, rr)
	if transfer.Out.Amount.Cents != -5000 || transfer.In.AccountID != libretto.ID {
		t.Fatalf("transfer = %+v", transfer)
	}
	rr = ts.do(t, http.MethodPost, "/api/accounts/transfers", "dana", transferRequest{From: conto.ID, To: libretto.ID, Amount: "500"})
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	if body := decode[errorBody](t, rr); body.Field != "amount" {
		t.Fatalf("insufficient funds body = %+v", body)
	}

	rr = ts.do(t, http.MethodPost, "/api/accounts/"+conto.ID+"/reconcile", "dana", reconcileRequest{Balance: "15"})
	expectStatus(t, rr, http.StatusOK)
	rec := decode[reconcileJSON](t, rr)
	if rec.Adjustment == nil || rec.Adjustment.Amount.Cents != -500 || rec.Account.Balance.Cents != 1500 {
		t.Fatalf("reconcile = %+v", rec)
	}

	rr = ts.do(t, http.MethodGet, "/api/accounts/"+libretto.ID, "dana", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decode[accountJSON](t, rr); got.Balance.Cents != 5000 || got.Entries != 1 {
		t.Fatalf("savings = %+v", got)
	}
	expectStatus(t, ts.do(t, http.MethodGet, "/api/accounts/"+libretto.ID, "erin", nil), http.StatusNotFound)
	expectStatus(t, ts.do(t, http.MethodPost, "/api/accounts/"+libretto.ID+"/active", "dana", map[string]bool{"active": false}), http.StatusConflict)

	rr = ts.do(t, http.MethodGet, "/api/accounts/summary", "dana", nil)
	expectStatus(t, rr, http.StatusOK)
	want := []accountTypeTotalJSON{
		{Type: "checking", Accounts: 1, Balance: ts.srv.present.money(core.Money{Cents: 1500}, "EUR")},
		{Type: "savings", Accounts: 1, Balance: ts.srv.present.money(core.Money{Cents: 5000}, "EUR")},
	}
	if diff := cmp.Diff(want, decode[[]accountTypeTotalJSON](t, rr)); diff != "" {
		t.Errorf("summary (-want +got):\n%s", diff)
	}

	rr = ts.do(t, http.MethodGet, "/api/accounts?archived=maybe", "dana", nil)
	expectStatus(t, rr, http.StatusUnprocessableEntity)
}

func TestGoals(t *testing.T) {
	ts := newTestServer(t, Config{})

	rr := ts.do(t, http.MethodPost, "/api/goals", "dana", goalRequest{Name: "Vacanza", Target: "400", TargetDate: "2025-08-01"})
	expectStatus(t, rr, http.StatusCreated)
	vacanza := decode[goalJSON](t, rr)
	if vacanza.Percent != "0.00" || vacanza.Remaining.Cents != 40000 || vacanza.TargetDate != "2025-08-01" {
		t.Fatalf("created = %+v", vacanza)
	}

	rr = ts.do(t, http.MethodPost, "/api/goals/"+vacanza.ID+"/contributions", "dana", contributionRequest{Amount: "100"})
	expectStatus(t, rr, http.StatusOK)
	if got := decode[goalJSON](t, rr); got.Percent != "25.00" || got.Current.Cents != 10000 {
		t.Fatalf("after contribution = %+v", got)
	}
	rr = ts.do(t, http.MethodPost, "/api/goals/"+vacanza.ID+"/contributions", "dana", contributionRequest{Amount: "300"})
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "goal:completed") {
		t.Fatalf("trigger = %q", rr.Header().Get("HX-Trigger"))
	}
	expectStatus(t, ts.do(t, http.MethodPost, "/api/goals/"+vacanza.ID+"/contributions", "dana", contributionRequest{Amount: "1"}), http.StatusConflict)

	rr = ts.do(t, http.MethodPost, "/api/goals", "dana", goalRequest{Name: "Auto", Target: "9000"})
	auto := decode[goalJSON](t, rr)
	rr = ts.do(t, http.MethodPost, "/api/goals/"+auto.ID+"/status", "dana", statusRequest{Status: "paused"})
	expectStatus(t, rr, http.StatusOK)
	if got := decode[goalJSON](t, rr); got.Status != "paused" {
		t.Fatalf("paused = %+v", got)
	}
	expectStatus(t, ts.do(t, http.MethodPost, "/api/goals/"+vacanza.ID+"/status", "dana", statusRequest{Status: "active"}), http.StatusConflict)
	expectStatus(t, ts.do(t, http.MethodPost, "/api/goals/"+auto.ID+"/status", "dana", statusRequest{}), http.StatusUnprocessableEntity)
	expectStatus(t, ts.do(t, http.MethodGet, "/api/goals/"+auto.ID, "erin", nil), http.StatusNotFound)

	rr = ts.do(t, http.MethodGet, "/api/goals", "dana", nil)
	if list := decode[[]goalJSON](t, rr); len(list) != 2 || list[0].ID != auto.ID {
		t.Fatalf("list = %+v", list)
	}
	rr = ts.do(t, http.MethodGet, "/api/goals/summary", "dana", nil)
	expectStatus(t, rr, http.StatusOK)
	want := goalSummaryJSON{Total: 2, Completed: 1, Paused: 1, TargetCents: 940000, CurrentCents: 40000, AverageProgress: "50.00"}
	if diff := cmp.Diff(want, decode[goalSummaryJSON](t, rr)); diff != "" {
		t.Errorf("summary (-want +got):\n%s", diff)
	}

	rr = ts.do(t, http.MethodPost, "/api/goals", "dana", goalRequest{Name: "Casa", Target: "10", AccountID: "missing"})
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	if body := decode[errorBody](t, rr); body.Field != "account_id" {
		t.Fatalf("unknown account body = %+v", body)
	}
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	ts := newTestServer(t, Config{RateLimitPerMinute: 1})
	expectStatus(t, ts.do(t, http.MethodPost, "/api/groups", "alice", createGroupRequest{Name: "One"}), http.StatusCreated)
	rr := ts.do(t, http.MethodPost, "/api/groups", "alice", createGroupRequest{Name: "Two"})
	expectStatus(t, rr, http.StatusTooManyRequests)
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After missing")
	}
	for range 3 {
		expectStatus(t, ts.do(t, http.MethodGet, "/api/groups", "alice", nil), http.StatusOK)
	}
}

func TestShutdown(t *testing.T) {
	ts := newTestServer(t, Config{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ts.srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
