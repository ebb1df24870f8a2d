package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"conti/internal/amqp"
	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/query"
	"conti/internal/services"
	"conti/internal/split"
)

// listPage runs fetch for the composer's page. When the total shows the
// requested page is past the end, the page is clamped and fetched again.
func listPage[T any](c *query.Composer, fetch func(params map[string]string) ([]T, int, error)) ([]T, error) {
	var items []T
	for range 2 {
		requested := c.Page()
		var total int
		var err error
		items, total, err = fetch(c.Params())
		if err != nil {
			return nil, err
		}
		c.SetTotalCount(total)
		if c.Page() == requested {
			break
		}
	}
	return items, nil
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	c, err := s.listComposer(r.URL.Query(), services.ExpenseFilters())
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer c.Close()

	items, err := listPage(c, func(params map[string]string) ([]core.GroupExpense, int, error) {
		q, err := services.ExpenseQueryFromParams(groupID, params)
		if err != nil {
			return nil, 0, err
		}
		return s.groups.ListExpenses(r.Context(), callerID(r), q)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().
		ReplaceURL(r.URL.Path, c.Encode()).
		JSON(listJSON[expenseJSON]{Items: mapSlice(items, s.present.expense), Page: pageOf(c)}).
		Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := expenseInput(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	groupID := chi.URLParam(r, "groupID")
	e, err := s.groups.CreateExpense(r.Context(), callerID(r), groupID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogExpenseCreated(r.Context(), e.GroupID, e.ID, e.Total.Cents, e.Method, len(e.Shares))

	NewResponse().
		Status(http.StatusCreated).
		TriggerExpenseChanged("created", e.GroupID, e.ID).
		TriggerBalancesChanged(e.GroupID).
		JSON(s.present.expense(e)).
		Write(w)
}

func expenseInput(req createExpenseRequest) (services.CreateExpenseInput, error) {
	total, err := parseAmount("total", req.Total)
	if err != nil {
		return services.CreateExpenseInput{}, err
	}
	date, err := parseOptionalDate("date", req.Date)
	if err != nil {
		return services.CreateExpenseInput{}, err
	}
	method, err := parseMethod(req.Method)
	if err != nil {
		return services.CreateExpenseInput{}, err
	}
	participants, err := parseParticipants(req.Participants)
	if err != nil {
		return services.CreateExpenseInput{}, err
	}
	return services.CreateExpenseInput{
		PaidBy:       sanitizeInput(req.PaidBy),
		Title:        sanitizeInput(req.Title),
		Description:  sanitizeInput(req.Description),
		Total:        total,
		Currency:     sanitizeInput(req.Currency),
		Date:         date,
		Method:       method,
		Participants: participants,
	}, nil
}

func (s *Server) handleExpenseSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.groups.Summary(r.Context(), callerID(r), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(s.present.summary(sum)).Write(w)
}

func (s *Server) handleExpenseDetail(w http.ResponseWriter, r *http.Request) {
	st, err := s.groups.ExpenseDetail(r.Context(), callerID(r), chi.URLParam(r, "groupID"), chi.URLParam(r, "expenseID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(s.present.settlement(st)).Write(w)
}

func (s *Server) handleSettleExpense(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.groups.Settle, amqp.ExpenseSettled)
}

func (s *Server) handleCancelExpense(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.groups.Cancel, amqp.ExpenseCancelled)
}

type transitionFunc func(ctx context.Context, callerID, groupID, expenseID string) (core.GroupExpense, error)

func (s *Server) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc, kind amqp.EventKind) {
	e, err := fn(r.Context(), callerID(r), chi.URLParam(r, "groupID"), chi.URLParam(r, "expenseID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().
		TriggerExpenseChanged(eventName(kind), e.GroupID, e.ID).
		TriggerBalancesChanged(e.GroupID).
		JSON(s.present.expense(e)).
		Write(w)
}

// eventName strips the "expense." prefix of an event kind.
func eventName(kind amqp.EventKind) string {
	return strings.TrimPrefix(string(kind), "expense.")
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	groupID, expenseID := chi.URLParam(r, "groupID"), chi.URLParam(r, "expenseID")
	userID := sanitizeInput(req.UserID)
	if userID == "" {
		userID = callerID(r)
	}
	sh, err := s.groups.RecordPayment(r.Context(), callerID(r), groupID, expenseID, services.PaymentInput{UserID: userID, Amount: amount})
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogPaymentRecorded(r.Context(), groupID, expenseID, userID, core.MoneyFromDecimal(amount).Cents, sh.IsSettled())

	st, err := s.groups.ExpenseDetail(r.Context(), callerID(r), groupID, expenseID)
	currency := ""
	if err == nil {
		currency = st.Expense.Currency
	}
	NewResponse().
		TriggerExpenseChanged("paid", groupID, expenseID).
		TriggerBalancesChanged(groupID).
		JSON(s.present.share(sh, currency)).
		Write(w)
}

func (s *Server) handleSplitPreview(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	total, err := parseAmount("total", req.Total)
	if err != nil {
		writeError(w, r, err)
		return
	}
	method, err := parseMethod(req.Method)
	if err != nil {
		writeError(w, r, err)
		return
	}
	participants, err := parseParticipants(req.Participants)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := split.Compute(split.Input{
		Total:        total,
		Method:       method,
		Participants: participants,
		RemainderTo:  sanitizeInput(req.RemainderTo),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(s.present.split(res, "")).Write(w)
}
