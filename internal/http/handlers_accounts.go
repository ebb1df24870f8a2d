package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"conti/internal/core"
	"conti/internal/services"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	includeArchived := false
	if v := r.URL.Query().Get("archived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, invalidField("archived", err))
			return
		}
		includeArchived = b
	}
	accounts, err := s.accounts.List(r.Context(), callerID(r), includeArchived)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(mapSlice(accounts, s.present.account)).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	opening := decimal.Zero
	if strings.TrimSpace(req.OpeningBalance) != "" {
		d, err := parseAmount("opening_balance", req.OpeningBalance)
		if err != nil {
			writeError(w, r, err)
			return
		}
		opening = d
	}
	a, err := s.accounts.Create(r.Context(), callerID(r), services.AccountInput{
		Name:           sanitizeInput(req.Name),
		Description:    sanitizeInput(req.Description),
		Type:           core.AccountType(sanitizeInput(req.Type)),
		Institution:    sanitizeInput(req.Institution),
		Currency:       sanitizeInput(req.Currency),
		OpeningBalance: opening,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Trigger("account:created", map[string]string{"account_id": a.ID}).
		JSON(s.present.account(a)).
		Write(w)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.accounts.Get(r.Context(), callerID(r), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(s.present.account(a)).Write(w)
}

func (s *Server) handleAccountSummary(w http.ResponseWriter, r *http.Request) {
	totals, err := s.accounts.Summary(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(mapSlice(totals, s.present.accountTypeTotal)).Write(w)
}

// handleSetAccountActive archives or restores an account.
func (s *Server) handleSetAccountActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Active == nil {
		writeError(w, r, invalidField("active", services.ErrRequired))
		return
	}
	id := chi.URLParam(r, "accountID")
	var a core.AccountBalance
	var err error
	if *req.Active {
		a, err = s.accounts.Restore(r.Context(), callerID(r), id)
	} else {
		a, err = s.accounts.Archive(r.Context(), callerID(r), id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(s.present.account(a)).Write(w)
}

func (s *Server) handleReconcileAccount(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	actual, err := parseAmount("balance", req.Balance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, tx, err := s.accounts.Reconcile(r.Context(), callerID(r), chi.URLParam(r, "accountID"), actual)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := reconcileJSON{Account: s.present.account(a)}
	resp := NewResponse()
	if tx != nil {
		adj := s.present.transaction(*tx)
		out.Adjustment = &adj
		resp.Trigger("transaction:created", map[string]string{"transaction_id": tx.ID})
	}
	resp.JSON(out).Write(w)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseOptionalDate("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, in, err := s.accounts.Transfer(r.Context(), callerID(r), services.TransferInput{
		From:        sanitizeInput(req.From),
		To:          sanitizeInput(req.To),
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Date:        date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Trigger("transfer:created", map[string]string{"out_id": out.ID, "in_id": in.ID}).
		JSON(accountTransferJSON{Out: s.present.transaction(out), In: s.present.transaction(in)}).
		Write(w)
}
