package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"conti/internal/core"
	"conti/internal/services"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	c, err := s.listComposer(r.URL.Query(), services.TransactionFilters())
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer c.Close()

	items, err := listPage(c, func(params map[string]string) ([]core.Transaction, int, error) {
		return s.txs.List(r.Context(), callerID(r), params)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().
		ReplaceURL(r.URL.Path, c.Encode()).
		JSON(listJSON[transactionJSON]{Items: mapSlice(items, s.present.transaction), Page: pageOf(c)}).
		Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
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
	tx, err := s.txs.Create(r.Context(), callerID(r), services.TransactionInput{
		Amount:      amount,
		Type:        core.TransactionType(sanitizeInput(req.Type)),
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		Date:        date,
		Currency:    sanitizeInput(req.Currency),
		Status:      core.TransactionStatus(sanitizeInput(req.Status)),
		Verified:    req.Verified,
		AccountID:   sanitizeInput(req.AccountID),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Trigger("transaction:created", map[string]string{"transaction_id": tx.ID}).
		JSON(s.present.transaction(tx)).
		Write(w)
}

func (s *Server) handleVerifyTransaction(w http.ResponseWriter, r *http.Request) {
	req := verifyRequest{Verified: true}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.txs.SetVerified(r.Context(), callerID(r), chi.URLParam(r, "txID"), req.Verified)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(s.present.transaction(tx)).Write(w)
}
