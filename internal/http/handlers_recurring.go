package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"conti/internal/core"
	"conti/internal/services"
)

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	ts, err := s.recurring.List(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(mapSlice(ts, s.present.recurring)).Write(w)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	start, err := parseOptionalDate("start_date", req.StartDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := parseOptionalDate("end_date", req.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := services.RecurringInput{
		Name:          sanitizeInput(req.Name),
		Amount:        amount,
		Type:          core.TransactionType(sanitizeInput(req.Type)),
		Description:   sanitizeInput(req.Description),
		Category:      sanitizeInput(req.Category),
		Currency:      sanitizeInput(req.Currency),
		Frequency:     core.Frequency(sanitizeInput(req.Frequency)),
		Interval:      req.Interval,
		StartDate:     start,
		MaxExecutions: req.MaxExecutions,
	}
	if !end.IsZero() {
		in.EndDate = &end
	}
	tmpl, err := s.recurring.Create(r.Context(), callerID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Trigger("recurring:created", map[string]string{"recurring_id": tmpl.ID}).
		JSON(s.present.recurring(tmpl)).
		Write(w)
}

func (s *Server) handleGetRecurring(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.recurring.Get(r.Context(), callerID(r), chi.URLParam(r, "recurringID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(s.present.recurring(tmpl)).Write(w)
}

func (s *Server) handleSetRecurringActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Active == nil {
		writeError(w, r, invalidField("active", services.ErrRequired))
		return
	}
	tmpl, err := s.recurring.SetActive(r.Context(), callerID(r), chi.URLParam(r, "recurringID"), *req.Active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(s.present.recurring(tmpl)).Write(w)
}
