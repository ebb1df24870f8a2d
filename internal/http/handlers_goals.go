package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"conti/internal/core"
	"conti/internal/services"
)

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.goals.List(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(mapSlice(goals, s.present.goal)).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	target, err := parseAmount("target", req.Target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	deadline, err := parseOptionalDate("target_date", req.TargetDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := services.GoalInput{
		Name:        sanitizeInput(req.Name),
		Description: sanitizeInput(req.Description),
		Type:        core.GoalType(sanitizeInput(req.Type)),
		Target:      target,
		Currency:    sanitizeInput(req.Currency),
		AccountID:   sanitizeInput(req.AccountID),
	}
	if !deadline.IsZero() {
		in.TargetDate = &deadline
	}
	g, err := s.goals.Create(r.Context(), callerID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Trigger("goal:created", map[string]string{"goal_id": g.ID}).
		JSON(s.present.goal(g)).
		Write(w)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.goals.Get(r.Context(), callerID(r), chi.URLParam(r, "goalID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(s.present.goal(g)).Write(w)
}

func (s *Server) handleGoalSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.goals.Summary(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(goalSummaryJSON{
		Total:           sum.Total,
		Active:          sum.Active,
		Completed:       sum.Completed,
		Paused:          sum.Paused,
		TargetCents:     sum.Target.Cents,
		CurrentCents:    sum.Current.Cents,
		AverageProgress: sum.AverageProgress.StringFixed(2),
	}).Write(w)
}

func (s *Server) handleContributeGoal(w http.ResponseWriter, r *http.Request) {
	var req contributionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.goals.Contribute(r.Context(), callerID(r), chi.URLParam(r, "goalID"), amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := NewResponse()
	if g.Status == core.GoalCompleted {
		resp.Trigger("goal:completed", map[string]string{"goal_id": g.ID})
	}
	resp.JSON(s.present.goal(g)).Write(w)
}

func (s *Server) handleSetGoalStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status := sanitizeInput(req.Status)
	if status == "" {
		writeError(w, r, invalidField("status", services.ErrRequired))
		return
	}
	g, err := s.goals.Transition(r.Context(), callerID(r), chi.URLParam(r, "goalID"), core.GoalStatus(status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(s.present.goal(g)).Write(w)
}
