package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"conti/internal/core"
	"conti/internal/services"
)

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ownerName := sanitizeInput(req.OwnerName)
	if ownerName == "" {
		ownerName = sanitizeInput(r.Header.Get(HeaderUserName))
	}
	g, err := s.groups.CreateGroup(r.Context(), services.CreateGroupInput{
		Name:        sanitizeInput(req.Name),
		Description: sanitizeInput(req.Description),
		Type:        core.GroupType(sanitizeInput(req.Type)),
		OwnerID:     callerID(r),
		OwnerName:   ownerName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).Trigger("group:created", map[string]string{"group_id": g.ID}).JSON(s.present.group(g)).Write(w)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groups.ListGroups(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(mapSlice(groups, s.present.group)).Write(w)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.groups.GetGroup(r.Context(), callerID(r), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(s.present.group(g)).Write(w)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.groups.Members(r.Context(), callerID(r), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(mapSlice(members, s.present.member)).Write(w)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	groupID := chi.URLParam(r, "groupID")
	m, err := s.groups.AddMember(r.Context(), callerID(r), groupID, services.MemberInput{
		UserID: sanitizeInput(req.UserID),
		Name:   sanitizeInput(req.Name),
		Role:   core.Role(sanitizeInput(req.Role)),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().TriggerBalancesChanged(groupID).JSON(s.present.member(m)).Write(w)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if err := s.groups.RemoveMember(r.Context(), callerID(r), groupID, chi.URLParam(r, "userID")); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).TriggerBalancesChanged(groupID).Write(w)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	balances, err := s.groups.Balances(r.Context(), callerID(r), groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(s.present.balances(balances, "")).Write(w)
}

func (s *Server) handleSettleUp(w http.ResponseWriter, r *http.Request) {
	plan, err := s.groups.SettleUp(r.Context(), callerID(r), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(s.present.transfers(plan, "")).Write(w)
}

func (s *Server) handleOverallBalance(w http.ResponseWriter, r *http.Request) {
	overall, err := s.groups.OverallBalance(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(s.present.overall(overall)).Write(w)
}
