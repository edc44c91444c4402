package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/circulation/internal/security"
	"github.com/yourorg/circulation/internal/security/middleware"
	"github.com/yourorg/circulation/internal/service"
)

// MemberRequest carries the mutable fields of a member.
type MemberRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

// MemberHandler exposes membership CRUD over HTTP.
type MemberHandler struct {
	members *service.MemberService
	authz   *security.AuthorizationService
	logger  *slog.Logger
}

// NewMemberHandler creates a new member handler.
func NewMemberHandler(members *service.MemberService, authz *security.AuthorizationService, logger *slog.Logger) *MemberHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemberHandler{members: members, authz: authz, logger: logger}
}

// List handles GET /api/members. An email query parameter narrows to the
// single member registered under it.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	if email := r.URL.Query().Get("email"); email != "" {
		member, err := h.members.GetMemberByEmail(r.Context(), email)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"members": []any{member}})
		return
	}

	members, err := h.members.ListMembers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

// Get handles GET /api/members/{id}.
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	member, err := h.members.GetMember(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// Create handles POST /api/members.
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r) {
		return
	}

	var req MemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	member, err := h.members.CreateMember(r.Context(), service.MemberInput{
		Name:    req.Name,
		Address: req.Address,
		Email:   req.Email,
		Phone:   req.Phone,
	})
	if err != nil {
		h.logger.Warn("member creation rejected", slog.String("error", err.Error()))
		writeMemberError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// Update handles PUT /api/members/{id}.
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r) {
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	var req MemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	member, err := h.members.UpdateMember(r.Context(), id, service.MemberInput{
		Name:    req.Name,
		Address: req.Address,
		Email:   req.Email,
		Phone:   req.Phone,
	})
	if err != nil {
		writeMemberError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// Delete handles DELETE /api/members/{id}.
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, r) {
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	if err := h.members.DeleteMember(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeMemberError keeps validation failures at 400 while domain errors keep
// their usual mapping.
func writeMemberError(w http.ResponseWriter, err error) {
	if domainStatusKnown(err) {
		writeDomainError(w, err)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func (h *MemberHandler) allowed(w http.ResponseWriter, r *http.Request) bool {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	if err := h.authz.ValidatePermission(security.Role(claims.Role), security.PermManageMembers); err != nil {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}
