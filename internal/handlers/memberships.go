package handlers

import (
	"net/http"

	"github.com/gmsf/gmsf-contracts-backend/internal/database"
	"github.com/gmsf/gmsf-contracts-backend/internal/lifecycle"
	"github.com/gmsf/gmsf-contracts-backend/internal/models"
)

type MembershipHandler struct {
	db      *database.DB
	service *lifecycle.Service
}

func NewMembershipHandler(db *database.DB, service *lifecycle.Service) *MembershipHandler {
	return &MembershipHandler{db: db, service: service}
}

// List handles GET /memberships. ?activo=true restricts to active plans.
func (h *MembershipHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("activo") == "true"

	memberships, err := h.db.ListMemberships(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memberships)
}

// Get handles GET /memberships/{id}.
func (h *MembershipHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "valid membership id is required")
		return
	}

	membership, err := h.db.GetMembership(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membership)
}

// Create handles POST /memberships.
func (h *MembershipHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	membership, err := h.service.CreateMembership(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, membership)
}

// Update handles PUT /memberships/{id}.
func (h *MembershipHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "valid membership id is required")
		return
	}

	var req models.UpdateMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	membership, err := h.service.UpdateMembership(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membership)
}

// Deactivate handles POST/PATCH /memberships/{id}/desactivar. Rejected with
// a conflict while the plan has contracts deriving Activo or Por vencer.
func (h *MembershipHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

// Reactivate handles POST/PATCH /memberships/{id}/reactivar.
func (h *MembershipHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

func (h *MembershipHandler) toggle(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "valid membership id is required")
		return
	}

	membership, err := h.service.ToggleMembershipActive(r.Context(), id, active)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membership)
}
