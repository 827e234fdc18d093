package handlers

import (
	"net/http"

	"github.com/gmsf/gmsf-contracts-backend/internal/database"
	"github.com/gmsf/gmsf-contracts-backend/internal/lifecycle"
	"github.com/gmsf/gmsf-contracts-backend/internal/models"
)

// defaultCancelReason is used when DELETE /contracts/{id} carries no body.
const defaultCancelReason = "Cancelación administrativa"

type ContractHandler struct {
	db      *database.DB
	service *lifecycle.Service
}

func NewContractHandler(db *database.DB, service *lifecycle.Service) *ContractHandler {
	return &ContractHandler{db: db, service: service}
}

// List handles GET /contracts.
func (h *ContractHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := models.ContractListFilter{
		Page:     queryInt(r, "page", "1"),
		Limit:    queryInt(r, "limit", "10"),
		Search:   q.Get("search"),
		Status:   models.ContractStatus(q.Get("estado")),
		ClientID: queryInt(r, "id_persona", "0"),
	}
	if filter.Status != "" && !validStatusFilter(filter.Status) {
		writeError(w, http.StatusBadRequest,
			"estado must be one of Activo, Congelado, Cancelado, Vencido, Por vencer")
		return
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 10
	}
	if v := q.Get("fecha_inicio"); v != "" {
		if err := filter.DateFrom.UnmarshalJSON([]byte(v)); err != nil {
			writeError(w, http.StatusBadRequest, "fecha_inicio must be YYYY-MM-DD")
			return
		}
	}
	if v := q.Get("fecha_fin"); v != "" {
		if err := filter.DateTo.UnmarshalJSON([]byte(v)); err != nil {
			writeError(w, http.StatusBadRequest, "fecha_fin must be YYYY-MM-DD")
			return
		}
	}

	today := models.Today()
	contracts, total, err := h.db.ListContracts(r.Context(), filter, today)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.Page{
		Items: lifecycle.Views(contracts, today),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

func validStatusFilter(s models.ContractStatus) bool {
	switch s {
	case models.ContractActive, models.ContractFrozen, models.ContractCancelled,
		models.ContractExpired, models.ContractExpiring:
		return true
	}
	return false
}

// Get handles GET /contracts/{id}.
func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "valid contract id is required")
		return
	}

	contract, err := h.db.GetContract(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lifecycle.View(*contract, models.Today()))
}

// Create handles POST /contracts.
func (h *ContractHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.service.CreateContract(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Update handles PUT /contracts/{id} (partial administrative edit).
func (h *ContractHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "valid contract id is required")
		return
	}

	var req models.UpdateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.service.UpdateContract(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Cancel handles DELETE /contracts/{id}. Cancellation is a status
// transition, never a row deletion; the body (motivo, usuario) is optional.
func (h *ContractHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "valid contract id is required")
		return
	}

	req := models.CancelContractRequest{}
	// DELETE bodies are optional; decode errors fall back to the default.
	json.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = defaultCancelReason
	}

	view, err := h.service.CancelContract(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Renew handles POST /contracts/renew.
func (h *ContractHandler) Renew(w http.ResponseWriter, r *http.Request) {
	var req models.RenewContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.service.RenewContract(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Freeze handles POST /contracts/freeze.
func (h *ContractHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	var req models.FreezeContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.service.FreezeContract(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// History handles GET /contracts/{id}/history.
func (h *ContractHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "valid contract id is required")
		return
	}

	if _, err := h.db.GetContract(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	history, err := h.db.ListContractHistory(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
