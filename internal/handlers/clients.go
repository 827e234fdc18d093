package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gmsf/gmsf-contracts-backend/internal/database"
	"github.com/gmsf/gmsf-contracts-backend/internal/models"
)

type ClientHandler struct {
	db *database.DB
}

func NewClientHandler(db *database.DB) *ClientHandler {
	return &ClientHandler{db: db}
}

// List handles GET /clients.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", "1")
	limit := queryInt(r, "limit", "10")
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	clients, total, err := h.db.ListClients(r.Context(), page, limit, r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.Page{Items: clients, Total: total, Page: page, Limit: limit})
}

// Get handles GET /clients/{id}.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "valid client id is required")
		return
	}

	client, err := h.db.GetClient(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// Create handles POST /clients. New clients start Inactivo until their first
// contract is registered.
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		writeError(w, http.StatusBadRequest, "nombre and apellido are required")
		return
	}
	if strings.TrimSpace(req.Document) == "" {
		writeError(w, http.StatusBadRequest, "documento is required")
		return
	}

	client, err := h.db.CreateClient(r.Context(), req)
	if errors.Is(err, database.ErrDuplicate) {
		writeError(w, http.StatusConflict, "documento is already registered")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

// Update handles PUT /clients/{id}.
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "valid client id is required")
		return
	}

	var req models.UpdateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	client, err := h.db.UpdateClient(r.Context(), id, req)
	if errors.Is(err, database.ErrDuplicate) {
		writeError(w, http.StatusConflict, "documento is already registered")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}
