package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/stock"
	"github.com/erazemk/zaloga/internal/store"
)

// OwnersHandler handles locations and technicians.
type OwnersHandler struct {
	DB     *db.DB
	Engine *stock.Engine
}

type createOwnerRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type updateOwnerRequest struct {
	Name string `json:"name"`
}

// List handles GET /api/owners.
func (h *OwnersHandler) List(w http.ResponseWriter, r *http.Request) {
	owners, err := store.ListOwners(r.Context(), h.DB, r.URL.Query().Get("type"))
	if err != nil {
		slog.Error("failed to list owners", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list owners")
		return
	}
	if owners == nil {
		owners = []model.Owner{}
	}
	jsonResponse(w, http.StatusOK, owners)
}

// Create handles POST /api/owners.
func (h *OwnersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOwnerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Type == "" {
		jsonError(w, http.StatusBadRequest, "name and type required")
		return
	}
	if !model.ValidOwnerType(req.Type) {
		jsonError(w, http.StatusBadRequest, "type must be 'location' or 'technician'")
		return
	}

	owner, err := store.CreateOwner(r.Context(), h.DB, req.Name, req.Type)
	if err != nil {
		slog.Error("failed to create owner", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create owner")
		return
	}

	slog.Info("owner created", "user", GetClaims(r.Context()).Username, "owner", req.Name, "type", req.Type)
	jsonResponse(w, http.StatusCreated, owner)
}

// Get handles GET /api/owners/{id}.
func (h *OwnersHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.lookup(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, owner)
}

// Update handles PUT /api/owners/{id}.
func (h *OwnersHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req updateOwnerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	if err := store.UpdateOwner(r.Context(), h.DB, owner.ID, req.Name); err != nil {
		slog.Error("failed to update owner", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update owner")
		return
	}

	slog.Info("owner updated", "user", GetClaims(r.Context()).Username, "owner", req.Name)
	owner.Name = req.Name
	jsonResponse(w, http.StatusOK, owner)
}

// Delete handles DELETE /api/owners/{id}. Owners that still hold stock
// cannot be deleted.
func (h *OwnersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := store.DeleteOwner(r.Context(), h.DB, owner.ID); err != nil {
		slog.Warn("failed to delete owner", "owner", owner.Name, "error", err)
		jsonError(w, http.StatusConflict, "cannot delete owner: still holds stock")
		return
	}

	slog.Info("owner deleted", "user", GetClaims(r.Context()).Username, "owner", owner.Name)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "owner deleted"})
}

// Stock handles GET /api/owners/{id}/stock.
func (h *OwnersHandler) Stock(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var levels []model.StockLevel
	var err error
	if owner.Type == model.OwnerTypeLocation {
		levels, err = h.Engine.StockByLocation(r.Context(), owner.ID)
	} else {
		levels, err = h.Engine.StockByHolder(r.Context(), owner.ID)
	}
	if err != nil {
		stockError(w, r, err)
		return
	}
	if levels == nil {
		levels = []model.StockLevel{}
	}
	jsonResponse(w, http.StatusOK, levels)
}

// lookup resolves the {id} path parameter to an active owner, writing the
// error response itself when it cannot.
func (h *OwnersHandler) lookup(w http.ResponseWriter, r *http.Request) (*model.Owner, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid owner id")
		return nil, false
	}

	owner, err := store.GetOwner(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get owner", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get owner")
		return nil, false
	}
	if owner == nil || owner.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("owner %d not found", id))
		return nil, false
	}
	return owner, true
}
