package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/stock"
	"github.com/erazemk/zaloga/internal/store"
)

// StockHandler drives the item lifecycle: receipt, issue, return,
// collection from clients and return to the operator.
type StockHandler struct {
	DB     *db.DB
	Engine *stock.Engine
}

type receiveRequest struct {
	LocationID int64               `json:"location_id"`
	Lines      []stock.ReceiveLine `json:"lines"`
}

type issueRequest struct {
	LocationID int64        `json:"location_id"`
	HolderID   int64        `json:"holder_id"`
	Lines      []stock.Line `json:"lines"`
}

type collectRequest struct {
	HolderID int64  `json:"holder_id"`
	ItemID   string `json:"item_id"`
}

type returnToOperatorRequest struct {
	LocationID int64        `json:"location_id"`
	Lines      []stock.Line `json:"lines"`
}

// List handles GET /api/stock: what every owner holds.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	levels, err := store.ListStock(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list stock", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list stock")
		return
	}
	if levels == nil {
		levels = []model.StockLevel{}
	}
	jsonResponse(w, http.StatusOK, levels)
}

// Receive handles POST /api/stock/receive.
func (h *StockHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items, err := h.Engine.Receive(r.Context(), actor(r), req.LocationID, req.Lines)
	if err != nil {
		stockError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, items)
}

// Issue handles POST /api/stock/issue.
func (h *StockHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items, err := h.Engine.Issue(r.Context(), actor(r), req.LocationID, req.HolderID, req.Lines)
	if err != nil {
		stockError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// Return handles POST /api/stock/return: a technician hands stock back to a
// warehouse location.
func (h *StockHandler) Return(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items, err := h.Engine.ReturnToWarehouse(r.Context(), actor(r), req.HolderID, req.LocationID, req.Lines)
	if err != nil {
		stockError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// Collect handles POST /api/stock/collect.
func (h *StockHandler) Collect(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Engine.MarkCollectedFromClient(r.Context(), actor(r), req.HolderID, req.ItemID)
	if err != nil {
		stockError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// ReturnToOperator handles POST /api/stock/return-to-operator.
func (h *StockHandler) ReturnToOperator(w http.ResponseWriter, r *http.Request) {
	var req returnToOperatorRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items, err := h.Engine.ReturnToOperator(r.Context(), actor(r), req.LocationID, req.Lines)
	if err != nil {
		stockError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}
