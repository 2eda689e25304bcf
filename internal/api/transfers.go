package api

import (
	"context"
	"net/http"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/stock"
	"github.com/erazemk/zaloga/internal/store"
)

// TransfersHandler handles transfer proposals between owners of the same
// type.
type TransfersHandler struct {
	Engine *stock.Engine
}

type proposeRequest struct {
	FromOwnerID int64        `json:"from_owner_id"`
	ToOwnerID   int64        `json:"to_owner_id"`
	Lines       []stock.Line `json:"lines"`
	Notes       string       `json:"notes"`
}

type settleRequest struct {
	Notes string `json:"notes"`
}

// Propose handles POST /api/transfers.
func (h *TransfersHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prop, err := h.Engine.ProposeTransfer(r.Context(), actor(r), req.FromOwnerID, req.ToOwnerID, req.Lines, req.Notes)
	if err != nil {
		stockError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, prop)
}

// List handles GET /api/transfers. Supported filters: status, owner_id,
// limit.
func (h *TransfersHandler) List(w http.ResponseWriter, r *http.Request) {
	f := store.ProposalFilter{Status: model.ProposalStatus(r.URL.Query().Get("status"))}

	var ok bool
	var limit int64
	if f.OwnerID, ok = queryInt(r, "owner_id"); !ok {
		jsonError(w, http.StatusBadRequest, "invalid owner_id")
		return
	}
	if limit, ok = queryInt(r, "limit"); !ok {
		jsonError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	f.Limit = int(limit)

	proposals, err := h.Engine.ListProposals(r.Context(), f)
	if err != nil {
		stockError(w, r, err)
		return
	}
	if proposals == nil {
		proposals = []model.Proposal{}
	}
	jsonResponse(w, http.StatusOK, proposals)
}

// Get handles GET /api/transfers/{id}.
func (h *TransfersHandler) Get(w http.ResponseWriter, r *http.Request) {
	prop, err := h.Engine.GetProposal(r.Context(), r.PathValue("id"))
	if err != nil {
		stockError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, prop)
}

// Confirm handles POST /api/transfers/{id}/confirm.
func (h *TransfersHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	prop, err := h.Engine.ConfirmTransfer(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		stockError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, prop)
}

// Reject handles POST /api/transfers/{id}/reject.
func (h *TransfersHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.Engine.RejectTransfer)
}

// Cancel handles POST /api/transfers/{id}/cancel.
func (h *TransfersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.Engine.CancelTransfer)
}

type settleFunc func(ctx context.Context, actor stock.Actor, id, notes string) (*model.Proposal, error)

func (h *TransfersHandler) settle(w http.ResponseWriter, r *http.Request, fn settleFunc) {
	// The body is optional.
	var req settleRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	prop, err := fn(r.Context(), actor(r), r.PathValue("id"), req.Notes)
	if err != nil {
		stockError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, prop)
}
