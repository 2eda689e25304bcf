package api

import (
	"net/http"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/stock"
	"github.com/erazemk/zaloga/internal/store"
)

// ItemsHandler exposes the item registry and the ledger. It never mutates.
type ItemsHandler struct {
	Engine *stock.Engine
}

// List handles GET /api/items. Supported filters: kind, definition_id,
// owner_id, status (repeatable), serial, reserved_by, limit. Empty lots are
// hidden unless empty=true.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ItemFilter{
		Kind:       model.ItemKind(q.Get("kind")),
		Serial:     q.Get("serial"),
		ReservedBy: q.Get("reserved_by"),
		NonEmpty:   q.Get("empty") != "true",
	}
	if f.Kind != "" && !f.Kind.Valid() {
		jsonError(w, http.StatusBadRequest, "kind must be 'device' or 'material'")
		return
	}
	for _, s := range q["status"] {
		f.Statuses = append(f.Statuses, model.ItemStatus(s))
	}

	var ok bool
	var limit int64
	if f.DefinitionID, ok = queryInt(r, "definition_id"); !ok {
		jsonError(w, http.StatusBadRequest, "invalid definition_id")
		return
	}
	if f.OwnerID, ok = queryInt(r, "owner_id"); !ok {
		jsonError(w, http.StatusBadRequest, "invalid owner_id")
		return
	}
	if limit, ok = queryInt(r, "limit"); !ok {
		jsonError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	f.Limit = int(limit)

	items, err := h.Engine.ListItems(r.Context(), f)
	if err != nil {
		stockError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Engine.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		stockError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// History handles GET /api/items/{id}/history.
func (h *ItemsHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.Engine.ItemHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		stockError(w, r, err)
		return
	}
	if history == nil {
		history = []model.LedgerEntry{}
	}
	jsonResponse(w, http.StatusOK, history)
}

// Ledger handles GET /api/ledger. Supported filters: action, actor_id,
// owner_id, proposal_id, limit.
func (h *ItemsHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	f := store.LedgerFilter{
		Action:     model.Action(r.URL.Query().Get("action")),
		ProposalID: r.URL.Query().Get("proposal_id"),
	}

	var ok bool
	var limit int64
	if f.ActorID, ok = queryInt(r, "actor_id"); !ok {
		jsonError(w, http.StatusBadRequest, "invalid actor_id")
		return
	}
	if f.OwnerID, ok = queryInt(r, "owner_id"); !ok {
		jsonError(w, http.StatusBadRequest, "invalid owner_id")
		return
	}
	if limit, ok = queryInt(r, "limit"); !ok {
		jsonError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	f.Limit = int(limit)

	entries, err := h.Engine.ListLedger(r.Context(), f)
	if err != nil {
		stockError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	jsonResponse(w, http.StatusOK, entries)
}
