package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/imaging"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/stock"
	"github.com/erazemk/zaloga/internal/store"
)

// maxImageSize bounds definition image uploads.
const maxImageSize = 5 << 20

// DefinitionsHandler manages the local catalog of device models and
// material types.
type DefinitionsHandler struct {
	DB     *db.DB
	Engine *stock.Engine
}

type definitionRequest struct {
	Kind        model.ItemKind `json:"kind"`
	Name        string         `json:"name"`
	Category    string         `json:"category"`
	Unit        string         `json:"unit"`
	Description string         `json:"description"`
}

// List handles GET /api/definitions.
func (h *DefinitionsHandler) List(w http.ResponseWriter, r *http.Request) {
	kind := model.ItemKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		jsonError(w, http.StatusBadRequest, "kind must be 'device' or 'material'")
		return
	}

	defs, err := store.ListDefinitions(r.Context(), h.DB, kind)
	if err != nil {
		slog.Error("failed to list definitions", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list definitions")
		return
	}
	if defs == nil {
		defs = []model.Definition{}
	}
	jsonResponse(w, http.StatusOK, defs)
}

// Create handles POST /api/definitions.
func (h *DefinitionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req definitionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}
	if !req.Kind.Valid() {
		jsonError(w, http.StatusBadRequest, "kind must be 'device' or 'material'")
		return
	}

	def, err := store.CreateDefinition(r.Context(), h.DB, req.Kind, req.Name, req.Category, req.Unit, req.Description)
	if err != nil {
		slog.Error("failed to create definition", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create definition")
		return
	}

	slog.Info("definition created", "user", GetClaims(r.Context()).Username, "definition", def.Name, "kind", def.Kind)
	jsonResponse(w, http.StatusCreated, def)
}

// Get handles GET /api/definitions/{id}. The response includes where the
// definition is currently stocked.
func (h *DefinitionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	def, ok := h.lookup(w, r)
	if !ok {
		return
	}

	dist, err := store.GetDefinitionDistribution(r.Context(), h.DB, def.ID)
	if err != nil {
		slog.Error("failed to get definition distribution", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get definition distribution")
		return
	}
	if dist == nil {
		dist = []model.StockLevel{}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"definition":   def,
		"distribution": dist,
	})
}

// Update handles PUT /api/definitions/{id}. Kind cannot change; existing
// stock and pending transfers keep their snapshots.
func (h *DefinitionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	def, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req definitionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}
	if req.Kind != "" && req.Kind != def.Kind {
		jsonError(w, http.StatusBadRequest, "kind cannot be changed")
		return
	}

	if err := store.UpdateDefinition(r.Context(), h.DB, def.ID, req.Name, req.Category, req.Unit, req.Description); err != nil {
		slog.Error("failed to update definition", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update definition")
		return
	}

	updated, _ := store.GetDefinition(r.Context(), h.DB, def.ID)
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/definitions/{id}. Deleted definitions can no
// longer be received; stock already in circulation is unaffected.
func (h *DefinitionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	def, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := store.DeleteDefinition(r.Context(), h.DB, def.ID); err != nil {
		slog.Error("failed to delete definition", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete definition")
		return
	}

	slog.Info("definition deleted", "user", GetClaims(r.Context()).Username, "definition", def.Name)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "definition deleted"})
}

// UploadImage handles PUT /api/definitions/{id}/image.
func (h *DefinitionsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	def, ok := h.lookup(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	pic, err := imaging.Normalize(file, imaging.DefaultLimits)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetDefinitionImage(r.Context(), h.DB, def.ID, pic.Data, pic.MIME); err != nil {
		slog.Error("failed to save image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	slog.Info("definition image uploaded", "definition", def.Name, "width", pic.Width, "height", pic.Height)
	jsonResponse(w, http.StatusOK, map[string]any{"width": pic.Width, "height": pic.Height})
}

// GetImage handles GET /api/definitions/{id}/image.
func (h *DefinitionsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid definition id")
		return
	}

	data, mime, err := store.GetDefinitionImage(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// Totals handles GET /api/definitions/{id}/totals.
func (h *DefinitionsHandler) Totals(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid definition id")
		return
	}

	totals, err := h.Engine.DefinitionTotals(r.Context(), id)
	if err != nil {
		stockError(w, r, err)
		return
	}
	if totals == nil {
		totals = []model.DefinitionTotal{}
	}
	jsonResponse(w, http.StatusOK, totals)
}

func (h *DefinitionsHandler) lookup(w http.ResponseWriter, r *http.Request) (*model.Definition, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid definition id")
		return nil, false
	}

	def, err := store.GetDefinition(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get definition", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get definition")
		return nil, false
	}
	if def == nil || def.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "definition not found")
		return nil, false
	}
	return def, true
}
