package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/zaloga/internal/stock"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorResponse{Error: message})
}

// kindStatus maps domain failure kinds to HTTP status codes.
var kindStatus = map[stock.Kind]int{
	stock.KindNotFound:            http.StatusNotFound,
	stock.KindInvalidInput:        http.StatusBadRequest,
	stock.KindInvalidState:        http.StatusConflict,
	stock.KindItemReserved:        http.StatusConflict,
	stock.KindDuplicateSerial:     http.StatusConflict,
	stock.KindInsufficientStock:   http.StatusUnprocessableEntity,
	stock.KindExceedsHeldQuantity: http.StatusUnprocessableEntity,
}

// stockError writes err as returned by the stock engine. Domain rejections
// carry their kind in the code field; anything else is an internal error.
func stockError(w http.ResponseWriter, r *http.Request, err error) {
	kind := stock.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		slog.Error("stock operation failed", "path", r.URL.Path, "request_id", RequestID(r.Context()), "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Warn("stock operation rejected", "path", r.URL.Path, "request_id", RequestID(r.Context()),
		"code", kind, "error", err)
	jsonResponse(w, status, errorResponse{Error: err.Error(), Code: string(kind)})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses a numeric path parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

// queryInt parses an optional numeric query parameter. Missing values are 0.
func queryInt(r *http.Request, name string) (int64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil && n >= 0
}
