package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/zaloga/internal/auth"
	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/stock"
)

// NewRouter creates the API router with all endpoints registered. If
// gatherer is non-nil its metrics are served on /metrics.
func NewRouter(database *db.DB, engine *stock.Engine, jwtSecret string, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	signer := auth.NewSigner(jwtSecret, auth.DefaultTTL)

	authHandler := &AuthHandler{DB: database, Tokens: signer}
	usersHandler := &UsersHandler{DB: database}
	ownersHandler := &OwnersHandler{DB: database, Engine: engine}
	definitionsHandler := &DefinitionsHandler{DB: database, Engine: engine}
	itemsHandler := &ItemsHandler{Engine: engine}
	stockHandler := &StockHandler{DB: database, Engine: engine}
	transfersHandler := &TransfersHandler{Engine: engine}

	authMW := AuthMiddleware(signer, database)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	manager := func(h http.HandlerFunc) http.Handler { return authMW(requireManager(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Owners: locations and technicians.
	mux.Handle("GET /api/owners", authed(ownersHandler.List))
	mux.Handle("POST /api/owners", manager(ownersHandler.Create))
	mux.Handle("GET /api/owners/{id}", authed(ownersHandler.Get))
	mux.Handle("PUT /api/owners/{id}", manager(ownersHandler.Update))
	mux.Handle("DELETE /api/owners/{id}", manager(ownersHandler.Delete))
	mux.Handle("GET /api/owners/{id}/stock", authed(ownersHandler.Stock))

	// Catalog.
	mux.Handle("GET /api/definitions", authed(definitionsHandler.List))
	mux.Handle("POST /api/definitions", manager(definitionsHandler.Create))
	mux.Handle("GET /api/definitions/{id}", authed(definitionsHandler.Get))
	mux.Handle("PUT /api/definitions/{id}", manager(definitionsHandler.Update))
	mux.Handle("DELETE /api/definitions/{id}", manager(definitionsHandler.Delete))
	mux.Handle("PUT /api/definitions/{id}/image", manager(definitionsHandler.UploadImage))
	mux.Handle("GET /api/definitions/{id}/image", authed(definitionsHandler.GetImage))
	mux.Handle("GET /api/definitions/{id}/totals", authed(definitionsHandler.Totals))

	// Registry and ledger (read-only).
	mux.Handle("GET /api/items", authed(itemsHandler.List))
	mux.Handle("GET /api/items/{id}", authed(itemsHandler.Get))
	mux.Handle("GET /api/items/{id}/history", authed(itemsHandler.History))
	mux.Handle("GET /api/ledger", authed(itemsHandler.Ledger))

	// Lifecycle transitions. Goods enter and leave the system through
	// managers; day-to-day movements are open to every user.
	mux.Handle("GET /api/stock", authed(stockHandler.List))
	mux.Handle("POST /api/stock/receive", manager(stockHandler.Receive))
	mux.Handle("POST /api/stock/issue", authed(stockHandler.Issue))
	mux.Handle("POST /api/stock/return", authed(stockHandler.Return))
	mux.Handle("POST /api/stock/collect", authed(stockHandler.Collect))
	mux.Handle("POST /api/stock/return-to-operator", manager(stockHandler.ReturnToOperator))

	// Transfers.
	mux.Handle("POST /api/transfers", authed(transfersHandler.Propose))
	mux.Handle("GET /api/transfers", authed(transfersHandler.List))
	mux.Handle("GET /api/transfers/{id}", authed(transfersHandler.Get))
	mux.Handle("POST /api/transfers/{id}/confirm", authed(transfersHandler.Confirm))
	mux.Handle("POST /api/transfers/{id}/reject", authed(transfersHandler.Reject))
	mux.Handle("POST /api/transfers/{id}/cancel", authed(transfersHandler.Cancel))

	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return LoggingMiddleware(mux)
}
