// internal/handlers/routes.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ammerola/medboard/internal/handlers/middleware"
	"github.com/ammerola/medboard/internal/pkg/config"
	"github.com/ammerola/medboard/internal/pkg/metrics"
)

const apiV1 = "/api/v1"

// Routes groups the handlers served by the API. Documents, Health and
// Metrics may be nil to leave those endpoints out.
type Routes struct {
	Pages       *PageHandler
	Inventory   *InventoryHandler
	Queries     *QueryHandler
	Preferences *PreferencesHandler
	Documents   *DocumentHandler
	Health      *HealthHandler
	Metrics     http.Handler
}

// Register adds every route to mux using method patterns
func (rt *Routes) Register(mux *http.ServeMux) {
	// Pages and HTMX fragments
	mux.HandleFunc("GET /{$}", rt.Pages.Dashboard)
	mux.HandleFunc("GET /rag", rt.Pages.RAG)
	mux.HandleFunc("GET /fragments/inventory", rt.Inventory.InventoryFragment)
	mux.HandleFunc("POST /fragments/query", rt.Queries.QueryFragment)

	// Inventory
	mux.HandleFunc("GET "+apiV1+"/inventory", rt.Inventory.ListInventory)
	mux.HandleFunc("GET "+apiV1+"/inventory/export", rt.Inventory.ExportExcel)
	mux.HandleFunc("GET "+apiV1+"/inventory/expiring", rt.Inventory.ListExpiring)
	mux.HandleFunc("POST "+apiV1+"/inventory/{id}/quantity", rt.Inventory.UpdateQuantity)
	mux.HandleFunc("GET "+apiV1+"/activity", rt.Inventory.ListActivity)
	mux.HandleFunc("POST "+apiV1+"/estimate", rt.Inventory.Estimate)

	// Queries and case history
	mux.HandleFunc("POST "+apiV1+"/queries", rt.Queries.SubmitQuery)
	mux.HandleFunc("GET "+apiV1+"/cases", rt.Queries.ListCases)
	mux.HandleFunc("DELETE "+apiV1+"/cases/{id}", rt.Queries.DeleteCase)

	mux.HandleFunc("GET "+apiV1+"/preferences/dark-mode", rt.Preferences.GetDarkMode)
	mux.HandleFunc("PUT "+apiV1+"/preferences/dark-mode", rt.Preferences.SetDarkMode)

	if rt.Documents != nil {
		mux.HandleFunc("POST "+apiV1+"/documents", rt.Documents.UploadDocument)
		mux.HandleFunc("GET "+apiV1+"/documents/jobs/{id}", rt.Documents.GetJob)
		mux.HandleFunc("POST "+apiV1+"/documents/reset", rt.Documents.ResetDocuments)
	}

	if rt.Health != nil {
		mux.HandleFunc("GET /health", rt.Health.Health)
		mux.HandleFunc("GET /ready", rt.Health.Readiness)
	}

	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}
}

// Handler registers the routes on a new mux and wraps it in the middleware
// chain. m may be nil. Metrics sits directly on the mux so the matched route
// pattern is visible to it; RequestID is outermost so every log line and
// recovered panic carries the id.
func (rt *Routes) Handler(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	rt.Register(mux)

	var handler http.Handler = mux
	if m != nil {
		handler = middleware.Metrics(m)(handler)
	}
	handler = middleware.Session(middleware.SessionCookie{
		Name:   cfg.Session.CookieName,
		MaxAge: cfg.Session.TTL,
		Secure: cfg.Session.Secure,
	})(handler)
	handler = middleware.Compression(handler)
	handler = middleware.Logger(logger)(handler)

	if cfg.Security.RateLimitRequests > 0 {
		handler = middleware.RateLimit(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration)(handler)
	}
	if len(cfg.Security.AllowedOrigins) > 0 {
		handler = middleware.CORS(cfg.Security.AllowedOrigins)(handler)
	}
	if cfg.Security.SecureHeaders {
		handler = middleware.SecureHeaders(handler)
	}

	handler = middleware.Recovery(logger)(handler)
	return middleware.RequestID(handler)
}
