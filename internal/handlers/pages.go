// internal/handlers/pages.go
package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/format"
	"github.com/ammerola/medboard/internal/core/services"
	"github.com/ammerola/medboard/internal/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"statusClass": func(s domain.StockStatus) string {
		return "status-" + strings.ReplaceAll(string(s), " ", "-")
	},
	"queryTitle": func(qt domain.QueryType) string {
		title, _ := format.Title(qt)
		return title
	},
	"add": func(a, b int) int { return a + b },
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}

// Renderer executes the embedded page and fragment templates
type Renderer struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewRenderer parses the embedded templates
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{
		templates: t,
		logger:    logger.With(slog.String("component", "renderer")),
	}, nil
}

// Render executes the named template into a buffer first so a template error
// never produces a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.Error("failed to render template", slog.String("template", name), logger.Err(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.Warn("failed to write page", slog.String("template", name), logger.Err(err))
	}
}

// PageData is the model of the full pages
type PageData struct {
	Title      string
	Active     string
	DarkMode   bool
	Error      string
	View       services.InventoryView
	Expiring   []domain.InventoryItem
	Activity   []domain.ActivityEntry
	Cases      []domain.PatientCase
	QueryTypes []domain.QueryType
}

// PageHandler serves the dashboard and RAG pages
type PageHandler struct {
	base
	renderer  *Renderer
	inventory *services.InventoryService
	sessions  *SessionRegistry
	prefs     *services.PreferenceStore
	cases     *services.CaseStore
}

// NewPageHandler creates a new page handler
func NewPageHandler(renderer *Renderer, inventory *services.InventoryService, sessions *SessionRegistry,
	prefs *services.PreferenceStore, cases *services.CaseStore, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		base:      base{logger: logger.With(slog.String("handler", "pages"))},
		renderer:  renderer,
		inventory: inventory,
		sessions:  sessions,
		prefs:     prefs,
		cases:     cases,
	}
}

// Dashboard handles GET /
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := h.pageData(r, "Inventory Dashboard", "dashboard")

	items, err := h.inventory.Snapshot(ctx)
	if err != nil {
		_, data.Error = statusFor(err, "Failed to load inventory")
		h.logger.WarnContext(ctx, "dashboard loaded without inventory", logger.Err(err))
	}
	data.View = h.sessions.FromRequest(r).Inventory.Load(items)

	// The side panels are optional; a failure leaves them empty.
	if expiring, err := h.inventory.Expiring(ctx); err == nil {
		data.Expiring = expiring
	}
	if activity, err := h.inventory.Activity(ctx); err == nil {
		data.Activity = activity
	}

	h.renderer.Render(w, http.StatusOK, "dashboard", data)
}

// RAG handles GET /rag
func (h *PageHandler) RAG(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := h.pageData(r, "Medical Assistant", "rag")
	data.QueryTypes = []domain.QueryType{domain.QueryGeneral, domain.QueryDisease, domain.QueryRecovery, domain.QueryResources}

	cases, err := h.cases.List(ctx, ClientID(r))
	if err != nil {
		_, data.Error = statusFor(err, "Failed to load case history")
		h.logger.WarnContext(ctx, "case history unavailable", logger.Err(err))
	}
	data.Cases = cases

	h.renderer.Render(w, http.StatusOK, "rag", data)
}

func (h *PageHandler) pageData(r *http.Request, title, active string) PageData {
	dark, err := h.prefs.DarkMode(r.Context(), ClientID(r))
	if err != nil {
		h.logger.WarnContext(r.Context(), "dark mode preference unavailable", logger.Err(err))
	}
	return PageData{Title: title, Active: active, DarkMode: dark}
}
