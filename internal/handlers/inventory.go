// internal/handlers/inventory.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/services"
)

// InventoryHandler serves the inventory dashboard data
type InventoryHandler struct {
	base
	service  *services.InventoryService
	sessions *SessionRegistry
	renderer *Renderer
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(service *services.InventoryService, sessions *SessionRegistry, renderer *Renderer, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{
		base:     base{logger: logger.With(slog.String("handler", "inventory"))},
		service:  service,
		sessions: sessions,
		renderer: renderer,
	}
}

// ListInventory handles GET /api/v1/inventory
func (h *InventoryHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	view, err := h.currentView(r)
	if err != nil {
		h.respondErr(r.Context(), w, err, "Failed to load inventory")
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// InventoryFragment handles GET /fragments/inventory
func (h *InventoryHandler) InventoryFragment(w http.ResponseWriter, r *http.Request) {
	view, err := h.currentView(r)
	if err != nil {
		status, message := statusFor(err, "Failed to load inventory")
		h.logger.WarnContext(r.Context(), "inventory fragment failed", slog.String("error", err.Error()))
		h.renderer.Render(w, status, "error_fragment", message)
		return
	}
	h.renderer.Render(w, http.StatusOK, "inventory_table", view)
}

// ListExpiring handles GET /api/v1/inventory/expiring
func (h *InventoryHandler) ListExpiring(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Expiring(r.Context())
	if err != nil {
		h.respondErr(r.Context(), w, err, "Failed to load expiring items")
		return
	}
	if items == nil {
		items = []domain.InventoryItem{}
	}
	h.respondJSON(w, http.StatusOK, items)
}

// ListActivity handles GET /api/v1/activity
func (h *InventoryHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Activity(r.Context())
	if err != nil {
		h.respondErr(r.Context(), w, err, "Failed to load activity")
		return
	}
	if entries == nil {
		entries = []domain.ActivityEntry{}
	}
	h.respondJSON(w, http.StatusOK, entries)
}

// UpdateQuantityRequest is the body of a quantity change
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// UpdateQuantity handles POST /api/v1/inventory/{id}/quantity
func (h *InventoryHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid inventory ID")
		return
	}

	var req UpdateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(ctx, w, err, "Invalid request body")
		return
	}
	if req.Quantity == nil {
		h.respondError(w, http.StatusBadRequest, "quantity is required")
		return
	}

	if err := h.service.UpdateQuantity(ctx, id, *req.Quantity); err != nil {
		h.respondErr(ctx, w, err, "Failed to update inventory")
		return
	}

	// Reload this session's table so the next view reflects the change.
	view, err := h.reload(ctx, h.sessions.FromRequest(r))
	if err != nil {
		h.logger.WarnContext(ctx, "quantity updated but reload failed", slog.String("error", err.Error()))
		h.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// Estimate handles POST /api/v1/estimate
func (h *InventoryHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.EstimateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(ctx, w, err, "Invalid request body")
		return
	}

	result, err := h.service.Estimate(ctx, req)
	if err != nil {
		h.respondErr(ctx, w, err, "Failed to estimate treatment")
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// currentView loads the snapshot into the caller's controller and applies the
// filter, search and page parameters that differ from its current state.
func (h *InventoryHandler) currentView(r *http.Request) (services.InventoryView, error) {
	ctx := r.Context()
	session := h.sessions.FromRequest(r)
	q := r.URL.Query()

	if q.Get("refresh") == "true" {
		h.service.Invalidate(ctx)
	}

	view, err := h.reload(ctx, session)
	if err != nil {
		return services.InventoryView{}, err
	}

	ctrl := session.Inventory
	if q.Has("filter") {
		if kind := services.ParseFilter(q.Get("filter")); kind != view.Filter {
			view = ctrl.SetFilter(kind)
		}
	}
	if q.Has("search") {
		if term := strings.TrimSpace(q.Get("search")); term != view.Search {
			view = ctrl.SetSearch(term)
		}
	}
	if p := q.Get("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n != view.Page {
			view = ctrl.GotoPage(n)
		}
	}
	return view, nil
}

func (h *InventoryHandler) reload(ctx context.Context, session *Session) (services.InventoryView, error) {
	items, err := h.service.Snapshot(ctx)
	if err != nil {
		return services.InventoryView{}, err
	}
	return session.Inventory.Load(items), nil
}
