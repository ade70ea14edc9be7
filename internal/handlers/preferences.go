// internal/handlers/preferences.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ammerola/medboard/internal/core/services"
)

// PreferencesHandler reads and writes per-client UI preferences
type PreferencesHandler struct {
	base
	prefs *services.PreferenceStore
}

// NewPreferencesHandler creates a new preferences handler
func NewPreferencesHandler(prefs *services.PreferenceStore, logger *slog.Logger) *PreferencesHandler {
	return &PreferencesHandler{
		base:  base{logger: logger.With(slog.String("handler", "preferences"))},
		prefs: prefs,
	}
}

// DarkModePreference is the body and response of the dark mode endpoints
type DarkModePreference struct {
	Enabled *bool `json:"enabled"`
}

// GetDarkMode handles GET /api/v1/preferences/dark-mode
func (h *PreferencesHandler) GetDarkMode(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.prefs.DarkMode(r.Context(), ClientID(r))
	if err != nil {
		h.respondErr(r.Context(), w, err, "Failed to load preference")
		return
	}
	h.respondJSON(w, http.StatusOK, DarkModePreference{Enabled: &enabled})
}

// SetDarkMode handles PUT /api/v1/preferences/dark-mode
func (h *PreferencesHandler) SetDarkMode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req DarkModePreference
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(ctx, w, err, "Invalid request body")
		return
	}
	if req.Enabled == nil {
		h.respondError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	if err := h.prefs.SetDarkMode(ctx, ClientID(r), *req.Enabled); err != nil {
		h.respondErr(ctx, w, err, "Failed to save preference")
		return
	}
	h.respondJSON(w, http.StatusOK, req)
}
