// internal/handlers/respond.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/pkg/logger"
)

// base carries the scoped logger and response helpers shared by handlers
type base struct {
	logger *slog.Logger
}

func (b base) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		b.logger.Error("failed to encode JSON response", logger.Err(err))
	}
}

func (b base) respondError(w http.ResponseWriter, status int, message string) {
	b.respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps err to a status code and writes it. Validation messages are
// shown to the user as is; everything else gets fallback.
func (b base) respondErr(ctx context.Context, w http.ResponseWriter, err error, fallback string) {
	status, message := statusFor(err, fallback)
	if status >= http.StatusInternalServerError {
		b.logger.ErrorContext(ctx, fallback, logger.Err(err), slog.Int("status", status))
	} else {
		b.logger.WarnContext(ctx, fallback, logger.Err(err), slog.Int("status", status))
	}
	b.respondError(w, status, message)
}

func statusFor(err error, fallback string) (int, string) {
	var (
		validationErr *domain.ValidationError
		timeoutErr    *domain.TimeoutError
		networkErr    *domain.NetworkError
		backendErr    *domain.BackendError
		storageErr    *domain.StorageError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Message
	case errors.Is(err, domain.ErrStaleResponse):
		return http.StatusConflict, "Request superseded by a newer one"
	case errors.Is(err, domain.ErrCaseNotFound):
		return http.StatusNotFound, "Case not found"
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound, "Job not found"
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The backend took too long to respond"
	case errors.As(err, &backendErr):
		return http.StatusBadGateway, backendErr.Message
	case errors.As(err, &networkErr):
		return http.StatusBadGateway, "Could not reach the backend"
	case errors.As(err, &storageErr):
		return http.StatusServiceUnavailable, "Storage is unavailable"
	default:
		return http.StatusInternalServerError, fallback
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ValidationError{Message: "Invalid request body"}
	}
	return nil
}
