// internal/handlers/query.go
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/services"
	"github.com/ammerola/medboard/internal/pkg/metrics"
)

// QueryHandler submits RAG queries and manages the case journal
type QueryHandler struct {
	base
	sessions *SessionRegistry
	cases    *services.CaseStore
	renderer *Renderer
	metrics  *metrics.Metrics
}

// NewQueryHandler creates a new query handler. m may be nil.
func NewQueryHandler(sessions *SessionRegistry, cases *services.CaseStore, renderer *Renderer, m *metrics.Metrics, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{
		base:     base{logger: logger.With(slog.String("handler", "query"))},
		sessions: sessions,
		cases:    cases,
		renderer: renderer,
		metrics:  m,
	}
}

// SubmitQueryRequest is the body of a query submission
type SubmitQueryRequest struct {
	QueryType      string `json:"queryType"`
	Symptoms       string `json:"symptoms"`
	PatientDetails string `json:"patientDetails"`
	Query          string `json:"query"`
	SaveToHistory  bool   `json:"save_to_history"`
}

func (req SubmitQueryRequest) toDomain() domain.QueryRequest {
	return domain.QueryRequest{
		QueryType:      domain.ParseQueryType(req.QueryType),
		Symptoms:       req.Symptoms,
		PatientDetails: req.PatientDetails,
		GeneralQuery:   req.Query,
	}
}

// QueryResponse is the JSON result of a submission
type QueryResponse struct {
	*services.QueryResult
	HistoryError string `json:"history_error,omitempty"`
}

// SubmitQuery handles POST /api/v1/queries
func (h *QueryHandler) SubmitQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SubmitQueryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(ctx, w, err, "Invalid request body")
		return
	}

	result, err := h.submit(r, req)
	if err != nil {
		h.respondErr(ctx, w, err, "Failed to process query")
		return
	}

	resp := QueryResponse{QueryResult: result}
	if result.HistoryErr != nil {
		resp.HistoryError = "Answer received but the case could not be saved"
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// QueryFragment handles POST /fragments/query with a form-encoded body
func (h *QueryHandler) QueryFragment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.Render(w, http.StatusBadRequest, "error_fragment", "Invalid form data")
		return
	}

	req := SubmitQueryRequest{
		QueryType:      r.PostFormValue("queryType"),
		Symptoms:       r.PostFormValue("symptoms"),
		PatientDetails: r.PostFormValue("patientDetails"),
		Query:          r.PostFormValue("query"),
	}
	req.SaveToHistory, _ = strconv.ParseBool(r.PostFormValue("save_to_history"))

	result, err := h.submit(r, req)
	if err != nil {
		status, message := statusFor(err, "Failed to process query")
		h.logger.WarnContext(r.Context(), "query fragment failed", slog.String("error", err.Error()))
		h.renderer.Render(w, status, "error_fragment", message)
		return
	}
	h.renderer.Render(w, http.StatusOK, "query_result", result)
}

func (h *QueryHandler) submit(r *http.Request, req SubmitQueryRequest) (*services.QueryResult, error) {
	session := h.sessions.FromRequest(r)
	q := req.toDomain()

	start := time.Now()
	result, err := session.Queries.Submit(r.Context(), q, req.SaveToHistory)
	h.metrics.ObserveQuery(string(q.QueryType), queryOutcome(err), time.Since(start))
	return result, err
}

func queryOutcome(err error) string {
	var timeoutErr *domain.TimeoutError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrStaleResponse):
		return metrics.OutcomeStale
	case errors.As(err, &timeoutErr):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeError
	}
}

// ListCases handles GET /api/v1/cases
func (h *QueryHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.cases.List(r.Context(), ClientID(r))
	if err != nil {
		h.respondErr(r.Context(), w, err, "Failed to load cases")
		return
	}
	if cases == nil {
		cases = []domain.PatientCase{}
	}
	h.respondJSON(w, http.StatusOK, cases)
}

// DeleteCase handles DELETE /api/v1/cases/{id}
func (h *QueryHandler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid case ID")
		return
	}

	if err := h.cases.Delete(ctx, ClientID(r), id); err != nil {
		h.respondErr(ctx, w, err, "Failed to delete case")
		return
	}

	h.logger.InfoContext(ctx, "case deleted", slog.Int64("case_id", id))
	w.WriteHeader(http.StatusNoContent)
}
