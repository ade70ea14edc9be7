// internal/handlers/documents.go
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/ports"
	"github.com/ammerola/medboard/internal/core/services"
	"github.com/ammerola/medboard/internal/workers"
)

// DocumentHandler accepts knowledge base uploads and queues them for ingestion
type DocumentHandler struct {
	base
	jobs        *services.JobStore
	queue       ports.TaskQueue
	backend     ports.BackendClient
	maxFileSize int64
	uploadDir   string
	taskOpts    []asynq.Option
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(jobs *services.JobStore, queue ports.TaskQueue, backend ports.BackendClient,
	maxFileSize int64, uploadDir string, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		base:        base{logger: logger.With(slog.String("handler", "documents"))},
		jobs:        jobs,
		queue:       queue,
		backend:     backend,
		maxFileSize: maxFileSize,
		uploadDir:   uploadDir,
	}
}

// WithTaskOptions sets extra asynq options, such as retries and timeout, for
// every ingestion task the handler enqueues.
func (h *DocumentHandler) WithTaskOptions(opts ...asynq.Option) *DocumentHandler {
	h.taskOpts = opts
	return h
}

// UploadResponse acknowledges a queued document
type UploadResponse struct {
	JobID    string           `json:"job_id"`
	Status   domain.JobStatus `json:"status"`
	Filename string           `json:"filename"`
}

// UploadDocument handles POST /api/v1/documents
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File exceeds the %d MB limit", h.maxFileSize>>20))
			return
		}
		h.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()

	if err := domain.ValidateDocumentName(header.Filename); err != nil {
		h.respondErr(ctx, w, err, "Invalid file")
		return
	}
	filename := domain.SecureFilename(header.Filename)
	if filename == "" {
		filename = "document.pdf"
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.logger.ErrorContext(ctx, "failed to create upload directory", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to prepare upload")
		return
	}

	jobID := uuid.New().String()
	tempFile := filepath.Join(h.uploadDir, fmt.Sprintf("%s_%s", jobID, filename))
	size, err := saveUpload(tempFile, file)
	if err != nil {
		os.Remove(tempFile)
		h.logger.ErrorContext(ctx, "failed to save upload", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to save upload")
		return
	}

	if _, err := h.jobs.Create(ctx, jobID, filename, size); err != nil {
		os.Remove(tempFile)
		h.respondErr(ctx, w, err, "Failed to create ingestion job")
		return
	}

	task, err := workers.NewDocumentIngestTask(workers.DocumentPayload{
		JobID:    jobID,
		FilePath: tempFile,
		Filename: filename,
		Size:     size,
	}, h.taskOpts...)
	if err != nil {
		os.Remove(tempFile)
		h.logger.ErrorContext(ctx, "failed to create task", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to queue document")
		return
	}

	info, err := h.queue.EnqueueContext(ctx, task)
	if err != nil {
		os.Remove(tempFile)
		h.markFailed(r, jobID, "could not be queued")
		h.logger.ErrorContext(ctx, "failed to enqueue task", slog.String("error", err.Error()))
		h.respondError(w, http.StatusServiceUnavailable, "Failed to queue document")
		return
	}

	h.logger.InfoContext(ctx, "document queued",
		slog.String("job_id", jobID),
		slog.String("task_id", info.ID),
		slog.String("filename", filename),
		slog.Int64("size", size))

	w.Header().Set("Location", "/api/v1/documents/jobs/"+jobID)
	h.respondJSON(w, http.StatusAccepted, UploadResponse{
		JobID:    jobID,
		Status:   domain.JobQueued,
		Filename: filename,
	})
}

// GetJob handles GET /api/v1/documents/jobs/{id}
func (h *DocumentHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid job ID format")
		return
	}

	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		h.respondErr(r.Context(), w, err, "Failed to load job")
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

// ResetDocuments handles POST /api/v1/documents/reset
func (h *DocumentHandler) ResetDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.backend.ResetDocuments(ctx); err != nil {
		h.respondErr(ctx, w, err, "Failed to reset knowledge base")
		return
	}

	h.logger.InfoContext(ctx, "knowledge base reset")
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Database cleared successfully"})
}

func (h *DocumentHandler) markFailed(r *http.Request, jobID, reason string) {
	_, err := h.jobs.Update(r.Context(), jobID, func(j *domain.IngestJob) {
		j.Status = domain.JobFailed
		j.Error = reason
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to mark job failed", slog.String("error", err.Error()))
	}
}

func saveUpload(path string, src io.Reader) (int64, error) {
	dst, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write temp file: %w", err)
	}
	return n, nil
}
