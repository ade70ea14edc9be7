package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/ledongthuc/pdf"

	"github.com/ammerola/medboard/internal/adapters/storage"
	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/ports"
	"github.com/ammerola/medboard/internal/core/services"
	"github.com/ammerola/medboard/internal/pkg/logger"
	"github.com/ammerola/medboard/internal/pkg/metrics"
)

// DocumentProcessor validates an uploaded PDF, archives a copy when an
// archive is configured and forwards the file to the backend knowledge base.
type DocumentProcessor struct {
	backend ports.BackendClient
	archive ports.DocumentArchive
	jobs    *services.JobStore
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

// NewDocumentProcessor creates a document processor. archive and m may be nil.
func NewDocumentProcessor(backend ports.BackendClient, archive ports.DocumentArchive, jobs *services.JobStore, m *metrics.Metrics, logger *slog.Logger) *DocumentProcessor {
	return &DocumentProcessor{
		backend: backend,
		archive: archive,
		jobs:    jobs,
		metrics: m,
		now:     time.Now,
		logger:  logger.With(slog.String("processor", "document")),
	}
}

// ProcessDocument handles TypeDocumentIngest tasks
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, t *asynq.Task) error {
	start := p.now()

	var payload DocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	ctx = context.WithValue(ctx, logger.ContextKeyJobID, payload.JobID)

	p.logger.InfoContext(ctx, "processing document",
		slog.String("filename", payload.Filename),
		slog.Int64("size", payload.Size))

	p.setStatus(ctx, payload.JobID, func(j *domain.IngestJob) {
		j.Status = domain.JobProcessing
		j.Error = ""
	})

	pages, err := CountPages(payload.FilePath)
	if err != nil {
		p.fail(ctx, payload, start, fmt.Sprintf("invalid PDF: %v", err))
		return fmt.Errorf("invalid document %s: %w: %w", payload.Filename, err, asynq.SkipRetry)
	}

	archiveURL := p.archiveCopy(ctx, payload)

	if err := p.upload(ctx, payload); err != nil {
		if isFinalAttempt(ctx) {
			p.fail(ctx, payload, start, err.Error())
		} else {
			p.setStatus(ctx, payload.JobID, func(j *domain.IngestJob) { j.Error = err.Error() })
		}
		return fmt.Errorf("failed to forward document: %w", err)
	}

	p.setStatus(ctx, payload.JobID, func(j *domain.IngestJob) {
		j.Status = domain.JobCompleted
		j.Pages = pages
		j.ArchiveURL = archiveURL
		j.Error = ""
	})
	removeFile(payload.FilePath)

	elapsed := p.now().Sub(start)
	p.metrics.ObserveDocument(string(domain.JobCompleted), pages, elapsed)
	p.logger.InfoContext(ctx, "document ingested",
		slog.Int("pages", pages),
		slog.Duration("elapsed", elapsed))

	return nil
}

func (p *DocumentProcessor) upload(ctx context.Context, payload DocumentPayload) error {
	f, err := os.Open(payload.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()
	return p.backend.UploadDocument(ctx, payload.Filename, f)
}

// archiveCopy is best effort; a failed archive does not block ingestion.
func (p *DocumentProcessor) archiveCopy(ctx context.Context, payload DocumentPayload) string {
	if p.archive == nil {
		return ""
	}

	f, err := os.Open(payload.FilePath)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to open upload for archiving", logger.Err(err))
		return ""
	}
	defer f.Close()

	key := storage.ArchiveKey(payload.JobID, payload.Filename, p.now())
	location, err := p.archive.Upload(ctx, key, f, "application/pdf")
	if err != nil {
		p.logger.WarnContext(ctx, "failed to archive document",
			slog.String("key", key),
			logger.Err(err))
		return ""
	}
	return location
}

func (p *DocumentProcessor) fail(ctx context.Context, payload DocumentPayload, start time.Time, msg string) {
	p.setStatus(ctx, payload.JobID, func(j *domain.IngestJob) {
		j.Status = domain.JobFailed
		j.Error = msg
	})
	removeFile(payload.FilePath)
	p.metrics.ObserveDocument(string(domain.JobFailed), 0, p.now().Sub(start))
	p.logger.WarnContext(ctx, "document ingestion failed", slog.String("reason", msg))
}

// setStatus logs instead of failing the task; the job record is advisory.
func (p *DocumentProcessor) setStatus(ctx context.Context, jobID string, mutate func(*domain.IngestJob)) {
	if _, err := p.jobs.Update(ctx, jobID, mutate); err != nil {
		p.logger.WarnContext(ctx, "failed to update job status", logger.Err(err))
	}
}

// CountPages opens path as a PDF and returns its page count. The parser
// panics on some malformed files.
func CountPages(path string) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	pages = r.NumPage()
	if pages == 0 {
		return 0, errors.New("document has no pages")
	}
	return pages, nil
}

func isFinalAttempt(ctx context.Context) bool {
	retried, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return true
	}
	return retried >= maxRetry
}

func removeFile(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}
