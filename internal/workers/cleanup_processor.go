package workers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/medboard/internal/core/ports"
	"github.com/ammerola/medboard/internal/pkg/logger"
	"github.com/ammerola/medboard/internal/pkg/metrics"
)

// CleanupProcessor purges expired store entries and stale uploads
type CleanupProcessor struct {
	purger    ports.KVPurger
	uploadDir string
	retainFor time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *slog.Logger
}

// NewCleanupProcessor creates a cleanup processor. purger may be nil when the
// configured store expires entries on its own.
func NewCleanupProcessor(purger ports.KVPurger, uploadDir string, retainFor time.Duration, m *metrics.Metrics, logger *slog.Logger) *CleanupProcessor {
	return &CleanupProcessor{
		purger:    purger,
		uploadDir: uploadDir,
		retainFor: retainFor,
		metrics:   m,
		now:       time.Now,
		logger:    logger.With(slog.String("processor", "cleanup")),
	}
}

// CleanupExpired handles TypeCleanupExpired tasks
func (p *CleanupProcessor) CleanupExpired(ctx context.Context, _ *asynq.Task) error {
	var purged int64
	if p.purger != nil {
		n, err := p.purger.PurgeExpired(ctx)
		if err != nil {
			return fmt.Errorf("failed to purge expired entries: %w", err)
		}
		purged = n
	}

	removed, err := p.sweepUploads(ctx)
	if err != nil {
		return err
	}

	p.metrics.ObserveCleanup(purged, removed)
	p.logger.InfoContext(ctx, "cleanup completed",
		slog.Int64("entries_purged", purged),
		slog.Int("files_deleted", removed))

	return nil
}

// sweepUploads removes PDF uploads older than retainFor. Only the top level
// of the upload dir is scanned.
func (p *CleanupProcessor) sweepUploads(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(p.uploadDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read upload directory: %w", err)
	}

	cutoff := p.now().Add(-p.retainFor)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(p.uploadDir, e.Name())
		if err := os.Remove(path); err != nil {
			p.logger.WarnContext(ctx, "failed to delete stale upload",
				slog.String("file", path),
				logger.Err(err))
			continue
		}
		removed++
	}
	return removed, nil
}
