package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ammerola/medboard/internal/core/ports"
)

// LocalArchive implements ports.DocumentArchive on the local filesystem.
// Used in development when no bucket is configured.
type LocalArchive struct {
	basePath string
	logger   *slog.Logger
}

var _ ports.DocumentArchive = (*LocalArchive)(nil)

// NewLocalArchive creates an archive rooted at basePath
func NewLocalArchive(basePath string, logger *slog.Logger) *LocalArchive {
	return &LocalArchive{
		basePath: basePath,
		logger:   logger.With(slog.String("archive", "local")),
	}
}

// Upload writes body under basePath/key and returns a file:// location
func (l *LocalArchive) Upload(ctx context.Context, key string, body io.Reader, _ string) (string, error) {
	dest := filepath.Join(l.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.basePath, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive key %q escapes base path", key)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	n, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("failed to write archive file: %w", copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("failed to close archive file: %w", closeErr)
	}

	l.logger.InfoContext(ctx, "document archived",
		slog.String("key", key),
		slog.Int64("size", n))

	return "file://" + filepath.ToSlash(dest), nil
}
