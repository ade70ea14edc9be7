// internal/core/domain/document.go
package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// JobStatus tracks a document through ingestion
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IngestJob is the status record of one uploaded document
type IngestJob struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	Status     JobStatus `json:"status"`
	Pages      int       `json:"pages,omitempty"`
	ArchiveURL string    `json:"archive_url,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AllowedDocumentExtensions lists the extensions accepted for upload.
var AllowedDocumentExtensions = []string{".pdf"}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SecureFilename reduces name to a safe base name made of ASCII letters,
// digits, dots, dashes and underscores.
func SecureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	return name
}

// ValidateDocumentName checks the upload name against the allowed extensions
func ValidateDocumentName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "file", Message: "no selected file"}
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedDocumentExtensions {
		if ext == allowed {
			return nil
		}
	}
	return &ValidationError{Field: "file", Message: fmt.Sprintf("invalid file type %q, only PDF files are allowed", ext)}
}
