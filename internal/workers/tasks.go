// Package workers holds the asynq task definitions and their processors.
package workers

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/hibiken/asynq"
)

const (
	TypeDocumentIngest = "document:ingest"
	TypeCleanupExpired = "cleanup:expired"
)

// Queue names match the default ASYNQ_QUEUES priorities.
const (
	QueueDefault = "default"
	QueueLow     = "low"
)

// uploadSubdir keeps accepted uploads apart from other files in the temp dir
const uploadSubdir = "medboard-uploads"

// UploadDir returns the directory holding uploads waiting for ingestion
func UploadDir(tempDir string) string {
	return filepath.Join(tempDir, uploadSubdir)
}

// DocumentPayload describes one accepted upload
type DocumentPayload struct {
	JobID    string `json:"job_id"`
	FilePath string `json:"file_path"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// NewDocumentIngestTask builds the ingestion task for p. The job ID doubles
// as the task ID so a duplicate enqueue is rejected.
func NewDocumentIngestTask(p DocumentPayload, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document payload: %w", err)
	}
	defaults := []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.TaskID(p.JobID),
	}
	return asynq.NewTask(TypeDocumentIngest, payload, append(defaults, opts...)...), nil
}

// NewCleanupTask builds the periodic cleanup task
func NewCleanupTask() *asynq.Task {
	return asynq.NewTask(TypeCleanupExpired, nil, asynq.Queue(QueueLow), asynq.MaxRetry(1))
}
