// internal/core/ports/queue.go
package ports

import (
	"context"
	"io"

	"github.com/hibiken/asynq"
)

// TaskQueue enqueues background tasks
type TaskQueue interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DocumentArchive keeps a copy of uploaded source documents
type DocumentArchive interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}
