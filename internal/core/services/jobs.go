// internal/core/services/jobs.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/ports"
)

// JobStore records document ingestion progress so the API can report on
// jobs run by the worker.
type JobStore struct {
	kv     ports.KVStore
	keys   Keys
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewJobStore creates a job store whose records expire after ttl
func NewJobStore(kv ports.KVStore, keys Keys, ttl time.Duration, logger *slog.Logger) *JobStore {
	return &JobStore{
		kv:     kv,
		keys:   keys,
		ttl:    ttl,
		logger: logger.With(slog.String("service", "jobs")),
		now:    time.Now,
	}
}

// Create stores a new queued job
func (s *JobStore) Create(ctx context.Context, id, filename string, size int64) (*domain.IngestJob, error) {
	now := s.now().UTC()
	job := &domain.IngestJob{
		ID:        id,
		Filename:  filename,
		Size:      size,
		Status:    domain.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.put(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get loads a job record
func (s *JobStore) Get(ctx context.Context, id string) (*domain.IngestJob, error) {
	key := s.keys.Job(id)
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrJobNotFound)
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "read", Key: key, Err: err}
	}

	var job domain.IngestJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, &domain.StorageError{Op: "decode", Key: key, Err: err}
	}
	return &job, nil
}

// Update applies mutate to the stored job and writes it back.
func (s *JobStore) Update(ctx context.Context, id string, mutate func(*domain.IngestJob)) (*domain.IngestJob, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	mutate(job)
	job.UpdatedAt = s.now().UTC()
	if err := s.put(ctx, job); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "Job updated",
		slog.String("job_id", id),
		slog.String("status", string(job.Status)))
	return job, nil
}

func (s *JobStore) put(ctx context.Context, job *domain.IngestJob) error {
	key := s.keys.Job(job.ID)
	raw, err := json.Marshal(job)
	if err != nil {
		return &domain.StorageError{Op: "encode", Key: key, Err: err}
	}
	if err := s.kv.Set(ctx, key, raw, s.ttl); err != nil {
		return &domain.StorageError{Op: "write", Key: key, Err: err}
	}
	return nil
}
