// internal/core/services/cases.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/ports"
	"github.com/ammerola/medboard/internal/pkg/logger"
)

// CaseStore persists each client's patient cases as one JSON array under a
// single key. Read-modify-write cycles on a key are serialized.
type CaseStore struct {
	kv     ports.KVStore
	keys   Keys
	logger *slog.Logger

	locks sync.Map // key -> *sync.Mutex
}

// NewCaseStore creates a case journal over kv
func NewCaseStore(kv ports.KVStore, keys Keys, logger *slog.Logger) *CaseStore {
	return &CaseStore{
		kv:     kv,
		keys:   keys,
		logger: logger.With(slog.String("service", "cases")),
	}
}

func (s *CaseStore) lock(key string) func() {
	mu, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// List returns the client's cases in insertion order. A missing key is an
// empty journal.
func (s *CaseStore) List(ctx context.Context, clientID string) ([]domain.PatientCase, error) {
	return s.read(ctx, s.keys.Cases(clientID))
}

// Save appends c to the client's journal
func (s *CaseStore) Save(ctx context.Context, clientID string, c domain.PatientCase) error {
	key := s.keys.Cases(clientID)
	defer s.lock(key)()

	cases, err := s.read(ctx, key)
	if err != nil {
		return err
	}
	cases = append(cases, c)
	if err := s.write(ctx, key, cases); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "Case saved",
		slog.Int64("case_id", c.ID),
		slog.String("query_type", string(c.QueryType)),
		slog.Int("journal_size", len(cases)))
	return nil
}

// Delete removes the case with the given id from the client's journal.
func (s *CaseStore) Delete(ctx context.Context, clientID string, id int64) error {
	key := s.keys.Cases(clientID)
	defer s.lock(key)()

	cases, err := s.read(ctx, key)
	if err != nil {
		return err
	}

	kept := cases[:0]
	for _, c := range cases {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(cases) {
		return fmt.Errorf("case %d: %w", id, domain.ErrCaseNotFound)
	}

	if err := s.write(ctx, key, kept); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Case deleted", slog.Int64("case_id", id))
	return nil
}

func (s *CaseStore) read(ctx context.Context, key string) ([]domain.PatientCase, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return []domain.PatientCase{}, nil
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "read", Key: key, Err: err}
	}

	var cases []domain.PatientCase
	if err := json.Unmarshal(raw, &cases); err != nil {
		s.logger.ErrorContext(ctx, "Case journal is corrupt", slog.String("key", key), logger.Err(err))
		return nil, &domain.StorageError{Op: "decode", Key: key, Err: err}
	}
	if cases == nil {
		cases = []domain.PatientCase{}
	}
	return cases, nil
}

func (s *CaseStore) write(ctx context.Context, key string, cases []domain.PatientCase) error {
	raw, err := json.Marshal(cases)
	if err != nil {
		return &domain.StorageError{Op: "encode", Key: key, Err: err}
	}
	if err := s.kv.Set(ctx, key, raw, 0); err != nil {
		return &domain.StorageError{Op: "write", Key: key, Err: err}
	}
	return nil
}
