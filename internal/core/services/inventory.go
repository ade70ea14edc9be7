// internal/core/services/inventory.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/ports"
	"github.com/ammerola/medboard/internal/pkg/logger"
)

const inventorySnapshotKey = "inventory:snapshot"

// InventoryService fetches inventory data from the backend, keeping the
// snapshot in cache for a short TTL when a cache is configured.
type InventoryService struct {
	backend ports.BackendClient
	cache   ports.CacheRepository
	ttl     time.Duration
	logger  *slog.Logger
}

// NewInventoryService creates a new inventory service. cache may be nil.
func NewInventoryService(backend ports.BackendClient, cache ports.CacheRepository, ttl time.Duration, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		backend: backend,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.With(slog.String("service", "inventory")),
	}
}

// Snapshot returns the current inventory. A cache failure falls through to
// the backend; a backend failure is returned as is.
func (s *InventoryService) Snapshot(ctx context.Context) ([]domain.InventoryItem, error) {
	if s.cache == nil || s.ttl <= 0 {
		return s.fetch(ctx)
	}

	var (
		items    []domain.InventoryItem
		fetchErr error
	)
	err := s.cache.GetOrSet(ctx, inventorySnapshotKey, &items, func() (interface{}, error) {
		fetched, err := s.fetch(ctx)
		fetchErr = err
		return fetched, err
	}, s.ttl)
	if fetchErr != nil {
		return nil, fetchErr
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Inventory cache unavailable, reading backend", logger.Err(err))
		return s.fetch(ctx)
	}
	return items, nil
}

func (s *InventoryService) fetch(ctx context.Context) ([]domain.InventoryItem, error) {
	items, err := s.backend.FetchInventory(ctx)
	if err != nil {
		return nil, err
	}

	valid := make([]domain.InventoryItem, 0, len(items))
	for i := range items {
		if err := items[i].Validate(); err != nil {
			s.logger.WarnContext(ctx, "Skipping invalid inventory row",
				slog.String("name", items[i].Name),
				logger.Err(err))
			continue
		}
		valid = append(valid, items[i])
	}

	s.logger.DebugContext(ctx, "Inventory fetched",
		slog.Int("rows", len(items)),
		slog.Int("valid", len(valid)))
	return valid, nil
}

// Expiring returns items nearing their expiration date
func (s *InventoryService) Expiring(ctx context.Context) ([]domain.InventoryItem, error) {
	return s.backend.FetchExpiring(ctx)
}

// Activity returns the recent activity log
func (s *InventoryService) Activity(ctx context.Context) ([]domain.ActivityEntry, error) {
	return s.backend.FetchActivity(ctx)
}

// UpdateQuantity sets an item's quantity and drops the cached snapshot.
func (s *InventoryService) UpdateQuantity(ctx context.Context, id int64, quantity int) error {
	if id <= 0 {
		return &domain.ValidationError{Field: "id", Message: "must be positive"}
	}
	if quantity < 0 {
		return &domain.ValidationError{Field: "quantity", Message: "must not be negative"}
	}

	if err := s.backend.UpdateQuantity(ctx, id, quantity); err != nil {
		return fmt.Errorf("failed to update item %d: %w", id, err)
	}
	s.Invalidate(ctx)

	s.logger.InfoContext(ctx, "Inventory quantity updated",
		slog.Int64("item_id", id),
		slog.Int("quantity", quantity))
	return nil
}

// Invalidate drops the cached snapshot
func (s *InventoryService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, inventorySnapshotKey); err != nil {
		s.logger.WarnContext(ctx, "Failed to invalidate inventory cache", logger.Err(err))
	}
}

// Estimate asks the backend for a treatment time and resource estimate
func (s *InventoryService) Estimate(ctx context.Context, req domain.EstimateRequest) (*domain.EstimateResult, error) {
	if strings.TrimSpace(req.PatientInfo) == "" {
		return nil, &domain.ValidationError{Field: "patient_info", Message: "patient information is required"}
	}
	return s.backend.Estimate(ctx, req)
}
