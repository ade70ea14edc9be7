// internal/core/services/preferences.go
package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/ports"
)

// PreferenceStore keeps per-client display preferences
type PreferenceStore struct {
	kv     ports.KVStore
	keys   Keys
	logger *slog.Logger
}

// NewPreferenceStore creates a preference store over kv
func NewPreferenceStore(kv ports.KVStore, keys Keys, logger *slog.Logger) *PreferenceStore {
	return &PreferenceStore{
		kv:     kv,
		keys:   keys,
		logger: logger.With(slog.String("service", "preferences")),
	}
}

// DarkMode returns the stored theme flag. Unset or unreadable values read
// as false.
func (s *PreferenceStore) DarkMode(ctx context.Context, clientID string) (bool, error) {
	key := s.keys.DarkMode(clientID)
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &domain.StorageError{Op: "read", Key: key, Err: err}
	}

	enabled, err := strconv.ParseBool(string(raw))
	if err != nil {
		s.logger.WarnContext(ctx, "Ignoring malformed preference", slog.String("key", key))
		return false, nil
	}
	return enabled, nil
}

// SetDarkMode stores the theme flag
func (s *PreferenceStore) SetDarkMode(ctx context.Context, clientID string, enabled bool) error {
	key := s.keys.DarkMode(clientID)
	if err := s.kv.Set(ctx, key, []byte(strconv.FormatBool(enabled)), 0); err != nil {
		return &domain.StorageError{Op: "write", Key: key, Err: err}
	}
	return nil
}
