// internal/pkg/config/validators.go
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ProductionValidator performs strict validation for production environments
type ProductionValidator struct{}

// Validate performs production-specific validation
func (v *ProductionValidator) Validate(cfg *Config) error {
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("backend url %q is not absolute", cfg.Backend.BaseURL)
	}

	if cfg.Storage.Driver == StorageMemory {
		return fmt.Errorf("memory storage loses case history on restart; use redis or postgres in production")
	}

	if cfg.Storage.Driver == StoragePostgres {
		if strings.HasPrefix(cfg.Database.Password, "MISSING_") || cfg.Database.Password == "medboard_dev" {
			return fmt.Errorf("%w: database password", ErrMissingRequiredConfig)
		}
		if cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("database SSL must be enabled in production")
		}
	}

	if !cfg.Security.SecureHeaders {
		return fmt.Errorf("secure headers must be enabled in production")
	}

	for _, origin := range cfg.Security.AllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("wildcard origin (*) not allowed in production")
		}
	}

	if !cfg.Session.Secure {
		return fmt.Errorf("session cookie must be secure in production")
	}

	return nil
}
