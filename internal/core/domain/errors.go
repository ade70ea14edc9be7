// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrKeyNotFound is returned by key-value stores for absent keys
	ErrKeyNotFound = errors.New("key not found")
	// ErrStaleResponse marks a response superseded by a newer submission
	ErrStaleResponse = errors.New("response superseded by a newer request")
	// ErrCaseNotFound is returned when deleting an unknown case id
	ErrCaseNotFound = errors.New("case not found")
	// ErrJobNotFound is returned for unknown ingestion job ids
	ErrJobNotFound = errors.New("job not found")
)

// ValidationError rejects a submission before any network call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NetworkError covers transport failures and non-2xx backend responses
type NetworkError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("backend %s unreachable: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BackendError carries an error message reported in a 2xx response body
type BackendError struct {
	Endpoint string
	Message  string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %s", e.Endpoint, e.Message)
}

// TimeoutError reports a request that exceeded its deadline
type TimeoutError struct {
	Endpoint string
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backend %s timed out after %s", e.Endpoint, e.After)
}

// StorageError wraps failures of the persistent key-value store
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
