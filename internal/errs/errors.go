// Package errs defines the error taxonomy shared by the explorer, the graph
// builder, the route optimizer and the HTTP surface.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks bad caller input. Mapped to 400.
	ErrValidation = errors.New("validation failed")
	// ErrProvider marks a failed call to an external collaborator.
	ErrProvider = errors.New("provider failure")
	// ErrComputation marks an internal invariant breach. Mapped to 500.
	ErrComputation = errors.New("computation failed")
	// ErrCacheCorrupt marks an unreadable cache snapshot.
	ErrCacheCorrupt = errors.New("cache corrupt")
)

// ValidationError describes one invalid input field.
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

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidationErrors collects several field failures.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool { return target == ErrValidation }

// ProviderError wraps a failure of a schedule, location, emissions or delay provider.
type ProviderError struct {
	Provider string
	Op       string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

type ComputationError struct {
	Op  string
	Err error
}

func (e *ComputationError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *ComputationError) Unwrap() error { return e.Err }

func (e *ComputationError) Is(target error) bool { return target == ErrComputation }

// CacheCorruptionError reports a snapshot that could not be decoded. The
// namespace is reset to empty when this is returned.
type CacheCorruptionError struct {
	Namespace string
	Path      string
	Err       error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("cache namespace %s (%s) corrupt: %v", e.Namespace, e.Path, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

func (e *CacheCorruptionError) Is(target error) bool { return target == ErrCacheCorrupt }

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
