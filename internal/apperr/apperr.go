// Package apperr provides structured error types for the crewmate backend.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDenied       = errors.New("access denied")
	ErrInvalidInput = errors.New("invalid input")
	ErrNoProvider   = errors.New("no text-completion provider configured")
	ErrAuthFailure  = errors.New("authentication failed")
)

// ProviderError represents a failed call to a text-completion provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s provider error (status %d): %s: %v", e.Provider, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError creates a provider error without a wrapped cause.
func NewProviderError(provider string, statusCode int, message string) *ProviderError {
	return &ProviderError{Provider: provider, StatusCode: statusCode, Message: message}
}

// ParseError is returned when a provider produced malformed JSON where
// strict JSON was required. Raw carries the original text so the caller
// can surface it instead of fabricating a result.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid AI response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsProviderFailure reports whether err originated in a provider call,
// as opposed to configuration or validation.
func IsProviderFailure(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
