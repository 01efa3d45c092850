// Package apperr holds the error variants shared by the gateway handlers.
// Each variant is its own type and carries only the fields relevant to it;
// the HTTP layer maps them to status codes with HTTPStatus.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ValidationError reports malformed or out-of-range input. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AuthenticationError reports a missing or unusable bearer credential.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }

// AuthorizationError reports a caller without rights over the named resource.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// ConfigurationError reports server-side configuration that is missing.
// Operator fixable; the request can be retried once it is fixed.
type ConfigurationError struct {
	Service string
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return e.Service + " service not configured"
}

// ProviderError reports a failed or timed out third-party call.
// StatusCode is the provider's HTTP status, 0 when no response was received.
type ProviderError struct {
	Provider    string
	StatusCode  int
	Code        int
	Message     string
	Timeout     bool
	Unavailable bool
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	switch {
	case e.Timeout:
		return e.Provider + " request timed out"
	case e.Unavailable:
		return e.Provider + " temporarily unavailable"
	}
	return "Failed to call " + e.Provider
}

// ConflictError reports a request racing another one with the same idempotency key.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// UnknownActionError reports a proxy action with no registered handler.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("Unknown action: %s", e.Action)
}

// PersistenceWarning reports a record that was not saved after an
// irreversible provider call. It is logged, never returned as a failure.
type PersistenceWarning struct {
	Err error
}

func (w *PersistenceWarning) Error() string {
	return "persist message: " + w.Err.Error()
}

func (w *PersistenceWarning) Unwrap() error { return w.Err }

// Validation is a shorthand constructor for ValidationError.
func Validation(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// HTTPStatus maps an error to the status code the gateway answers with.
func HTTPStatus(err error) int {
	var (
		ve *ValidationError
		an *AuthenticationError
		az *AuthorizationError
		ce *ConfigurationError
		pe *ProviderError
		cf *ConflictError
		ua *UnknownActionError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ua):
		return http.StatusBadRequest
	case errors.As(err, &an):
		return http.StatusUnauthorized
	case errors.As(err, &az):
		return http.StatusForbidden
	case errors.As(err, &cf):
		return http.StatusConflict
	case errors.As(err, &ce):
		return http.StatusInternalServerError
	case errors.As(err, &pe):
		if pe.Unavailable {
			return http.StatusServiceUnavailable
		}
		if pe.StatusCode >= 400 && pe.StatusCode <= 599 {
			return pe.StatusCode
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may safely repeat the request unchanged.
func Retryable(err error) bool {
	var (
		ce *ConfigurationError
		pe *ProviderError
		cf *ConflictError
	)
	return errors.As(err, &ce) || errors.As(err, &pe) || errors.As(err, &cf)
}

// PublicMessage returns the message safe to show to a caller; unknown errors
// are collapsed into a generic one.
func PublicMessage(err error) string {
	var (
		ve *ValidationError
		an *AuthenticationError
		az *AuthorizationError
		ce *ConfigurationError
		pe *ProviderError
		cf *ConflictError
		ua *UnknownActionError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &an):
		return an.Error()
	case errors.As(err, &az):
		return az.Error()
	case errors.As(err, &ce):
		return ce.Error()
	case errors.As(err, &pe):
		return pe.Error()
	case errors.As(err, &cf):
		return cf.Error()
	case errors.As(err, &ua):
		return ua.Error()
	}
	return "Internal server error"
}

// Missing lists the empty values among name/value pairs; it is a helper for
// building ConfigurationError.
func Missing(pairs ...string) []string {
	var out []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			out = append(out, pairs[i])
		}
	}
	return out
}
