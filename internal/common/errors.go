// Package common defines shared constants and sentinel errors used across
// the Memory Vault core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound            = errors.New("not found")
	ErrDuplicateID         = errors.New("duplicate identifier")
	ErrConstraintViolation = errors.New("constraint violation")

	// Validation errors (bad input shape, caller's fault).
	ErrValidation              = errors.New("validation error")
	ErrUnsupportedContentType  = errors.New("unsupported content type")
	ErrEmptyPayload            = errors.New("empty payload")
	ErrPayloadTooLarge         = errors.New("payload too large")
	ErrInvalidOwnerOrCommunity = errors.New("invalid owner or community")

	// Access errors. ErrAccessDenied is intentionally uninformative so that
	// unauthorized callers cannot probe for the existence of private records.
	ErrAccessDenied = errors.New("access denied")

	// Content store errors.
	ErrUploadFailure      = errors.New("upload failure")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrContentUnavailable = errors.New("content unavailable")

	// Upstream errors (retryable per orchestrator policy).
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrTimeout             = errors.New("timeout")

	// Integrity errors: immutable-field mutation or duplicate identifier.
	// These indicate a programming or environment bug, not user error, and
	// are logged at a higher severity than validation failures.
	ErrImmutableField     = errors.New("immutable field violation")
	ErrIntegrityViolation = errors.New("integrity violation")

	// Generic/internal flow control.
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
