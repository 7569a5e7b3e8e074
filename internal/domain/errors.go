package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTaskType is returned when a task type is not one of the
	// known variants.
	ErrInvalidTaskType = errors.New("invalid task type")

	// ErrInvalidTenantID is returned when a tenant ID contains characters
	// outside [a-z0-9_] after normalization.
	ErrInvalidTenantID = errors.New("invalid tenant ID")

	// ErrInvalidCallbackURL is returned when a callback URL is missing or
	// not an absolute URL.
	ErrInvalidCallbackURL = errors.New("invalid callback URL")

	// ErrInvalidStatus is returned when a notification status is not
	// "completed" or "failed".
	ErrInvalidStatus = errors.New("invalid notification status")
)
