package api

import (
	"errors"
	"net/http"

	"github.com/relayq/relayq/internal/domain"
	"github.com/relayq/relayq/internal/notify"
	"github.com/relayq/relayq/internal/queue"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes based on the error type. This prevents leaking internal error
// types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, queue.ErrSizeExceeded):
		return http.StatusRequestEntityTooLarge

	case errors.Is(err, queue.ErrUnavailable):
		return http.StatusServiceUnavailable

	case errors.Is(err, notify.ErrInvalidSignature):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidTaskType),
		errors.Is(err, domain.ErrInvalidTenantID),
		errors.Is(err, domain.ErrInvalidCallbackURL),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, notify.ErrInvalidRecord):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for the
// error. Internal details stay in the logs.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"

	case errors.Is(err, queue.ErrSizeExceeded):
		return "Task payload exceeds the message size ceiling"

	case errors.Is(err, queue.ErrUnavailable):
		return "Task queue temporarily unavailable, retry later"

	case errors.Is(err, notify.ErrInvalidSignature):
		return "Invalid callback signature"

	case errors.Is(err, domain.ErrInvalidTaskType):
		return "Unknown task type"

	case errors.Is(err, domain.ErrInvalidTenantID):
		return "Invalid tenant identifier"

	case errors.Is(err, domain.ErrInvalidCallbackURL):
		return "Invalid callback URL"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, notify.ErrInvalidRecord):
		return "Invalid request"

	default:
		return "An unexpected error occurred"
	}
}
