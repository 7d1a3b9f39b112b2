package payments

import (
	"errors"
	"net/http"

	"zapstack-backend/database"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrInvalidKeyFormat = errors.New("invalid zapStackKey format")
	ErrTenantNotFound   = errors.New("project not found or not using M-Pesa")
	ErrReplayDetected   = errors.New("nonce already used, possible replay attack")
	ErrDuplicate        = database.ErrDuplicate
	ErrUpstreamAuth     = errors.New("provider authentication failed")
	ErrUpstreamCall     = errors.New("provider request failed")
	ErrInternal         = errors.New("internal error")
	ErrQueueFull        = errors.New("retry queue is full")
)

// StatusCode maps an error from this package onto the HTTP status the caller sees.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidKeyFormat):
		return http.StatusBadRequest
	case errors.Is(err, ErrTenantNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrReplayDetected), errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrUpstreamAuth), errors.Is(err, ErrUpstreamCall):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsKnown reports whether err belongs to the payment error taxonomy, i.e. its
// message is safe to show to the caller.
func IsKnown(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrInvalidKeyFormat, ErrTenantNotFound, ErrReplayDetected,
		ErrDuplicate, ErrUpstreamAuth, ErrUpstreamCall,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
