// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-academic/internal/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrValidation = errors.New("validation failed")
	ErrBadRequest = errors.New("malformed request")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrUnavailable):
		Problem(w, http.StatusNotFound, "Unavailable", err.Error())
	case errors.Is(err, shared.ErrScheduleConflict):
		Problem(w, http.StatusConflict, "Schedule Conflict", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrInvalidData):
		Problem(w, http.StatusBadRequest, "Invalid Data", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsServerError reports whether RespondError would answer with a 5xx.
func IsServerError(err error) bool {
	for _, known := range []error{
		shared.ErrNotFound, shared.ErrUnavailable, shared.ErrScheduleConflict,
		shared.ErrConflict, shared.ErrInvalidData, ErrValidation, ErrBadRequest,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}
