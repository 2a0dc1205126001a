// Package httpapi exposes the HTTP API layer of the service.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/vending-kiosk-service/internal/model"
)

// jsonError represents a JSON error payload.
type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message, Details: details})
}

// WriteDomainError maps the service error taxonomy onto HTTP statuses:
// validation 400, authentication 401, not-found 404, conflict and
// resource-unavailable 409. Anything else is a 500.
func WriteDomainError(w http.ResponseWriter, err error) {
	var unavail *model.UnavailableError
	switch {
	case errors.As(err, &unavail):
		WriteJSONError(w, http.StatusConflict, "unavailable", unavail.Error())
	case errors.Is(err, model.ErrValidation):
		WriteJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, model.ErrBadSignature):
		WriteJSONError(w, http.StatusUnauthorized, "invalid_signature", "")
	case errors.Is(err, model.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, model.ErrConflict):
		WriteJSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, model.ErrInsufficientStock):
		WriteJSONError(w, http.StatusConflict, "unavailable", err.Error())
	default:
		WriteJSONError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
