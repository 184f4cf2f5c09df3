// Package http provides HTTP routing and request handlers for the
// Driver Tasks Hub API.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eyetask/driverhub/internal/service"
)

// envelope is the JSON response shape shared by all handlers.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// writeJSON writes a success envelope with the given payload.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// writeError translates err to its HTTP status and writes a failure
// envelope. Unrecognized errors map to 500 with a generic message so
// internal details never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, service.ErrInvalid):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrForbidden):
		status, message = http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: message})
}

// decodeBody parses the JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return service.ErrInvalid
	}
	return nil
}
