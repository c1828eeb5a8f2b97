package httpapi

import (
	"encoding/json"
	"net/http"

	"streamgen/internal/engine"
	"streamgen/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps scheduler errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case engine.IsValidation(err):
		return http.StatusBadRequest
	case engine.IsCapacityExceeded(err):
		return http.StatusTooManyRequests
	case engine.IsNotFound(err):
		return http.StatusNotFound
	case engine.IsShuttingDown(err):
		return http.StatusServiceUnavailable
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with its mapped status and returns that status.
func writeServiceError(w http.ResponseWriter, err error) int {
	code := statusForError(err)
	if code == http.StatusTooManyRequests {
		IncrementBackpressure("queue_full")
		w.Header().Set("Retry-After", "1")
	}
	writeJSONError(w, code, err.Error())
	return code
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
