package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/roomwatch/roomwatch-core/internal/agent"
	"github.com/roomwatch/roomwatch-core/internal/directory"
	"github.com/roomwatch/roomwatch-core/internal/monitor"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeConflict     = "conflict"
	ErrCodeBadGateway   = "device_unreachable"
	ErrCodeInternal     = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps monitor, directory, and agent errors onto HTTP
// responses. Unrecognised errors become a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, monitor.ErrNoActiveRoom),
		errors.Is(err, monitor.ErrDeviceNotFound),
		errors.Is(err, directory.ErrRoomNotFound),
		errors.Is(err, directory.ErrDeviceNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, monitor.ErrEmptyRoom),
		errors.Is(err, monitor.ErrDeviceNotConfigured):
		writeBadRequest(w, err.Error())
	case errors.Is(err, monitor.ErrDemoActive),
		errors.Is(err, directory.ErrRoomExists),
		errors.Is(err, directory.ErrDeviceExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, monitor.ErrScreenshotUnavailable),
		agent.IsConnectionError(err):
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
