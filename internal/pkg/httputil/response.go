package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ignite/mailroom/internal/pkg/logger"
)

// ErrorResponse is the error envelope for every API error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes data as JSON with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("json encode failed", "error", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 response with the given data.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

func BadRequest(w http.ResponseWriter, message string)   { Error(w, http.StatusBadRequest, message) }
func Unauthorized(w http.ResponseWriter, message string) { Error(w, http.StatusUnauthorized, message) }
func Forbidden(w http.ResponseWriter, message string)    { Error(w, http.StatusForbidden, message) }
func NotFound(w http.ResponseWriter, message string)     { Error(w, http.StatusNotFound, message) }
func Conflict(w http.ResponseWriter, message string)     { Error(w, http.StatusConflict, message) }

// InternalError logs err and writes a generic 500. Internals never reach
// the client.
func InternalError(w http.ResponseWriter, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "Internal server error")
}

// Decode reads a JSON body into dst. On failure it writes a 400 and
// returns false. An empty body leaves dst untouched.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "Invalid JSON body")
		return false
	}
	return true
}
