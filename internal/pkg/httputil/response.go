package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
)

// Fields is an ad-hoc JSON object.
type Fields map[string]any

// JSON writes data with the given status code. Encoding failures are logged;
// the status line has already been sent at that point.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		logger.Error("json encode failed", "error", err)
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

// Error writes {"error": message} merged with extra.
func Error(w http.ResponseWriter, status int, message string, extra Fields) {
	body := Fields{"error": message}
	for k, v := range extra {
		body[k] = v
	}
	JSON(w, status, body)
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message, nil)
}

// NotFound writes a 404 error with optional alternatives.
func NotFound(w http.ResponseWriter, message string, extra Fields) {
	Error(w, http.StatusNotFound, message, extra)
}

// InternalError logs err and writes a 500 carrying its message.
func InternalError(w http.ResponseWriter, err error) {
	logger.Error("request failed", "error", err)
	Error(w, http.StatusInternalServerError, err.Error(), nil)
}

// Decode reads JSON from the request body into dst.
// Returns false and writes a 400 response if parsing fails.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
