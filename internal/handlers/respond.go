package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"chorechart/internal/service"
	"chorechart/internal/validation"
)

const maxBodyBytes = 1 << 20

// Error codes returned in the response envelope
const (
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodeInsufficientPoints = "INSUFFICIENT_POINTS"
	CodeConflict           = "CONFLICT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeAIUnavailable      = "AI_UNAVAILABLE"
	CodeServerError        = "SERVER_ERROR"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func respondAPIError(w http.ResponseWriter, status int, e apiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: &e})
}

// respondWithError maps a service error onto the envelope. Unexpected errors
// are logged and reported without detail.
func respondWithError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var ve validation.ValidationError
	switch {
	case errors.As(err, &ve):
		respondAPIError(w, http.StatusBadRequest, apiError{Code: CodeValidation, Message: ve.Error(), Field: ve.Field})
	case errors.Is(err, service.ErrInvalidCredentials):
		respondAPIError(w, http.StatusUnauthorized, apiError{Code: CodeUnauthorized, Message: err.Error()})
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrSessionExpired):
		respondAPIError(w, http.StatusUnauthorized, apiError{Code: CodeUnauthorized, Message: "authentication required"})
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrNoFamily):
		respondAPIError(w, http.StatusForbidden, apiError{Code: CodeForbidden, Message: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		respondAPIError(w, http.StatusNotFound, apiError{Code: CodeNotFound, Message: "not found"})
	case errors.Is(err, service.ErrInsufficientPoints):
		respondAPIError(w, http.StatusBadRequest, apiError{Code: CodeInsufficientPoints, Message: err.Error()})
	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrConflict):
		respondAPIError(w, http.StatusConflict, apiError{Code: CodeConflict, Message: err.Error()})
	case errors.Is(err, service.ErrAIUnavailable):
		respondAPIError(w, http.StatusServiceUnavailable, apiError{Code: CodeAIUnavailable, Message: "task assistant is unavailable, please try again later"})
	default:
		if logger != nil {
			logger.Error("Request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
		}
		respondAPIError(w, http.StatusInternalServerError, apiError{Code: CodeServerError, Message: "internal server error"})
	}
}

// decodeJSON reads a JSON request body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return validation.Invalid("body", "request body is required")
		}
		return validation.Invalid("body", "invalid JSON")
	}
	return nil
}
