package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/go-magiclink/internal/api/dto"
	"github.com/hugh/go-magiclink/internal/magiclink"
	"github.com/hugh/go-magiclink/internal/store"
	"github.com/hugh/go-magiclink/internal/validation"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

func writeValidation(w http.ResponseWriter, details map[string]string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
}

// errorWriter maps domain errors onto HTTP responses. Anything unrecognized
// is logged and answered with a 500.
type errorWriter struct {
	logger       *slog.Logger
	exposeErrors bool
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr *validation.FieldError
	switch {
	case errors.As(err, &fieldErr):
		writeValidation(w, map[string]string{fieldErr.Field: fieldErr.Message})
	case errors.Is(err, validation.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed"})
	case errors.Is(err, store.ErrConflict):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User already exists"})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
	case errors.Is(err, magiclink.ErrInvalidOrExpired):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid or expired magic link"})
	default:
		e.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		resp := dto.ErrorResponse{Error: "Internal server error"}
		if e.exposeErrors {
			resp.Details = map[string]string{"error": err.Error()}
		}
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}
