package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"account-service/internal/apperrors"

	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

type MessageResponse struct {
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, errorCode, message string) {
	respondWithJSON(w, code, map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// decodeJSON reads a JSON body into dst. Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	return true
}

// respondWithServiceError maps service errors onto status codes and bodies.
// Internal details are logged, never returned.
func respondWithServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var (
		verr     *apperrors.ValidationError
		conflict *apperrors.ConflictError
		tokenErr *apperrors.TokenError
	)
	switch {
	case errors.As(err, &verr):
		respondWithJSON(w, http.StatusBadRequest, verr.Fields)
	case errors.Is(err, apperrors.ErrAuthentication):
		respondWithJSON(w, http.StatusBadRequest, map[string][]string{
			"non_field_errors": {apperrors.ErrAuthentication.Error()},
		})
	case errors.As(err, &conflict):
		respondWithJSON(w, http.StatusConflict, map[string]string{conflict.Field: conflict.Message})
	case errors.Is(err, apperrors.ErrResetTokenInvalid):
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"token": apperrors.ErrResetTokenInvalid.Error()})
	case errors.As(err, &tokenErr):
		respondWithError(w, http.StatusUnauthorized, "invalid_token", "Token is invalid or expired")
	case errors.Is(err, apperrors.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "forbidden", apperrors.ErrForbidden.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "not_found", "Not found")
	case errors.Is(err, apperrors.ErrUnavailable):
		logger.Error().Err(err).Msg("Dependency unavailable")
		respondWithError(w, http.StatusServiceUnavailable, "service_unavailable", "Service temporarily unavailable")
	default:
		logger.Error().Err(err).Msg("Unhandled service error")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
	}
}
