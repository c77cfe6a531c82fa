package handlers

import (
	"net/http"

	"account-service/internal/apperrors"
	"account-service/internal/middleware"
	"account-service/internal/models"
	"account-service/internal/services"

	"github.com/rs/zerolog"
)

const (
	msgLoggedOut       = "logout successful"
	msgPasswordUpdated = "password updated successfully"
	msgResetSent       = "if an account exists with this email, a password reset link has been sent"
	msgResetDone       = "password has been reset successfully"
	msgInvalidToken    = "invalid token"
)

type AuthHandler struct {
	authService *services.AuthService
	logger      zerolog.Logger
}

func NewAuthHandler(authService *services.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetIdentity(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}
	var req models.RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.Logout(r.Context(), actor, &req); err != nil {
		if apperrors.IsTokenError(err) {
			respondWithJSON(w, http.StatusBadRequest, MessageResponse{Message: msgInvalidToken})
			return
		}
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusResetContent, MessageResponse{Message: msgLoggedOut})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	access, err := h.authService.Refresh(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetIdentity(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}
	var req models.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.ChangePassword(r.Context(), actor, &req); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: msgPasswordUpdated})
}

func (h *AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.PasswordResetRequest(r.Context(), &req); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: msgResetSent})
}

func (h *AuthHandler) PasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.PasswordResetConfirm(r.Context(), &req); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: msgResetDone})
}
