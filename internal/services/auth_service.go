package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"account-service/internal/apperrors"
	"account-service/internal/models"
	"account-service/internal/permission"
	"account-service/internal/repository"

	"github.com/rs/zerolog"
)

const (
	msgRegistered       = "user registered successfully"
	msgLoggedIn         = "login successful"
	msgWrongOldPassword = "wrong password."
)

// ResetNotifier hands a password reset link over for delivery.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, msg models.PasswordResetEmail) error
}

// AuthService runs the register, login, logout, refresh, password change and
// password reset flows.
type AuthService struct {
	users    repository.UserRepository
	hasher   *PasswordHasher
	tokens   *TokenService
	audit    *AuditService
	notifier ResetNotifier
	logger   zerolog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	hasher *PasswordHasher,
	tokens *TokenService,
	audit *AuditService,
	notifier ResetNotifier,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		audit:    audit,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         models.UserRole(req.Role),
		IsActive:     true,
		Province:     req.Province,
		District:     req.District,
		Municipality: req.Municipality,
		WardNo:       req.WardNo,
	}
	if req.PhoneNumber != "" {
		phone := req.PhoneNumber
		user.PhoneNumber = &phone
	}

	created, err := s.users.Create(ctx, user, models.NewProfile())
	if err != nil {
		var conflict *apperrors.ConflictError
		if !errors.As(err, &conflict) {
			s.logger.Error().Err(err).Msg("Error creating user")
		}
		return nil, err
	}

	pair, err := s.tokens.Issue(ctx, created)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, created.ID, models.AuditRegister, "role="+string(created.Role))
	s.logger.Info().Int64("user_id", created.ID).Str("role", string(created.Role)).Msg("User registered successfully")

	return &models.AuthResponse{
		User:    created,
		Access:  pair.Access,
		Refresh: pair.Refresh,
		Message: msgRegistered,
	}, nil
}

// Login answers every credential failure with ErrAuthentication so callers
// cannot tell an unknown email from a wrong password or an inactive account.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	req.Email = models.NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.hasher.VerifyDummy(ctx, req.Password)
		return nil, apperrors.ErrAuthentication
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify(ctx, req.Password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok || !user.IsActive {
		s.logger.Info().Int64("user_id", user.ID).Msg("Failed login attempt")
		return nil, apperrors.ErrAuthentication
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, req.Password)
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("Error updating last login")
	} else {
		user.LastLogin = &now
	}

	pair, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, user.ID, models.AuditLogin, "")
	s.logger.Info().Int64("user_id", user.ID).Msg("User logged in")

	return &models.AuthResponse{
		User:    user,
		Access:  pair.Access,
		Refresh: pair.Refresh,
		Message: msgLoggedIn,
	}, nil
}

// Logout revokes the caller's refresh token. Any problem with the token,
// including a second logout with the same token, is a *TokenError.
func (s *AuthService) Logout(ctx context.Context, actor permission.Identity, req *models.RefreshRequest) error {
	if strings.TrimSpace(req.Refresh) == "" {
		return apperrors.ErrTokenInvalid
	}
	if err := s.tokens.Revoke(ctx, req.Refresh, actor.UserID); err != nil {
		if apperrors.IsTokenError(err) {
			s.logger.Info().Err(err).Int64("user_id", actor.UserID).Msg("Logout with unusable refresh token")
		}
		return err
	}

	s.audit.Record(ctx, actor.UserID, models.AuditLogout, "")
	s.logger.Info().Int64("user_id", actor.UserID).Msg("User logged out")
	return nil
}

// Refresh mints a new access token from an active refresh token.
func (s *AuthService) Refresh(ctx context.Context, req *models.RefreshRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	claims, err := s.tokens.ValidateRefresh(ctx, req.Refresh)
	if err != nil {
		return "", err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", apperrors.ErrTokenInvalid
	}
	if err != nil {
		return "", err
	}
	if !user.IsActive {
		return "", apperrors.ErrTokenInvalid
	}
	return s.tokens.IssueAccess(user, claims.ID)
}

func (s *AuthService) ChangePassword(ctx context.Context, actor permission.Identity, req *models.ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(ctx, req.OldPassword, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewValidationError("old_password", msgWrongOldPassword)
	}

	if err := s.setPassword(ctx, user.ID, req.NewPassword); err != nil {
		return err
	}

	s.audit.Record(ctx, user.ID, models.AuditPasswordChange, "")
	s.logger.Info().Int64("user_id", user.ID).Msg("Password changed")
	return nil
}

// PasswordResetRequest never reports whether the email is known. Delivery
// problems are logged only.
func (s *AuthService) PasswordResetRequest(ctx context.Context, req *models.PasswordResetRequest) error {
	req.Email = models.NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error().Err(err).Msg("Error looking up user for password reset")
		}
		return nil
	}
	if !user.IsActive {
		return nil
	}

	token, err := s.tokens.IssueResetToken(user)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("Error issuing password reset token")
		return nil
	}

	msg := models.PasswordResetEmail{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.FullName(),
		UIDB64: EncodeUID(user.ID),
		Token:  token,
	}
	if err := s.notifier.NotifyPasswordReset(ctx, msg); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("Error dispatching password reset email")
		return nil
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("Password reset requested")
	return nil
}

func (s *AuthService) PasswordResetConfirm(ctx context.Context, req *models.PasswordResetConfirmRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	id, err := DecodeUID(req.UIDB64)
	if err != nil {
		return apperrors.ErrResetTokenInvalid
	}
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.ErrResetTokenInvalid
	}
	if err != nil {
		return err
	}
	if err := s.tokens.ValidateResetToken(req.Token, user); err != nil {
		return err
	}

	if err := s.setPassword(ctx, user.ID, req.NewPassword); err != nil {
		return err
	}

	s.audit.Record(ctx, user.ID, models.AuditPasswordReset, "")
	s.logger.Info().Int64("user_id", user.ID).Msg("Password reset completed")
	return nil
}

// setPassword stores a new digest and ends every session of the user.
func (s *AuthService) setPassword(ctx context.Context, userID int64, plaintext string) error {
	hash, err := s.hasher.Hash(ctx, plaintext)
	if err != nil {
		return err
	}
	return s.tokens.EndSessions(ctx, userID, func() error {
		if err := s.users.SetPassword(ctx, userID, hash); err != nil {
			s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error storing password")
			return fmt.Errorf("failed to store password: %w", err)
		}
		return nil
	})
}

func (s *AuthService) rehash(ctx context.Context, userID int64, plaintext string) {
	hash, err := s.hasher.Hash(ctx, plaintext)
	if err == nil {
		err = s.users.SetPassword(ctx, userID, hash)
	}
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Error upgrading password digest")
	}
}

// EncodeUID encodes a user id for a reset link.
func EncodeUID(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

func DecodeUID(uid string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(uid, "="))
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid uid")
	}
	return id, nil
}
