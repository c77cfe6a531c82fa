package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"account-service/internal/apperrors"
	"account-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
	TokenReset   TokenType = "reset"
)

type Claims struct {
	UserID      int64     `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	Role        string    `json:"role,omitempty"`
	TokenType   TokenType `json:"token_type"`
	SessionID   string    `json:"sid,omitempty"`
	Fingerprint string    `json:"fp,omitempty"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	Access  string
	Refresh string
}

type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
}

// TokenService issues and checks signed tokens. Refresh tokens move from
// active to expired or revoked, and revoked is final: an access token is only
// accepted while the refresh token it was minted from is not revoked.
type TokenService struct {
	secretKey  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	ledger     RevocationLedger
	logger     zerolog.Logger
	now        func() time.Time
}

func NewTokenService(cfg TokenConfig, ledger RevocationLedger, logger zerolog.Logger) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: signing key not configured", apperrors.ErrUnavailable)
	}
	return &TokenService{
		secretKey:  []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		resetTTL:   cfg.ResetTTL,
		ledger:     ledger,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Issue mints a refresh token, registers it as outstanding and mints an
// access token bound to it.
func (s *TokenService) Issue(ctx context.Context, user *models.User) (*TokenPair, error) {
	now := s.now()
	refreshID := uuid.NewString()
	refreshExp := now.Add(s.refreshTTL)

	refresh, err := s.sign(&Claims{
		UserID:    user.ID,
		TokenType: TokenRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        refreshID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Track(ctx, user.ID, refreshID, refreshExp); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("Error tracking refresh token")
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
	}

	access, err := s.IssueAccess(user, refreshID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// IssueAccess mints an access token for the session identified by sessionID.
func (s *TokenService) IssueAccess(user *models.User, sessionID string) (string, error) {
	now := s.now()
	return s.sign(&Claims{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		TokenType: TokenAccess,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	})
}

func (s *TokenService) ValidateAccess(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, TokenAccess)
	if err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, apperrors.ErrTokenInvalid
	}
	revoked, err := s.ledger.IsRevoked(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
	}
	if revoked {
		return nil, apperrors.ErrTokenRevoked
	}
	return claims, nil
}

// ValidateRefresh accepts only a refresh token that is neither expired nor
// revoked.
func (s *TokenService) ValidateRefresh(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, TokenRefresh)
	if err != nil {
		return nil, err
	}
	revoked, err := s.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
	}
	if revoked {
		return nil, apperrors.ErrTokenRevoked
	}
	return claims, nil
}

// Revoke revokes a refresh token belonging to userID. Revoking twice yields
// ErrTokenRevoked.
func (s *TokenService) Revoke(ctx context.Context, tokenString string, userID int64) error {
	claims, err := s.parse(tokenString, TokenRefresh)
	if err != nil {
		return err
	}
	if claims.UserID != userID {
		s.logger.Warn().Int64("user_id", userID).Int64("token_user_id", claims.UserID).Msg("Attempt to revoke foreign refresh token")
		return apperrors.ErrTokenInvalid
	}

	ok, err := s.ledger.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
	}
	if !ok {
		return apperrors.ErrTokenRevoked
	}
	if err := s.ledger.Untrack(ctx, userID, claims.ID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Error untracking revoked token")
	}
	return nil
}

func (s *TokenService) RevokeAll(ctx context.Context, userID int64) error {
	n, err := s.ledger.RevokeAll(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
	}
	s.logger.Info().Int64("user_id", userID).Int("revoked", n).Msg("Revoked outstanding refresh tokens")
	return nil
}

// EndSessions revokes every session of userID, runs apply, then sweeps again
// for sessions opened while apply ran. Nothing is applied when the first
// sweep fails.
func (s *TokenService) EndSessions(ctx context.Context, userID int64, apply func() error) error {
	if err := s.RevokeAll(ctx, userID); err != nil {
		return err
	}
	if err := apply(); err != nil {
		return err
	}
	if err := s.RevokeAll(ctx, userID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Change applied but second revocation sweep failed")
		return fmt.Errorf("change applied, sessions opened meanwhile may remain: %w", err)
	}
	return nil
}

// IssueResetToken mints a password reset token bound to the user's current
// password digest, so it stops working once the password changes.
func (s *TokenService) IssueResetToken(user *models.User) (string, error) {
	now := s.now()
	return s.sign(&Claims{
		UserID:      user.ID,
		TokenType:   TokenReset,
		Fingerprint: passwordFingerprint(user.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.resetTTL)),
		},
	})
}

func (s *TokenService) ValidateResetToken(tokenString string, user *models.User) error {
	claims, err := s.parse(tokenString, TokenReset)
	if err != nil {
		return apperrors.ErrResetTokenInvalid
	}
	if claims.UserID != user.ID || claims.Fingerprint != passwordFingerprint(user.PasswordHash) {
		return apperrors.ErrResetTokenInvalid
	}
	return nil
}

func (s *TokenService) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.Error().Err(err).Str("token_type", string(claims.TokenType)).Msg("Error signing token")
		return "", fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
	}
	return tokenString, nil
}

func (s *TokenService) parse(tokenString string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		s.logger.Debug().Err(err).Msg("Rejected token")
		return nil, apperrors.ErrTokenInvalid
	}
	if !token.Valid || claims.TokenType != want || claims.ID == "" || claims.UserID == 0 {
		return nil, apperrors.ErrTokenInvalid
	}
	return claims, nil
}

func passwordFingerprint(digest string) string {
	sum := sha256.Sum256([]byte(digest))
	return hex.EncodeToString(sum[:8])
}
