package services

import (
	"context"
	"errors"
	"fmt"

	"account-service/internal/apperrors"
	"account-service/internal/models"
	"account-service/internal/permission"
	"account-service/internal/repository"

	"github.com/rs/zerolog"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// UserService serves profile self-service and user administration.
type UserService struct {
	users  repository.UserRepository
	tokens *TokenService
	audit  *AuditService
	logger zerolog.Logger
}

func NewUserService(users repository.UserRepository, tokens *TokenService, audit *AuditService, logger zerolog.Logger) *UserService {
	return &UserService{
		users:  users,
		tokens: tokens,
		audit:  audit,
		logger: logger,
	}
}

func (s *UserService) Me(ctx context.Context, actor permission.Identity) (*models.User, error) {
	if !permission.Allowed(&actor, permission.ActionMe, nil) {
		return nil, apperrors.ErrForbidden
	}
	return s.users.FindByID(ctx, actor.UserID)
}

func (s *UserService) GetProfile(ctx context.Context, actor permission.Identity) (*models.User, error) {
	if !permission.Allowed(&actor, permission.ActionProfileView, &permission.Resource{OwnerID: actor.UserID}) {
		return nil, apperrors.ErrForbidden
	}
	return s.users.FindByID(ctx, actor.UserID)
}

// UpdateProfile applies the owner-editable fields to the caller's account and
// profile. Email and role cannot be changed here.
func (s *UserService) UpdateProfile(ctx context.Context, actor permission.Identity, req *models.UpdateProfileRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !permission.Allowed(&actor, permission.ActionProfileUpdate, &permission.Resource{OwnerID: actor.UserID}) {
		return nil, apperrors.ErrForbidden
	}

	var profile *models.ProfileUpdate
	if req.Profile != nil {
		upd := req.Profile.ToUpdate()
		profile = &upd
	}

	user, err := s.users.Update(ctx, actor.UserID, models.AdminUserUpdate{UserUpdate: req.ToUpdate()}, profile)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, user.ID, models.AuditUpdate, "profile")
	s.logger.Info().Int64("user_id", user.ID).Msg("Profile updated")
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, actor permission.Identity, page, pageSize int) (*models.UserPage, error) {
	if !permission.Allowed(&actor, permission.ActionUserList, nil) {
		return nil, apperrors.ErrForbidden
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	users, total, err := s.users.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing users")
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return &models.UserPage{
		Count:    total,
		Page:     page,
		PageSize: pageSize,
		Results:  users,
	}, nil
}

func (s *UserService) GetUser(ctx context.Context, actor permission.Identity, id int64) (*models.User, error) {
	if !permission.Allowed(&actor, permission.ActionUserView, nil) {
		return nil, apperrors.ErrForbidden
	}
	return s.users.FindByID(ctx, id)
}

func (s *UserService) UpdateUser(ctx context.Context, actor permission.Identity, id int64, req *models.AdminUpdateUserRequest) (*models.User, error) {
	if !permission.Allowed(&actor, permission.ActionUserEdit, nil) {
		return nil, apperrors.ErrForbidden
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var profile *models.ProfileUpdate
	if req.Profile != nil {
		upd := req.Profile.ToUpdate()
		profile = &upd
	}

	upd := req.ToUpdate()
	current, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var user *models.User
	apply := func() error {
		var err error
		user, err = s.users.Update(ctx, id, upd, profile)
		return err
	}

	// Access tokens carry the role, so a role change or deactivation must
	// end the user's sessions.
	if endsSessions(current, upd) {
		err = s.tokens.EndSessions(ctx, id, apply)
	} else {
		err = apply()
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrUnavailable) {
			s.logger.Error().Err(err).Int64("user_id", id).Msg("Error ending sessions of updated user")
		}
		return nil, err
	}

	s.audit.Record(ctx, id, models.AuditUpdate, fmt.Sprintf("by admin %d", actor.UserID))
	s.logger.Info().Int64("user_id", id).Int64("admin_id", actor.UserID).Msg("User updated by admin")
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, actor permission.Identity, id int64) error {
	if !permission.Allowed(&actor, permission.ActionUserDelete, nil) {
		return apperrors.ErrForbidden
	}
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return err
	}
	err := s.tokens.EndSessions(ctx, id, func() error {
		return s.users.Delete(ctx, id)
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error().Err(err).Int64("user_id", id).Msg("Error deleting user")
		}
		return err
	}

	s.audit.Record(ctx, id, models.AuditDelete, fmt.Sprintf("by admin %d", actor.UserID))
	s.logger.Info().Int64("user_id", id).Int64("admin_id", actor.UserID).Msg("User deleted")
	return nil
}

func endsSessions(current *models.User, upd models.AdminUserUpdate) bool {
	if upd.IsActive != nil && !*upd.IsActive {
		return true
	}
	return upd.Role != nil && *upd.Role != current.Role
}
