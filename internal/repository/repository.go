// Package repository is the credential store: users, their profiles and the
// audit trail. Uniqueness of email and phone number is enforced by the store
// itself so concurrent registrations cannot both succeed.
package repository

import (
	"context"
	"time"

	"account-service/internal/models"
)

type UserRepository interface {
	// Create persists the user and its profile atomically and returns the
	// stored user. Duplicate email or phone yields *apperrors.ConflictError.
	Create(ctx context.Context, user *models.User, profile *models.Profile) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetPassword(ctx context.Context, id int64, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	// Update applies the whitelisted user fields and, when profile is not nil,
	// the profile fields in one transaction.
	Update(ctx context.Context, id int64, upd models.AdminUserUpdate, profile *models.ProfileUpdate) (*models.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*models.User, int, error)
	Ping(ctx context.Context) error
}

type AuditRepository interface {
	Record(ctx context.Context, entry models.AuditLog) error
}
