package services

import (
	"context"
	"time"

	"account-service/internal/models"
	"account-service/internal/repository"

	"github.com/rs/zerolog"
)

const auditEntityUser = "user"

// AuditService writes account events to the audit trail. A failed write is
// logged and never fails the operation being audited.
type AuditService struct {
	repo   repository.AuditRepository
	logger zerolog.Logger
}

func NewAuditService(repo repository.AuditRepository, logger zerolog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
	}
}

func (s *AuditService) Record(ctx context.Context, userID int64, action models.AuditAction, details string) {
	entry := models.AuditLog{
		EntityType: auditEntityUser,
		EntityID:   userID,
		Action:     string(action),
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("action", entry.Action).Msg("Error recording audit log")
	}
}
