package repository

import (
	"context"
	"database/sql"
	"time"

	"account-service/internal/models"
)

type SQLAuditRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLAuditRepository(db *sql.DB, dialect Dialect) *SQLAuditRepository {
	return &SQLAuditRepository{db: db, dialect: dialect}
}

func (r *SQLAuditRepository) Record(ctx context.Context, entry models.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		r.dialect.Rebind("INSERT INTO audit_logs (entity_type, entity_id, action, details, created_at) VALUES (?, ?, ?, ?, ?)"),
		entry.EntityType, entry.EntityID, entry.Action, entry.Details, entry.CreatedAt,
	)
	if err != nil {
		return unavailable(err)
	}
	return nil
}
