package models

import "time"

type AuditLog struct {
	ID         int64     `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	Action     string    `json:"action"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

type AuditAction string

const (
	AuditRegister       AuditAction = "user.register"
	AuditLogin          AuditAction = "user.login"
	AuditLogout         AuditAction = "user.logout"
	AuditPasswordChange AuditAction = "user.password_change"
	AuditPasswordReset  AuditAction = "user.password_reset"
	AuditUpdate         AuditAction = "user.update"
	AuditDelete         AuditAction = "user.delete"
)
