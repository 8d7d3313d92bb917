package models

import "time"

// Audit actions.
const (
	ActionSheetCreated        = "SPLIT_SHEET_CREATED"
	ActionSheetDeleted        = "SPLIT_SHEET_DELETED"
	ActionSignaturesStarted   = "SIGNATURES_STARTED"
	ActionSheetSigned         = "SPLIT_SHEET_SIGNED"
	ActionSheetCompleted      = "SPLIT_SHEET_COMPLETED"
	ActionInviteGenerated     = "INVITE_GENERATED"
	ActionJoinedViaInvite     = "JOINED_VIA_INVITE"
	ActionCollaboratorAdded   = "COLLABORATOR_ADDED"
	ActionCollaboratorRemoved = "COLLABORATOR_REMOVED"
	ActionCollaboratorUpdated = "COLLABORATOR_UPDATED"
	ActionPasswordReset       = "PASSWORD_RESET"
)

// AuditLog is an append-only record of an action taken by a user.
type AuditLog struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     string    `gorm:"type:char(36);not null;index" json:"userId"`
	Action     string    `gorm:"size:64;not null;index" json:"action"`
	EntityType string    `gorm:"size:64;not null" json:"entityType"`
	EntityID   string    `gorm:"size:64;index" json:"entityId"`
	Details    JSON      `json:"details"`
	IP         string    `gorm:"size:64" json:"ip,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// TableName overrides the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}
