package models

import "time"

// NotificationKind names one of the outbound email messages.
type NotificationKind string

const (
	NotifyWelcome          NotificationKind = "WELCOME"
	NotifySignatureRequest NotificationKind = "SIGNATURE_REQUEST"
	NotifyPasswordReset    NotificationKind = "PASSWORD_RESET"
	NotifyCompletion       NotificationKind = "COMPLETION"
	NotifyInvite           NotificationKind = "INVITE"
)

// NotificationStatus is the delivery state of an outbox row.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
)

// Notification is an outbox row: an email queued by a lifecycle transition and
// delivered by the dispatcher worker, retried independently of the request.
type Notification struct {
	ID            uint64             `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind          NotificationKind   `gorm:"type:varchar(32);not null;index" json:"kind"`
	Recipient     string             `gorm:"size:255;not null" json:"recipient"`
	Payload       JSON               `json:"payload"`
	Status        NotificationStatus `gorm:"type:varchar(16);not null;index:idx_notifications_due" json:"status"`
	Attempts      int                `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time          `gorm:"not null;index:idx_notifications_due" json:"nextAttemptAt"`
	LastError     string             `gorm:"size:1024" json:"lastError,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	SentAt        *time.Time         `json:"sentAt,omitempty"`
}

// TableName overrides the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}
