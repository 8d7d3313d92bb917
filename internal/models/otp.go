package models

import "time"

// OTPCode is a pending one-time password, keyed by email. It lives in the
// database so codes survive restarts and are shared between instances.
type OTPCode struct {
	Email     string    `gorm:"size:255;primaryKey"`
	CodeHash  string    `gorm:"size:255;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	Attempts  int       `gorm:"not null;default:0"`
	CreatedAt time.Time
}

// TableName overrides the table name for OTPCode
func (OTPCode) TableName() string {
	return "otp_codes"
}

// Expired reports whether the code is past its expiry at now.
func (o *OTPCode) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
