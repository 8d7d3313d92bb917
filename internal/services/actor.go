package services

import "github.com/saldanamusic/splitsheets/internal/models"

// UnknownIP is recorded when a signer's address is unavailable.
const UnknownIP = "0.0.0.0"

// Actor is the authenticated user performing an operation, plus the request
// metadata stamped onto signatures and audit rows.
type Actor struct {
	UserID    string
	Email     string
	Name      string
	IP        string
	UserAgent string
}

// ActorFor builds an Actor from a user record.
func ActorFor(user *models.User, ip, userAgent string) Actor {
	return Actor{
		UserID:    user.ID,
		Email:     models.NormalizeEmail(user.Email),
		Name:      user.Name,
		IP:        ip,
		UserAgent: userAgent,
	}
}

// DisplayName prefers the user's name and falls back to the email.
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}
