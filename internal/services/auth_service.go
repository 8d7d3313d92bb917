package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/saldanamusic/splitsheets/internal/auth"
	"github.com/saldanamusic/splitsheets/internal/mailer"
	"github.com/saldanamusic/splitsheets/internal/models"
	"github.com/saldanamusic/splitsheets/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// OTPMaxAttempts is the number of wrong codes tolerated before a code is discarded.
	OTPMaxAttempts = 5

	// otpSweepThreshold is the row count above which issuing a code first
	// purges expired ones.
	otpSweepThreshold = 1000
)

var (
	ErrInvalidCredentials = types.Unauthorized("Invalid email or password")
	ErrInvalidCode        = types.Unauthorized("Invalid or expired code")
)

// AuthResult is returned by register and login.
type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// AuthService manages accounts, bearer tokens and password reset codes.
type AuthService struct {
	db       *gorm.DB
	log      *zap.Logger
	jwt      *auth.JWTManager
	notifier *Notifier
	audit    *AuditService
	otpTTL   time.Duration
	now      func() time.Time
}

// NewAuthService creates an auth service.
func NewAuthService(db *gorm.DB, log *zap.Logger, jwt *auth.JWTManager, notifier *Notifier, audit *AuditService, otpTTL time.Duration) *AuthService {
	return &AuthService{
		db:       db,
		log:      log.Named("auth"),
		jwt:      jwt,
		notifier: notifier,
		audit:    audit,
		otpTTL:   otpTTL,
		now:      time.Now,
	}
}

func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

// Register creates an account and returns it with a token. Existing
// collaborator rows for the email are linked to the new account.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = models.NormalizeEmail(email)
	if !validEmail(email) {
		return nil, types.BadRequest("A valid email address is required")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, types.BadRequest("Password must be at least %d characters", auth.MinPasswordLength)
		}
		return nil, err
	}

	user := &models.User{Email: email, Name: strings.TrimSpace(name), PasswordHash: hash}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return types.Conflict("An account already exists for %s", email)
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Model(&models.Collaborator{}).
			Where("email = ? AND user_id IS NULL", email).
			Update("user_id", user.ID).Error
	})
	if err != nil {
		return nil, err
	}

	token, err := s.jwt.Generate(user)
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// Login checks credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.Generate(&user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: &user, Token: token}, nil
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return nil, types.Unauthorized("Invalid or expired token")
	}
	user, err := s.User(ctx, claims.UserID)
	if err != nil {
		var ce *types.CustomError
		if errors.As(err, &ce) && ce.Type == types.TypeNotFound {
			return nil, types.Unauthorized("Account no longer exists")
		}
		return nil, err
	}
	return user, nil
}

// User loads an account by id.
func (s *AuthService) User(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("User not found")
		}
		return nil, err
	}
	return &user, nil
}

// RequestOTP issues a password reset code for email and queues it for
// delivery. Unknown addresses succeed silently so accounts cannot be probed.
func (s *AuthService) RequestOTP(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Select("id", "name").Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Debug("otp requested for unknown email")
			return nil
		}
		return err
	}

	var count int64
	if err := db.Model(&models.OTPCode{}).Count(&count).Error; err != nil {
		return err
	}
	if count > otpSweepThreshold {
		if _, err := s.SweepOTP(ctx); err != nil {
			s.log.Warn("failed to sweep expired codes", zap.Error(err))
		}
	}

	code, hash, err := auth.NewOTP()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	row := &models.OTPCode{
		Email:     email,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.otpTTL),
		CreatedAt: now,
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"code_hash", "expires_at", "attempts", "created_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to store code: %w", err)
	}

	s.notifier.Enqueue(ctx, models.NotifyPasswordReset, email, mailer.MessageData{
		RecipientName: user.Name,
		Code:          code,
		ExpiresIn:     humanDuration(s.otpTTL),
	})
	return nil
}

func humanDuration(d time.Duration) string {
	if m := int(d.Round(time.Minute) / time.Minute); m > 1 {
		return fmt.Sprintf("%d minutes", m)
	}
	return "1 minute"
}

// VerifyOTP resets the password for email when code matches. A code is
// single use and is discarded after OTPMaxAttempts wrong guesses or expiry.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code, newPassword string) error {
	email = models.NormalizeEmail(email)
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return types.BadRequest("Password must be at least %d characters", auth.MinPasswordLength)
		}
		return err
	}

	var (
		verifyErr error
		userID    string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var otp models.OTPCode
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("email = ?", email).First(&otp).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				verifyErr = ErrInvalidCode
				return nil
			}
			return err
		}

		if otp.Expired(s.now()) || otp.Attempts >= OTPMaxAttempts {
			verifyErr = ErrInvalidCode
			return tx.Delete(&otp).Error
		}

		if !auth.CheckPassword(otp.CodeHash, strings.TrimSpace(code)) {
			verifyErr = ErrInvalidCode
			if otp.Attempts+1 >= OTPMaxAttempts {
				return tx.Delete(&otp).Error
			}
			return tx.Model(&otp).Update("attempts", gorm.Expr("attempts + 1")).Error
		}

		var user models.User
		if err := tx.Select("id").Where("email = ?", email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				verifyErr = ErrInvalidCode
				return tx.Delete(&otp).Error
			}
			return err
		}
		userID = user.ID

		if err := tx.Model(&user).Update("password_hash", hash).Error; err != nil {
			return err
		}
		return tx.Delete(&otp).Error
	})
	if err != nil {
		return err
	}
	if verifyErr != nil {
		return verifyErr
	}

	s.audit.Record(ctx, Actor{UserID: userID, Email: email}, models.ActionPasswordReset, "User", userID, nil)
	return nil
}

// SweepOTP deletes expired codes and reports how many were removed.
func (s *AuthService) SweepOTP(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", s.now().UTC()).Delete(&models.OTPCode{})
	return result.RowsAffected, result.Error
}
