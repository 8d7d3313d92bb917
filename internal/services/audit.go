package services

import (
	"context"

	"github.com/saldanamusic/splitsheets/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxAuditLogs caps a single audit log listing.
const MaxAuditLogs = 100

// AuditService records user actions. Writes are best-effort: a failure is
// logged and never returned to the caller.
type AuditService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewAuditService creates an audit service.
func NewAuditService(db *gorm.DB, log *zap.Logger) *AuditService {
	return &AuditService{db: db, log: log.Named("audit")}
}

// Record writes an audit row.
func (s *AuditService) Record(ctx context.Context, actor Actor, action, entityType, entityID string, details map[string]interface{}) {
	entry := &models.AuditLog{
		UserID:     actor.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    models.NewJSON(details),
		IP:         actor.IP,
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.String("user_id", actor.UserID),
			zap.Error(err))
		return
	}

	s.log.Info("audit",
		zap.String("action", action),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID),
		zap.String("user_id", actor.UserID))
}

// List returns the user's most recent audit rows, newest first. limit is
// clamped to [1, MaxAuditLogs].
func (s *AuditService) List(ctx context.Context, userID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > MaxAuditLogs {
		limit = MaxAuditLogs
	}

	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
