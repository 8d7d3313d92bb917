package services

import (
	"context"

	"github.com/saldanamusic/splitsheets/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContactService maintains each owner's address book.
type ContactService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewContactService creates a contact service.
func NewContactService(db *gorm.DB, log *zap.Logger) *ContactService {
	return &ContactService{db: db, log: log.Named("contacts")}
}

// Sync upserts the collaborator into ownerID's contacts. Non-empty fields
// from the collaborator overwrite the stored contact. Best-effort.
func (s *ContactService) Sync(ctx context.Context, ownerID string, c *models.Collaborator) {
	contact := &models.Contact{
		OwnerID: ownerID,
		Email:   c.Email,
		Name:    c.LegalName,
		Phone:   c.Phone,
		Role:    models.ContactRoleFor(c.Role),
		PRO:     c.PRO,
		IPI:     c.IPI,
	}

	updates := []string{"role", "updated_at"}
	for column, value := range map[string]string{"name": c.LegalName, "phone": c.Phone, "pro": c.PRO, "ipi": c.IPI} {
		if value != "" {
			updates = append(updates, column)
		}
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "email"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(contact).Error
	if err != nil {
		s.log.Warn("failed to sync contact",
			zap.String("owner_id", ownerID), zap.String("email", c.Email), zap.Error(err))
	}
}

// List returns ownerID's contacts ordered by name then email.
func (s *ContactService) List(ctx context.Context, ownerID string) ([]models.Contact, error) {
	var contacts []models.Contact
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("name ASC, email ASC").
		Find(&contacts).Error
	return contacts, err
}
