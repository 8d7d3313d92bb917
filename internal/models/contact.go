package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContactRole classifies an address-book entry.
type ContactRole string

const (
	ContactSongwriter  ContactRole = "SONGWRITER"
	ContactProducer    ContactRole = "PRODUCER"
	ContactPublisher   ContactRole = "PUBLISHER"
	ContactMasterOwner ContactRole = "MASTER_OWNER"
	ContactOther       ContactRole = "OTHER"
)

// ContactRoleFor maps a collaborator role onto the contact book, defaulting to OTHER.
func ContactRoleFor(role CollaboratorRole) ContactRole {
	switch role {
	case RoleSongwriter:
		return ContactSongwriter
	case RoleProducer:
		return ContactProducer
	case RolePublisher:
		return ContactPublisher
	case RoleMasterOwner:
		return ContactMasterOwner
	}
	return ContactOther
}

// Contact is an entry in an owner's address book, filled from the collaborators they work with.
type Contact struct {
	ID        string      `gorm:"type:char(36);primaryKey" json:"id"`
	OwnerID   string      `gorm:"type:char(36);not null;index:idx_contacts_owner_email,unique" json:"ownerId"`
	Email     string      `gorm:"size:255;not null;index:idx_contacts_owner_email,unique" json:"email"`
	Name      string      `gorm:"size:255" json:"name,omitempty"`
	Phone     string      `gorm:"size:64" json:"phone,omitempty"`
	Role      ContactRole `gorm:"type:varchar(32);not null" json:"role"`
	PRO       string      `gorm:"column:pro;size:64" json:"pro,omitempty"`
	IPI       string      `gorm:"column:ipi;size:64" json:"ipi,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// TableName overrides the table name for Contact
func (Contact) TableName() string {
	return "contacts"
}

// BeforeCreate assigns an ID.
func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Email = NormalizeEmail(c.Email)
	return nil
}
