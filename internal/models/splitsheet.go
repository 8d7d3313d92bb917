package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SheetStatus is the lifecycle state of a split sheet.
type SheetStatus string

const (
	StatusDraft             SheetStatus = "DRAFT"
	StatusPendingSignatures SheetStatus = "PENDING_SIGNATURES"
	StatusCompleted         SheetStatus = "COMPLETED"
)

// rank orders statuses so transitions can be checked for monotonic progress.
func (s SheetStatus) rank() int {
	switch s {
	case StatusDraft:
		return 0
	case StatusPendingSignatures:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether next is the single allowed successor of s.
func (s SheetStatus) CanTransitionTo(next SheetStatus) bool {
	return s.rank() >= 0 && next.rank() == s.rank()+1
}

// CollaboratorRole is the capacity in which a party holds rights on a song.
type CollaboratorRole string

const (
	RoleSongwriter  CollaboratorRole = "SONGWRITER"
	RoleProducer    CollaboratorRole = "PRODUCER"
	RolePublisher   CollaboratorRole = "PUBLISHER"
	RoleMasterOwner CollaboratorRole = "MASTER_OWNER"
)

// Valid reports whether r is a known role.
func (r CollaboratorRole) Valid() bool {
	switch r {
	case RoleSongwriter, RoleProducer, RolePublisher, RoleMasterOwner:
		return true
	}
	return false
}

// SplitSheet records ownership percentages of a song among its collaborators.
type SplitSheet struct {
	ID            string         `gorm:"type:char(36);primaryKey" json:"id"`
	Title         string         `gorm:"size:255;not null" json:"title"`
	Label         string         `gorm:"size:255" json:"label,omitempty"`
	Studio        string         `gorm:"size:255" json:"studio,omitempty"`
	ProducerName  string         `gorm:"size:255" json:"producerName,omitempty"`
	Status        SheetStatus    `gorm:"type:varchar(32);not null;index" json:"status"`
	OwnerID       string         `gorm:"type:char(36);not null;index" json:"ownerId"`
	Owner         *User          `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	DocumentHash  *string        `gorm:"size:64" json:"documentHash,omitempty"`
	InviteToken   *string        `gorm:"size:64;uniqueIndex" json:"-"`
	FinalizedAt   *time.Time     `json:"finalizedAt,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Collaborators []Collaborator `gorm:"foreignKey:SplitSheetID;constraint:OnDelete:CASCADE" json:"collaborators"`
}

// TableName overrides the table name for SplitSheet
func (SplitSheet) TableName() string {
	return "split_sheets"
}

// BeforeCreate assigns an ID.
func (s *SplitSheet) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// FindCollaborator returns the collaborator row for email, or nil.
func (s *SplitSheet) FindCollaborator(email string) *Collaborator {
	email = NormalizeEmail(email)
	for i := range s.Collaborators {
		if s.Collaborators[i].Email == email {
			return &s.Collaborators[i]
		}
	}
	return nil
}

// AllSigned reports whether every collaborator has signed. A sheet with no
// collaborators is never fully signed.
func (s *SplitSheet) AllSigned() bool {
	if len(s.Collaborators) == 0 {
		return false
	}
	for _, c := range s.Collaborators {
		if !c.HasSigned {
			return false
		}
	}
	return true
}

// PercentageTotal sums the collaborator percentages.
func (s *SplitSheet) PercentageTotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range s.Collaborators {
		total = total.Add(c.Percentage)
	}
	return total
}

// Collaborator is one party on a split sheet.
type Collaborator struct {
	ID                  string           `gorm:"type:char(36);primaryKey" json:"id"`
	SplitSheetID        string           `gorm:"type:char(36);not null;index:idx_collaborators_sheet_email,unique" json:"splitSheetId"`
	Position            int              `gorm:"not null;default:0" json:"position"`
	Email               string           `gorm:"size:255;not null;index:idx_collaborators_sheet_email,unique;index:idx_collaborators_email" json:"email"`
	LegalName           string           `gorm:"size:255" json:"legalName,omitempty"`
	Phone               string           `gorm:"size:64" json:"phone,omitempty"`
	Address             string           `gorm:"size:512" json:"address,omitempty"`
	TaxID               string           `gorm:"size:64" json:"taxId,omitempty"`
	PRO                 string           `gorm:"column:pro;size:64" json:"pro,omitempty"`
	IPI                 string           `gorm:"column:ipi;size:64" json:"ipi,omitempty"`
	PublishingCompany   string           `gorm:"size:255" json:"publishingCompany,omitempty"`
	Role                CollaboratorRole `gorm:"type:varchar(32);not null" json:"role"`
	Percentage          decimal.Decimal  `gorm:"type:decimal(5,2);not null" json:"percentage"`
	HasSigned           bool             `gorm:"not null;default:false" json:"hasSigned"`
	SignedAt            *time.Time       `json:"signedAt,omitempty"`
	IPAddress           string           `gorm:"size:64" json:"ipAddress,omitempty"`
	UserAgent           string           `gorm:"size:512" json:"userAgent,omitempty"`
	SignatureHash       string           `gorm:"size:64" json:"signatureHash,omitempty"`
	IdentityDocumentRef string           `gorm:"size:255" json:"identityDocumentRef,omitempty"`
	UserID              *string          `gorm:"type:char(36);index" json:"userId,omitempty"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

// TableName overrides the table name for Collaborator
func (Collaborator) TableName() string {
	return "collaborators"
}

// BeforeCreate assigns an ID and normalizes the email.
func (c *Collaborator) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Email = NormalizeEmail(c.Email)
	if c.Role == "" {
		c.Role = RoleSongwriter
	}
	return nil
}

// DisplayName prefers the legal name and falls back to the email.
func (c *Collaborator) DisplayName() string {
	if c.LegalName != "" {
		return c.LegalName
	}
	return c.Email
}
