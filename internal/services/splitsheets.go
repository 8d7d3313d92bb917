// splitsheets.go
//
// Split sheet agreements with collaborative e-signatures for Saldaña Music
// Copyright (c) 2026 Saldaña Music LLC <legal@saldanamusic.com> (https://www.saldanamusic.com)
//
// This file is part of splitsheets.
// splitsheets is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// splitsheets is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with splitsheets.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Saldaña Music LLC <legal@saldanamusic.com> (https://www.saldanamusic.com)"
//    in this material, copies, or source code of derived works.

package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/saldanamusic/splitsheets/internal/document"
	"github.com/saldanamusic/splitsheets/internal/mailer"
	"github.com/saldanamusic/splitsheets/internal/metrics"
	"github.com/saldanamusic/splitsheets/internal/models"
	"github.com/saldanamusic/splitsheets/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/hints"
)

const entitySplitSheet = "SplitSheet"

var (
	hundred = decimal.NewFromInt(100)

	ErrSheetNotFound = types.NotFound("Split sheet not found")
	ErrNotOwner      = types.Forbidden("Only the owner of this split sheet can do that")
	ErrNoAccess      = types.Forbidden("You are not the owner or a collaborator on this split sheet")
	ErrInviteInvalid = types.NotFound("Invite link is invalid or has expired")
)

// CollaboratorInput describes a collaborator in create and add requests.
// Name is accepted as an alias for LegalName.
type CollaboratorInput struct {
	Email               string                  `json:"email"`
	Name                string                  `json:"name,omitempty"`
	LegalName           string                  `json:"legalName,omitempty"`
	Phone               string                  `json:"phone,omitempty"`
	Address             string                  `json:"address,omitempty"`
	TaxID               string                  `json:"taxId,omitempty"`
	PRO                 string                  `json:"pro,omitempty"`
	IPI                 string                  `json:"ipi,omitempty"`
	PublishingCompany   string                  `json:"publishingCompany,omitempty"`
	Role                models.CollaboratorRole `json:"role,omitempty"`
	Percentage          types.FlexDecimal       `json:"percentage" swaggertype:"number"`
	IdentityDocumentRef string                  `json:"identityDocumentRef,omitempty"`
}

// CreateInput is the body of a create request.
type CreateInput struct {
	Title         string                            `json:"title"`
	Label         string                            `json:"label,omitempty"`
	Studio        string                            `json:"studio,omitempty"`
	ProducerName  string                            `json:"producerName,omitempty"`
	Collaborators types.FlexList[CollaboratorInput] `json:"collaborators" swaggertype:"array,object"`
}

// SplitSheetService implements the split sheet lifecycle:
// DRAFT -> PENDING_SIGNATURES -> COMPLETED.
type SplitSheetService struct {
	db       *gorm.DB
	log      *zap.Logger
	renderer *document.Renderer
	notifier *Notifier
	audit    *AuditService
	contacts *ContactService
	baseURL  string
	now      func() time.Time
}

// NewSplitSheetService wires the lifecycle controller.
func NewSplitSheetService(db *gorm.DB, log *zap.Logger, renderer *document.Renderer, notifier *Notifier,
	audit *AuditService, contacts *ContactService, baseURL string) *SplitSheetService {
	return &SplitSheetService{
		db:       db,
		log:      log.Named("splitsheets"),
		renderer: renderer,
		notifier: notifier,
		audit:    audit,
		contacts: contacts,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		now:      time.Now,
	}
}

func (s *SplitSheetService) sheetURL(id string) string {
	return fmt.Sprintf("%s/split-sheets/%s", s.baseURL, id)
}

func orderedCollaborators(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, created_at ASC")
}

// load reads a sheet with its collaborators. With lock set the sheet row is
// selected FOR UPDATE, which serializes writers on the same sheet.
func load(tx *gorm.DB, id string, lock bool) (*models.SplitSheet, error) {
	q := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)})
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var sheet models.SplitSheet
	if err := q.Where("id = ?", id).First(&sheet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSheetNotFound
		}
		return nil, err
	}
	if err := orderedCollaborators(tx).Where("split_sheet_id = ?", id).Find(&sheet.Collaborators).Error; err != nil {
		return nil, err
	}
	return &sheet, nil
}

func canView(sheet *models.SplitSheet, actor Actor) bool {
	return sheet.OwnerID == actor.UserID || sheet.FindCollaborator(actor.Email) != nil
}

func validPercentage(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

// buildCollaborator validates in and converts it into a row.
func buildCollaborator(in CollaboratorInput, position int) (*models.Collaborator, error) {
	email := models.NormalizeEmail(in.Email)
	if email == "" {
		return nil, types.Conflict("Every collaborator must have an email address")
	}

	role := in.Role
	if role == "" {
		role = models.RoleSongwriter
	}
	if !role.Valid() {
		return nil, types.BadRequest("Invalid role %q for %s", in.Role, email)
	}

	pct := in.Percentage.Round(2)
	if !validPercentage(pct) {
		return nil, types.BadRequest("Percentage for %s must be between 0 and 100", email)
	}

	legalName := strings.TrimSpace(in.LegalName)
	if legalName == "" {
		legalName = strings.TrimSpace(in.Name)
	}

	return &models.Collaborator{
		Position:            position,
		Email:               email,
		LegalName:           legalName,
		Phone:               strings.TrimSpace(in.Phone),
		Address:             strings.TrimSpace(in.Address),
		TaxID:               strings.TrimSpace(in.TaxID),
		PRO:                 strings.TrimSpace(in.PRO),
		IPI:                 strings.TrimSpace(in.IPI),
		PublishingCompany:   strings.TrimSpace(in.PublishingCompany),
		Role:                role,
		Percentage:          pct,
		IdentityDocumentRef: strings.TrimSpace(in.IdentityDocumentRef),
	}, nil
}

// linkUsers sets UserID on collaborators whose email belongs to a registered user.
func linkUsers(tx *gorm.DB, collaborators []*models.Collaborator) error {
	if len(collaborators) == 0 {
		return nil
	}
	emails := make([]string, len(collaborators))
	for i, c := range collaborators {
		emails[i] = c.Email
	}

	var users []models.User
	if err := tx.Select("id", "email").Where("email IN ?", emails).Find(&users).Error; err != nil {
		return err
	}
	ids := make(map[string]string, len(users))
	for _, u := range users {
		ids[u.Email] = u.ID
	}
	for _, c := range collaborators {
		if id, ok := ids[c.Email]; ok {
			userID := id
			c.UserID = &userID
		}
	}
	return nil
}

// Create persists a new DRAFT sheet owned by actor.
func (s *SplitSheetService) Create(ctx context.Context, actor Actor, in CreateInput) (*models.SplitSheet, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, types.BadRequest("Title is required")
	}

	inputs := in.Collaborators.Slice()
	collaborators := make([]*models.Collaborator, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	total := decimal.Zero
	for i, ci := range inputs {
		c, err := buildCollaborator(ci, i)
		if err != nil {
			return nil, err
		}
		if seen[c.Email] {
			return nil, types.Conflict("Collaborator %s is listed more than once", c.Email)
		}
		seen[c.Email] = true
		total = total.Add(c.Percentage)
		collaborators = append(collaborators, c)
	}
	if len(collaborators) > 0 && !total.Equal(hundred) {
		return nil, types.Conflict("Collaborator percentages must total 100 (got %s)", total.StringFixed(2))
	}

	sheet := &models.SplitSheet{
		Title:        title,
		Label:        strings.TrimSpace(in.Label),
		Studio:       strings.TrimSpace(in.Studio),
		ProducerName: strings.TrimSpace(in.ProducerName),
		Status:       models.StatusDraft,
		OwnerID:      actor.UserID,
	}

	db := s.db.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := linkUsers(tx, collaborators); err != nil {
			return err
		}
		sheet.Collaborators = make([]models.Collaborator, len(collaborators))
		for i, c := range collaborators {
			sheet.Collaborators[i] = *c
		}
		return tx.Create(sheet).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create split sheet: %w", err)
	}

	metrics.SheetTransitions.WithLabelValues(string(models.StatusDraft)).Inc()

	s.audit.Record(ctx, actor, models.ActionSheetCreated, entitySplitSheet, sheet.ID, map[string]interface{}{
		"title":         sheet.Title,
		"collaborators": len(sheet.Collaborators),
	})
	s.notifier.Enqueue(ctx, models.NotifyWelcome, actor.Email, mailer.MessageData{
		RecipientName: actor.Name,
		SheetTitle:    sheet.Title,
		ActionURL:     s.sheetURL(sheet.ID),
	})
	for i := range sheet.Collaborators {
		if c := &sheet.Collaborators[i]; c.Email != actor.Email {
			s.contacts.Sync(ctx, actor.UserID, c)
		}
	}

	return sheet, nil
}

// Get returns a sheet visible to actor.
func (s *SplitSheetService) Get(ctx context.Context, actor Actor, id string) (*models.SplitSheet, error) {
	sheet, err := load(s.db.WithContext(ctx), id, false)
	if err != nil {
		return nil, err
	}
	if !canView(sheet, actor) {
		return nil, ErrNoAccess
	}
	return sheet, nil
}

// List returns sheets owned by actor or naming actor as a collaborator, newest first.
func (s *SplitSheetService) List(ctx context.Context, actor Actor) ([]models.SplitSheet, error) {
	db := s.db.WithContext(ctx)
	shared := db.Model(&models.Collaborator{}).Select("split_sheet_id").Where("email = ?", actor.Email)

	var sheets []models.SplitSheet
	err := db.Clauses(hints.CommentBefore("select", "list split sheets")).
		Preload("Collaborators", orderedCollaborators).
		Where("owner_id = ? OR id IN (?)", actor.UserID, shared).
		Order("created_at DESC").
		Find(&sheets).Error
	if err != nil {
		return nil, err
	}
	return sheets, nil
}

// StartSignatures moves a DRAFT sheet to PENDING_SIGNATURES and requests a
// signature from every unsigned collaborator other than actor. It returns the
// updated sheet and a status message.
func (s *SplitSheetService) StartSignatures(ctx context.Context, actor Actor, id string) (*models.SplitSheet, string, error) {
	var sheet *models.SplitSheet

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if sheet, err = load(tx, id, true); err != nil {
			return err
		}
		if sheet.OwnerID != actor.UserID {
			return ErrNotOwner
		}
		if !sheet.Status.CanTransitionTo(models.StatusPendingSignatures) {
			return types.Conflict("Signatures can only be started on a DRAFT split sheet (status is %s)", sheet.Status)
		}
		if len(sheet.Collaborators) == 0 {
			return types.Conflict("Add at least one collaborator before starting signatures")
		}
		if total := sheet.PercentageTotal(); !total.Equal(hundred) {
			return types.Conflict("Collaborator percentages must total 100 before starting signatures (got %s)", total.StringFixed(2))
		}

		result := tx.Model(&models.SplitSheet{}).
			Where("id = ? AND status = ?", id, models.StatusDraft).
			Update("status", models.StatusPendingSignatures)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return types.Conflict("Split sheet was modified concurrently, signatures already started")
		}
		sheet.Status = models.StatusPendingSignatures
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	metrics.SheetTransitions.WithLabelValues(string(models.StatusPendingSignatures)).Inc()

	sent := 0
	for _, c := range sheet.Collaborators {
		if c.HasSigned || c.Email == actor.Email {
			continue
		}
		s.notifier.Enqueue(ctx, models.NotifySignatureRequest, c.Email, mailer.MessageData{
			RecipientName: c.LegalName,
			SheetTitle:    sheet.Title,
			ActorName:     actor.DisplayName(),
			ActionURL:     s.sheetURL(sheet.ID),
		})
		sent++
	}

	s.audit.Record(ctx, actor, models.ActionSignaturesStarted, entitySplitSheet, sheet.ID, map[string]interface{}{
		"requests": sent,
	})

	return sheet, fmt.Sprintf("Signature requests sent to %d collaborator(s)", sent), nil
}

// signatureHash fingerprints a signature event.
func signatureHash(sheetID, email string, signedAt time.Time) string {
	sum := sha256.Sum256([]byte(sheetID + "|" + email + "|" + signedAt.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(sum[:])
}

// Sign records actor's signature. Signing twice is a no-op. The signature
// that leaves no collaborator unsigned completes the sheet: the finalized
// document is rendered and hashed in the same transaction, and the status
// write is conditional on PENDING_SIGNATURES so completion happens once.
func (s *SplitSheetService) Sign(ctx context.Context, actor Actor, id string) (*models.SplitSheet, error) {
	var (
		sheet     *models.SplitSheet
		signed    bool
		completed bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if sheet, err = load(tx, id, true); err != nil {
			return err
		}

		collab := sheet.FindCollaborator(actor.Email)
		if collab == nil {
			if sheet.OwnerID == actor.UserID {
				return types.Forbidden("Owners sign through their own collaborator entry; add yourself as a collaborator to sign")
			}
			return types.Forbidden("You are not a collaborator on this split sheet")
		}
		if sheet.Status == models.StatusDraft {
			return types.Conflict("Signatures have not been started for this split sheet")
		}
		if collab.HasSigned || sheet.Status == models.StatusCompleted {
			return nil
		}

		signedAt := s.now().UTC().Truncate(time.Second)
		ip := actor.IP
		if ip == "" {
			ip = UnknownIP
		}
		hash := signatureHash(sheet.ID, collab.Email, signedAt)

		result := tx.Model(&models.Collaborator{}).
			Where("id = ? AND has_signed = ?", collab.ID, false).
			Updates(map[string]interface{}{
				"has_signed":     true,
				"signed_at":      signedAt,
				"ip_address":     ip,
				"user_agent":     actor.UserAgent,
				"signature_hash": hash,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		signed = true
		collab.HasSigned = true
		collab.SignedAt = &signedAt
		collab.IPAddress = ip
		collab.UserAgent = actor.UserAgent
		collab.SignatureHash = hash

		var unsigned int64
		if err := tx.Model(&models.Collaborator{}).
			Where("split_sheet_id = ? AND has_signed = ?", sheet.ID, false).
			Count(&unsigned).Error; err != nil {
			return err
		}
		if unsigned > 0 {
			return nil
		}

		// The finalized document is rendered from committed signatures, not
		// from the snapshot read before this one.
		final, err := load(tx, sheet.ID, false)
		if err != nil {
			return err
		}
		if !final.AllSigned() {
			return nil
		}
		sheet = final
		completed, err = s.complete(tx, sheet, signedAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	if signed {
		metrics.Signatures.Inc()
		s.audit.Record(ctx, actor, models.ActionSheetSigned, entitySplitSheet, sheet.ID, map[string]interface{}{
			"email": actor.Email,
		})
	}
	if completed {
		s.afterCompletion(ctx, actor, sheet)
	}

	return sheet, nil
}

// complete finalizes sheet inside tx. It reports false when another signer
// already completed it.
func (s *SplitSheetService) complete(tx *gorm.DB, sheet *models.SplitSheet, at time.Time) (bool, error) {
	if !sheet.Status.CanTransitionTo(models.StatusCompleted) {
		return false, nil
	}
	final := *sheet
	final.Status = models.StatusCompleted
	final.FinalizedAt = &at

	doc, err := s.renderer.WithAuditTrail(&final, document.KindSummary)
	if err != nil {
		return false, err
	}
	hash := document.Hash(doc)

	result := tx.Model(&models.SplitSheet{}).
		Where("id = ? AND status = ?", sheet.ID, models.StatusPendingSignatures).
		Updates(map[string]interface{}{
			"status":        models.StatusCompleted,
			"document_hash": hash,
			"finalized_at":  at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	sheet.Status = models.StatusCompleted
	sheet.DocumentHash = &hash
	sheet.FinalizedAt = &at
	return true, nil
}

func (s *SplitSheetService) afterCompletion(ctx context.Context, actor Actor, sheet *models.SplitSheet) {
	metrics.SheetTransitions.WithLabelValues(string(models.StatusCompleted)).Inc()

	s.audit.Record(ctx, actor, models.ActionSheetCompleted, entitySplitSheet, sheet.ID, map[string]interface{}{
		"documentHash": *sheet.DocumentHash,
	})

	data := mailer.MessageData{
		SheetTitle:   sheet.Title,
		ActionURL:    s.sheetURL(sheet.ID) + "/pdf",
		DocumentHash: *sheet.DocumentHash,
	}
	notified := make(map[string]bool, len(sheet.Collaborators)+1)
	for _, c := range sheet.Collaborators {
		notified[c.Email] = true
		d := data
		d.RecipientName = c.LegalName
		s.notifier.Enqueue(ctx, models.NotifyCompletion, c.Email, d)
	}

	var owner models.User
	if err := s.db.WithContext(ctx).Select("email", "name").Where("id = ?", sheet.OwnerID).First(&owner).Error; err != nil {
		s.log.Warn("failed to load owner for completion notice", zap.String("sheet_id", sheet.ID), zap.Error(err))
		return
	}
	if !notified[owner.Email] {
		data.RecipientName = owner.Name
		s.notifier.Enqueue(ctx, models.NotifyCompletion, owner.Email, data)
	}

	s.log.Info("split sheet completed", zap.String("sheet_id", sheet.ID), zap.String("document_hash", *sheet.DocumentHash))
}

func newInviteToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate invite token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateInvite returns the sheet's invite token, creating it on first use.
func (s *SplitSheetService) GenerateInvite(ctx context.Context, actor Actor, id string) (string, error) {
	var (
		token   string
		created bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sheet, err := load(tx, id, true)
		if err != nil {
			return err
		}
		if sheet.OwnerID != actor.UserID {
			return ErrNotOwner
		}
		if sheet.Status == models.StatusCompleted {
			return types.Conflict("Invites cannot be created for a completed split sheet")
		}
		if sheet.InviteToken != nil && *sheet.InviteToken != "" {
			token = *sheet.InviteToken
			return nil
		}

		if token, err = newInviteToken(); err != nil {
			return err
		}
		created = true
		return tx.Model(&models.SplitSheet{}).Where("id = ?", id).Update("invite_token", token).Error
	})
	if err != nil {
		return "", err
	}

	if created {
		s.audit.Record(ctx, actor, models.ActionInviteGenerated, entitySplitSheet, id, nil)
	}
	return token, nil
}

// InviteURL is the link shared with prospective collaborators.
func (s *SplitSheetService) InviteURL(token string) string {
	return fmt.Sprintf("%s/api/split-sheets/join/%s", s.baseURL, token)
}

// JoinViaInvite adds actor to the sheet holding token with a 0% share. It
// reports false when actor was already a collaborator.
func (s *SplitSheetService) JoinViaInvite(ctx context.Context, actor Actor, token string) (*models.SplitSheet, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false, ErrInviteInvalid
	}

	var (
		sheet  *models.SplitSheet
		joined *models.Collaborator
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ref models.SplitSheet
		if err := tx.Select("id").Where("invite_token = ?", token).First(&ref).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInviteInvalid
			}
			return err
		}

		var err error
		if sheet, err = load(tx, ref.ID, true); err != nil {
			return err
		}
		if sheet.FindCollaborator(actor.Email) != nil {
			return nil
		}
		if sheet.Status != models.StatusDraft {
			return types.Conflict("This split sheet is no longer accepting collaborators")
		}

		userID := actor.UserID
		joined = &models.Collaborator{
			SplitSheetID: sheet.ID,
			Position:     nextPosition(sheet),
			Email:        actor.Email,
			LegalName:    actor.Name,
			Role:         models.RoleSongwriter,
			Percentage:   decimal.Zero,
			UserID:       &userID,
		}
		if err := tx.Create(joined).Error; err != nil {
			return err
		}
		sheet.Collaborators = append(sheet.Collaborators, *joined)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if joined == nil {
		return sheet, false, nil
	}

	s.audit.Record(ctx, actor, models.ActionJoinedViaInvite, entitySplitSheet, sheet.ID, map[string]interface{}{
		"email": actor.Email,
	})
	s.contacts.Sync(ctx, sheet.OwnerID, joined)

	return sheet, true, nil
}

func nextPosition(sheet *models.SplitSheet) int {
	next := 0
	for _, c := range sheet.Collaborators {
		if c.Position >= next {
			next = c.Position + 1
		}
	}
	return next
}

// editable loads a sheet for an owner-only DRAFT mutation.
func editable(tx *gorm.DB, actor Actor, id string) (*models.SplitSheet, error) {
	sheet, err := load(tx, id, true)
	if err != nil {
		return nil, err
	}
	if sheet.OwnerID != actor.UserID {
		return nil, ErrNotOwner
	}
	if sheet.Status != models.StatusDraft {
		return nil, types.Conflict("Collaborators can only be changed while the split sheet is a DRAFT (status is %s)", sheet.Status)
	}
	return sheet, nil
}

// AddCollaborator appends a collaborator to a DRAFT sheet. The running total
// may not exceed 100.
func (s *SplitSheetService) AddCollaborator(ctx context.Context, actor Actor, id string, in CollaboratorInput) (*models.SplitSheet, error) {
	var (
		sheet *models.SplitSheet
		added *models.Collaborator
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if sheet, err = editable(tx, actor, id); err != nil {
			return err
		}
		if added, err = buildCollaborator(in, nextPosition(sheet)); err != nil {
			return err
		}
		if sheet.FindCollaborator(added.Email) != nil {
			return types.Conflict("%s is already a collaborator on this split sheet", added.Email)
		}
		if total := sheet.PercentageTotal().Add(added.Percentage); total.GreaterThan(hundred) {
			return types.Conflict("Collaborator percentages would total %s, above 100", total.StringFixed(2))
		}
		if err := linkUsers(tx, []*models.Collaborator{added}); err != nil {
			return err
		}
		added.SplitSheetID = sheet.ID
		if err := tx.Create(added).Error; err != nil {
			return err
		}
		sheet.Collaborators = append(sheet.Collaborators, *added)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, models.ActionCollaboratorAdded, entitySplitSheet, sheet.ID, map[string]interface{}{
		"email":      added.Email,
		"percentage": added.Percentage.StringFixed(2),
	})
	if added.Email != actor.Email {
		s.contacts.Sync(ctx, actor.UserID, added)
		s.notifier.Enqueue(ctx, models.NotifyInvite, added.Email, mailer.MessageData{
			RecipientName: added.LegalName,
			SheetTitle:    sheet.Title,
			ActorName:     actor.DisplayName(),
			ActionURL:     s.sheetURL(sheet.ID),
		})
	}

	return sheet, nil
}

// RemoveCollaborator removes email from a DRAFT sheet.
func (s *SplitSheetService) RemoveCollaborator(ctx context.Context, actor Actor, id, email string) (*models.SplitSheet, error) {
	email = models.NormalizeEmail(email)
	var sheet *models.SplitSheet

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if sheet, err = editable(tx, actor, id); err != nil {
			return err
		}
		collab := sheet.FindCollaborator(email)
		if collab == nil {
			return types.NotFound("%s is not a collaborator on this split sheet", email)
		}
		if err := tx.Delete(&models.Collaborator{}, "id = ?", collab.ID).Error; err != nil {
			return err
		}

		kept := sheet.Collaborators[:0]
		for _, c := range sheet.Collaborators {
			if c.Email != email {
				kept = append(kept, c)
			}
		}
		sheet.Collaborators = kept
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, models.ActionCollaboratorRemoved, entitySplitSheet, sheet.ID, map[string]interface{}{
		"email": email,
	})
	return sheet, nil
}

// UpdateCollaboratorPercentage changes a collaborator's share on a DRAFT sheet.
func (s *SplitSheetService) UpdateCollaboratorPercentage(ctx context.Context, actor Actor, id, email string, pct decimal.Decimal) (*models.SplitSheet, error) {
	email = models.NormalizeEmail(email)
	pct = pct.Round(2)
	if !validPercentage(pct) {
		return nil, types.BadRequest("Percentage must be between 0 and 100")
	}

	var sheet *models.SplitSheet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if sheet, err = editable(tx, actor, id); err != nil {
			return err
		}
		collab := sheet.FindCollaborator(email)
		if collab == nil {
			return types.NotFound("%s is not a collaborator on this split sheet", email)
		}
		if total := sheet.PercentageTotal().Sub(collab.Percentage).Add(pct); total.GreaterThan(hundred) {
			return types.Conflict("Collaborator percentages would total %s, above 100", total.StringFixed(2))
		}
		if err := tx.Model(&models.Collaborator{}).Where("id = ?", collab.ID).Update("percentage", pct).Error; err != nil {
			return err
		}
		collab.Percentage = pct
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, models.ActionCollaboratorUpdated, entitySplitSheet, sheet.ID, map[string]interface{}{
		"email":      email,
		"percentage": pct.StringFixed(2),
	})
	return sheet, nil
}

// Delete removes a sheet and its collaborators. Completed sheets are kept.
func (s *SplitSheetService) Delete(ctx context.Context, actor Actor, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sheet, err := load(tx, id, true)
		if err != nil {
			return err
		}
		if sheet.OwnerID != actor.UserID {
			return ErrNotOwner
		}
		if sheet.Status == models.StatusCompleted {
			return types.Conflict("Completed split sheets cannot be deleted")
		}

		// Written in a savepoint ahead of the delete; a failure is logged only.
		entry := &models.AuditLog{
			UserID:     actor.UserID,
			Action:     models.ActionSheetDeleted,
			EntityType: entitySplitSheet,
			EntityID:   sheet.ID,
			Details:    models.NewJSON(map[string]interface{}{"title": sheet.Title}),
			IP:         actor.IP,
		}
		if err := tx.Transaction(func(sp *gorm.DB) error { return sp.Create(entry).Error }); err != nil {
			s.log.Warn("failed to write audit log", zap.String("action", entry.Action), zap.Error(err))
		}

		return tx.Select("Collaborators").Delete(sheet).Error
	})
}

// Render produces the sheet's PDF for actor, with the audit trail page once
// the sheet is completed. It returns the document and its download name.
func (s *SplitSheetService) Render(ctx context.Context, actor Actor, id string, kind document.Kind) ([]byte, string, error) {
	sheet, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}

	var doc []byte
	switch {
	case sheet.Status == models.StatusCompleted:
		doc, err = s.renderer.WithAuditTrail(sheet, kind)
	case kind == document.KindFull:
		doc, err = s.renderer.Full(sheet)
	default:
		doc, err = s.renderer.Summary(sheet)
	}
	if err != nil {
		return nil, "", err
	}
	return doc, document.Filename(sheet.Title), nil
}
