package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/saldanamusic/splitsheets/internal/document"
	"github.com/saldanamusic/splitsheets/internal/mailer"
	"github.com/saldanamusic/splitsheets/internal/models"
	"github.com/saldanamusic/splitsheets/internal/testutil"
	"github.com/saldanamusic/splitsheets/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	sheets   *SplitSheetService
	contacts *ContactService
	audit    *AuditService
	owner    *models.User
	alice    *models.User
	bob      *models.User
	eve      *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	log := zap.NewNop()

	notifier := NewNotifier(db, log)
	audit := NewAuditService(db, log)
	contacts := NewContactService(db, log)

	return &fixture{
		db:       db,
		sheets:   NewSplitSheetService(db, log, document.NewRenderer("", log), notifier, audit, contacts, "https://app.test"),
		contacts: contacts,
		audit:    audit,
		owner:    testutil.CreateUser(t, db, "owner@x.com", "Olivia Owner"),
		alice:    testutil.CreateUser(t, db, "alice@x.com", "Alice"),
		bob:      testutil.CreateUser(t, db, "bob@x.com", "Bob"),
		eve:      testutil.CreateUser(t, db, "eve@x.com", "Eve"),
	}
}

func actorOf(u *models.User) Actor {
	return ActorFor(u, "203.0.113.9", "go-test")
}

func pct(v int64) types.FlexDecimal {
	return types.FlexDecimal{Decimal: decimal.NewFromInt(v)}
}

// midnight creates the two-collaborator DRAFT sheet used across tests.
func (f *fixture) midnight(t *testing.T) *models.SplitSheet {
	t.Helper()
	sheet, err := f.sheets.Create(context.Background(), actorOf(f.owner), CreateInput{
		Title: "Midnight",
		Label: "Saldaña Records",
		Collaborators: types.FlexList[CollaboratorInput]{
			{Email: "alice@x.com", Name: "Alice A.", Percentage: pct(60)},
			{Email: "Bob@X.com", LegalName: "Bob B.", Role: models.RoleProducer, Percentage: pct(40)},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return sheet
}

func (f *fixture) notifications(t *testing.T, kind models.NotificationKind) []models.Notification {
	t.Helper()
	var rows []models.Notification
	if err := f.db.Where("kind = ?", kind).Order("id").Find(&rows).Error; err != nil {
		t.Fatalf("Failed to query notifications: %v", err)
	}
	return rows
}

func (f *fixture) auditCount(t *testing.T, action, entityID string) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.AuditLog{}).Where("action = ? AND entity_id = ?", action, entityID).Count(&n).Error; err != nil {
		t.Fatalf("Failed to count audit logs: %v", err)
	}
	return n
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected error with status %d, got nil", code)
	}
	if got := types.StatusOf(err); got != code {
		t.Fatalf("Expected status %d, got %d (%v)", code, got, err)
	}
}

func TestMidnightScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet := f.midnight(t)

	if sheet.Status != models.StatusDraft {
		t.Fatalf("Expected DRAFT, got %s", sheet.Status)
	}

	started, msg, err := f.sheets.StartSignatures(ctx, actorOf(f.owner), sheet.ID)
	if err != nil {
		t.Fatalf("StartSignatures failed: %v", err)
	}
	if started.Status != models.StatusPendingSignatures {
		t.Errorf("Expected PENDING_SIGNATURES, got %s", started.Status)
	}
	if msg != "Signature requests sent to 2 collaborator(s)" {
		t.Errorf("Unexpected message %q", msg)
	}

	requests := f.notifications(t, models.NotifySignatureRequest)
	if len(requests) != 2 {
		t.Fatalf("Expected 2 signature requests, got %d", len(requests))
	}
	if requests[0].Recipient != "alice@x.com" || requests[1].Recipient != "bob@x.com" {
		t.Errorf("Unexpected recipients %s, %s", requests[0].Recipient, requests[1].Recipient)
	}
	var data mailer.MessageData
	if err := requests[0].Payload.Decode(&data); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if data.SheetTitle != "Midnight" || data.ActorName != "Olivia Owner" {
		t.Errorf("Unexpected payload %+v", data)
	}

	afterAlice, err := f.sheets.Sign(ctx, actorOf(f.alice), sheet.ID)
	if err != nil {
		t.Fatalf("alice Sign failed: %v", err)
	}
	if afterAlice.Status != models.StatusPendingSignatures {
		t.Errorf("Expected PENDING_SIGNATURES after first signature, got %s", afterAlice.Status)
	}
	if afterAlice.DocumentHash != nil {
		t.Error("Expected no document hash before completion")
	}

	afterBob, err := f.sheets.Sign(ctx, actorOf(f.bob), sheet.ID)
	if err != nil {
		t.Fatalf("bob Sign failed: %v", err)
	}
	if afterBob.Status != models.StatusCompleted {
		t.Fatalf("Expected COMPLETED, got %s", afterBob.Status)
	}
	if afterBob.DocumentHash == nil || len(*afterBob.DocumentHash) != 64 {
		t.Errorf("Expected a sha256 document hash, got %v", afterBob.DocumentHash)
	}
	if afterBob.FinalizedAt == nil {
		t.Error("Expected finalizedAt to be set")
	}

	var stored models.SplitSheet
	if err := f.db.First(&stored, "id = ?", sheet.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.StatusCompleted || stored.DocumentHash == nil {
		t.Errorf("Expected stored sheet to be completed with a hash, got %s", stored.Status)
	}

	// alice, bob and the owner each get one completion notice.
	if n := len(f.notifications(t, models.NotifyCompletion)); n != 3 {
		t.Errorf("Expected 3 completion notifications, got %d", n)
	}
	if n := f.auditCount(t, models.ActionSheetCompleted, sheet.ID); n != 1 {
		t.Errorf("Expected 1 completion audit row, got %d", n)
	}

	for _, c := range afterBob.Collaborators {
		if !c.HasSigned || c.SignedAt == nil || c.SignatureHash == "" {
			t.Errorf("Expected %s to be fully stamped: %+v", c.Email, c)
		}
		if c.IPAddress != "203.0.113.9" || c.UserAgent != "go-test" {
			t.Errorf("Expected request metadata on %s, got %s / %s", c.Email, c.IPAddress, c.UserAgent)
		}
	}
}

func TestSignIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet := f.midnight(t)
	if _, _, err := f.sheets.StartSignatures(ctx, actorOf(f.owner), sheet.ID); err != nil {
		t.Fatal(err)
	}

	first, err := f.sheets.Sign(ctx, actorOf(f.alice), sheet.ID)
	if err != nil {
		t.Fatalf("first Sign failed: %v", err)
	}
	second, err := f.sheets.Sign(ctx, ActorFor(f.alice, "198.51.100.1", "other"), sheet.ID)
	if err != nil {
		t.Fatalf("second Sign failed: %v", err)
	}

	a, b := first.FindCollaborator("alice@x.com"), second.FindCollaborator("alice@x.com")
	if !a.SignedAt.Equal(*b.SignedAt) || b.IPAddress != "203.0.113.9" {
		t.Errorf("Expected second sign to leave the signature unchanged, got %v %s", b.SignedAt, b.IPAddress)
	}
	if second.Status != first.Status {
		t.Errorf("Expected status unchanged, got %s", second.Status)
	}
	if n := f.auditCount(t, models.ActionSheetSigned, sheet.ID); n != 1 {
		t.Errorf("Expected 1 signed audit row, got %d", n)
	}
}

func TestSignFallsBackToUnknownIP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet := f.midnight(t)
	if _, _, err := f.sheets.StartSignatures(ctx, actorOf(f.owner), sheet.ID); err != nil {
		t.Fatal(err)
	}

	signed, err := f.sheets.Sign(ctx, ActorFor(f.alice, "", ""), sheet.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ip := signed.FindCollaborator("alice@x.com").IPAddress; ip != UnknownIP {
		t.Errorf("Expected %s, got %s", UnknownIP, ip)
	}
}

func TestStartSignaturesErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet := f.midnight(t)

	_, _, err := f.sheets.StartSignatures(ctx, actorOf(f.owner), "missing")
	expectStatus(t, err, 404)

	_, _, err = f.sheets.StartSignatures(ctx, actorOf(f.alice), sheet.ID)
	expectStatus(t, err, 403)

	if _, err := f.sheets.UpdateCollaboratorPercentage(ctx, actorOf(f.owner), sheet.ID, "bob@x.com", decimal.NewFromInt(30)); err != nil {
		t.Fatalf("UpdateCollaboratorPercentage failed: %v", err)
	}
	_, _, err = f.sheets.StartSignatures(ctx, actorOf(f.owner), sheet.ID)
	expectStatus(t, err, 409)

	if _, err := f.sheets.UpdateCollaboratorPercentage(ctx, actorOf(f.owner), sheet.ID, "bob@x.com", decimal.NewFromInt(40)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.sheets.StartSignatures(ctx, actorOf(f.owner), sheet.ID); err != nil {
		t.Fatalf("StartSignatures failed: %v", err)
	}

	_, _, err = f.sheets.StartSignatures(ctx, actorOf(f.owner), sheet.ID)
	expectStatus(t, err, 409)
}

func TestStartSignaturesRequiresCollaborators(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet, err := f.sheets.Create(ctx, actorOf(f.owner), CreateInput{Title: "Empty"})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = f.sheets.StartSignatures(ctx, actorOf(f.owner), sheet.ID)
	expectStatus(t, err, 409)
}

func TestStartSignaturesSkipsActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet, err := f.sheets.Create(ctx, actorOf(f.owner), CreateInput{
		Title: "Sunrise",
		Collaborators: types.FlexList[CollaboratorInput]{
			{Email: "owner@x.com", Percentage: pct(50)},
			{Email: "alice@x.com", Percentage: pct(50)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, msg, err := f.sheets.StartSignatures(ctx, actorOf(f.owner), sheet.ID)
	if err != nil {
		t.Fatal(err)
	}
	if msg != "Signature requests sent to 1 collaborator(s)" {
		t.Errorf("Unexpected message %q", msg)
	}

	// The owner signs through their own collaborator row.
	if _, err := f.sheets.Sign(ctx, actorOf(f.owner), sheet.ID); err != nil {
		t.Fatalf("owner Sign failed: %v", err)
	}
}

func TestSignErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet := f.midnight(t)

	_, err := f.sheets.Sign(ctx, actorOf(f.alice), sheet.ID)
	expectStatus(t, err, 409)

	if _, _, err := f.sheets.StartSignatures(ctx, actorOf(f.owner), sheet.ID); err != nil {
		t.Fatal(err)
	}

	_, err = f.sheets.Sign(ctx, actorOf(f.alice), "missing")
	expectStatus(t, err, 404)

	_, err = f.sheets.Sign(ctx, actorOf(f.eve), sheet.ID)
	expectStatus(t, err, 403)

	_, err = f.sheets.Sign(ctx, actorOf(f.owner), sheet.ID)
	expectStatus(t, err, 403)
	if !strings.Contains(err.Error(), "collaborator entry") {
		t.Errorf("Expected owner-specific message, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := actorOf(f.owner)

	tests := []struct {
		name string
		in   CreateInput
		code int
	}{
		{"empty title", CreateInput{Title: "  "}, 400},
		{"missing email", CreateInput{Title: "x", Collaborators: types.FlexList[CollaboratorInput]{{Percentage: pct(100)}}}, 409},
		{"duplicate email", CreateInput{Title: "x", Collaborators: types.FlexList[CollaboratorInput]{
			{Email: "a@x.com", Percentage: pct(50)}, {Email: "A@x.com", Percentage: pct(50)},
		}}, 409},
		{"sum below 100", CreateInput{Title: "x", Collaborators: types.FlexList[CollaboratorInput]{
			{Email: "a@x.com", Percentage: pct(50)}, {Email: "b@x.com", Percentage: pct(40)},
		}}, 409},
		{"percentage above 100", CreateInput{Title: "x", Collaborators: types.FlexList[CollaboratorInput]{
			{Email: "a@x.com", Percentage: pct(120)},
		}}, 400},
		{"unknown role", CreateInput{Title: "x", Collaborators: types.FlexList[CollaboratorInput]{
			{Email: "a@x.com", Role: "DRUMMER", Percentage: pct(100)},
		}}, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sheets.Create(ctx, owner, tt.in)
			expectStatus(t, err, tt.code)
		})
	}

	var count int64
	f.db.Model(&models.SplitSheet{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no sheets persisted, got %d", count)
	}
}

func TestCreateSideEffects(t *testing.T) {
	f := newFixture(t)
	sheet := f.midnight(t)

	alice := sheet.FindCollaborator("alice@x.com")
	if alice.LegalName != "Alice A." {
		t.Errorf("Expected legal name backfilled from name, got %q", alice.LegalName)
	}
	if alice.UserID == nil || *alice.UserID != f.alice.ID {
		t.Error("Expected alice to be linked to her account")
	}
	if sheet.FindCollaborator("bob@x.com") == nil {
		t.Error("Expected bob's email to be normalized")
	}

	if n := len(f.notifications(t, models.NotifyWelcome)); n != 1 {
		t.Errorf("Expected 1 welcome notification, got %d", n)
	}
	if n := f.auditCount(t, models.ActionSheetCreated, sheet.ID); n != 1 {
		t.Errorf("Expected 1 created audit row, got %d", n)
	}

	contacts, err := f.contacts.List(context.Background(), f.owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 2 {
		t.Fatalf("Expected 2 contacts, got %d", len(contacts))
	}
	roles := map[string]models.ContactRole{}
	for _, c := range contacts {
		roles[c.Email] = c.Role
	}
	if roles["alice@x.com"] != models.ContactSongwriter || roles["bob@x.com"] != models.ContactProducer {
		t.Errorf("Unexpected contact roles %v", roles)
	}
}

func TestListIncludesSharedSheets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.midnight(t)

	for _, tt := range []struct {
		user *models.User
		want int
	}{
		{f.owner, 1},
		{f.alice, 1},
		{f.eve, 0},
	} {
		sheets, err := f.sheets.List(ctx, actorOf(tt.user))
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(sheets) != tt.want {
			t.Errorf("%s: expected %d sheets, got %d", tt.user.Email, tt.want, len(sheets))
		}
	}
}

func TestGetRequiresAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet := f.midnight(t)

	got, err := f.sheets.Get(ctx, actorOf(f.bob), sheet.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Collaborators) != 2 || got.Collaborators[0].Email != "alice@x.com" {
		t.Errorf("Expected collaborators in position order, got %+v", got.Collaborators)
	}

	_, err = f.sheets.Get(ctx, actorOf(f.eve), sheet.ID)
	if !errors.Is(err, ErrNoAccess) {
		t.Errorf("Expected ErrNoAccess, got %v", err)
	}
}

func TestJoinViaInviteTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet := f.midnight(t)

	token, err := f.sheets.GenerateInvite(ctx, actorOf(f.owner), sheet.ID)
	if err != nil {
		t.Fatalf("GenerateInvite failed: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(token))
	}
	again, err := f.sheets.GenerateInvite(ctx, actorOf(f.owner), sheet.ID)
	if err != nil || again != token {
		t.Errorf("Expected the token to be reused, got %q (%v)", again, err)
	}

	joined, ok, err := f.sheets.JoinViaInvite(ctx, actorOf(f.eve), token)
	if err != nil {
		t.Fatalf("JoinViaInvite failed: %v", err)
	}
	if !ok {
		t.Error("Expected first join to add a collaborator")
	}
	eve := joined.FindCollaborator("eve@x.com")
	if eve == nil || !eve.Percentage.IsZero() || eve.Role != models.RoleSongwriter {
		t.Fatalf("Unexpected joined collaborator %+v", eve)
	}

	rejoined, ok, err := f.sheets.JoinViaInvite(ctx, actorOf(f.eve), token)
	if err != nil {
		t.Fatalf("second JoinViaInvite failed: %v", err)
	}
	if ok {
		t.Error("Expected second join to be a no-op")
	}
	if len(rejoined.Collaborators) != 3 {
		t.Errorf("Expected 3 collaborators, got %d", len(rejoined.Collaborators))
	}

	var contact models.Contact
	if err := f.db.Where("owner_id = ? AND email = ?", f.owner.ID, "eve@x.com").First(&contact).Error; err != nil {
		t.Errorf("Expected eve in the owner's contacts: %v", err)
	}
}

func TestInviteErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet := f.midnight(t)

	_, err := f.sheets.GenerateInvite(ctx, actorOf(f.alice), sheet.ID)
	expectStatus(t, err, 403)

	_, _, err = f.sheets.JoinViaInvite(ctx, actorOf(f.eve), "nope")
	expectStatus(t, err, 404)

	token, err := f.sheets.GenerateInvite(ctx, actorOf(f.owner), sheet.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.sheets.StartSignatures(ctx, actorOf(f.owner), sheet.ID); err != nil {
		t.Fatal(err)
	}
	_, _, err = f.sheets.JoinViaInvite(ctx, actorOf(f.eve), token)
	expectStatus(t, err, 409)

	// Existing collaborators still resolve after the sheet leaves DRAFT.
	if _, ok, err := f.sheets.JoinViaInvite(ctx, actorOf(f.alice), token); err != nil || ok {
		t.Errorf("Expected no-op for existing collaborator, got ok=%v err=%v", ok, err)
	}
}

func TestAddAndRemoveCollaborator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := actorOf(f.owner)
	sheet := f.midnight(t)

	_, err := f.sheets.AddCollaborator(ctx, owner, sheet.ID, CollaboratorInput{Email: "ALICE@x.com"})
	expectStatus(t, err, 409)

	_, err = f.sheets.AddCollaborator(ctx, owner, sheet.ID, CollaboratorInput{Email: "eve@x.com", Percentage: pct(10)})
	expectStatus(t, err, 409)

	_, err = f.sheets.AddCollaborator(ctx, actorOf(f.alice), sheet.ID, CollaboratorInput{Email: "eve@x.com"})
	expectStatus(t, err, 403)

	updated, err := f.sheets.AddCollaborator(ctx, owner, sheet.ID, CollaboratorInput{Email: "eve@x.com", Name: "Eve E."})
	if err != nil {
		t.Fatalf("AddCollaborator failed: %v", err)
	}
	if len(updated.Collaborators) != 3 {
		t.Errorf("Expected 3 collaborators, got %d", len(updated.Collaborators))
	}
	invites := f.notifications(t, models.NotifyInvite)
	if len(invites) != 1 || invites[0].Recipient != "eve@x.com" {
		t.Errorf("Expected one invite notification to eve, got %+v", invites)
	}

	_, err = f.sheets.RemoveCollaborator(ctx, owner, sheet.ID, "nobody@x.com")
	expectStatus(t, err, 404)

	updated, err = f.sheets.RemoveCollaborator(ctx, owner, sheet.ID, "eve@x.com")
	if err != nil {
		t.Fatalf("RemoveCollaborator failed: %v", err)
	}
	if len(updated.Collaborators) != 2 {
		t.Errorf("Expected 2 collaborators, got %d", len(updated.Collaborators))
	}
	if n := f.auditCount(t, models.ActionCollaboratorRemoved, sheet.ID); n != 1 {
		t.Errorf("Expected 1 removal audit row, got %d", n)
	}

	if _, _, err := f.sheets.StartSignatures(ctx, owner, sheet.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.sheets.AddCollaborator(ctx, owner, sheet.ID, CollaboratorInput{Email: "late@x.com"})
	expectStatus(t, err, 409)
	_, err = f.sheets.RemoveCollaborator(ctx, owner, sheet.ID, "alice@x.com")
	expectStatus(t, err, 409)
	_, err = f.sheets.UpdateCollaboratorPercentage(ctx, owner, sheet.ID, "alice@x.com", decimal.NewFromInt(50))
	expectStatus(t, err, 409)
}

func TestUpdateCollaboratorPercentage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := actorOf(f.owner)
	sheet := f.midnight(t)

	_, err := f.sheets.UpdateCollaboratorPercentage(ctx, owner, sheet.ID, "alice@x.com", decimal.NewFromInt(101))
	expectStatus(t, err, 400)

	_, err = f.sheets.UpdateCollaboratorPercentage(ctx, owner, sheet.ID, "alice@x.com", decimal.NewFromInt(70))
	expectStatus(t, err, 409)

	_, err = f.sheets.UpdateCollaboratorPercentage(ctx, owner, sheet.ID, "nobody@x.com", decimal.NewFromInt(1))
	expectStatus(t, err, 404)

	updated, err := f.sheets.UpdateCollaboratorPercentage(ctx, owner, sheet.ID, "alice@x.com", decimal.RequireFromString("55.5"))
	if err != nil {
		t.Fatalf("UpdateCollaboratorPercentage failed: %v", err)
	}
	if got := updated.FindCollaborator("alice@x.com").Percentage.StringFixed(2); got != "55.50" {
		t.Errorf("Expected 55.50, got %s", got)
	}
}

func TestRenderRequiresAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet := f.midnight(t)

	doc, name, err := f.sheets.Render(ctx, actorOf(f.eve), sheet.ID, document.KindSummary)
	expectStatus(t, err, 403)
	if doc != nil {
		t.Error("Expected no bytes for an unauthorized caller")
	}

	doc, name, err = f.sheets.Render(ctx, actorOf(f.alice), sheet.ID, document.KindFull)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF")) {
		t.Error("Expected a PDF")
	}
	if name != "split-sheet-midnight.pdf" {
		t.Errorf("Unexpected filename %q", name)
	}
}

func TestCompletedDownloadMatchesStoredHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet := f.midnight(t)

	if _, _, err := f.sheets.StartSignatures(ctx, actorOf(f.owner), sheet.ID); err != nil {
		t.Fatalf("StartSignatures failed: %v", err)
	}
	for _, u := range []*models.User{f.alice, f.bob} {
		if _, err := f.sheets.Sign(ctx, actorOf(u), sheet.ID); err != nil {
			t.Fatalf("Sign as %s failed: %v", u.Email, err)
		}
	}

	var stored models.SplitSheet
	if err := f.db.First(&stored, "id = ?", sheet.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.StatusCompleted || stored.DocumentHash == nil {
		t.Fatalf("Expected a completed sheet with a hash, got %s", stored.Status)
	}

	for _, u := range []*models.User{f.owner, f.alice, f.bob} {
		doc, _, err := f.sheets.Render(ctx, actorOf(u), sheet.ID, document.KindSummary)
		if err != nil {
			t.Fatalf("Render as %s failed: %v", u.Email, err)
		}
		if got := document.Hash(doc); got != *stored.DocumentHash {
			t.Errorf("Download for %s hashes to %s, stored %s", u.Email, got, *stored.DocumentHash)
		}
	}
}

func TestCompleteRequiresPendingSignatures(t *testing.T) {
	f := newFixture(t)
	sheet := f.midnight(t)

	for _, status := range []models.SheetStatus{models.StatusDraft, models.StatusCompleted} {
		snapshot := *sheet
		snapshot.Status = status
		ok, err := f.sheets.complete(f.db, &snapshot, time.Now().UTC())
		if err != nil {
			t.Fatalf("complete from %s failed: %v", status, err)
		}
		if ok || snapshot.DocumentHash != nil {
			t.Errorf("Expected no completion from %s", status)
		}
	}

	var stored models.SplitSheet
	if err := f.db.First(&stored, "id = ?", sheet.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.StatusDraft || stored.DocumentHash != nil {
		t.Errorf("Expected the draft untouched, got %s", stored.Status)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet := f.midnight(t)

	expectStatus(t, f.sheets.Delete(ctx, actorOf(f.alice), sheet.ID), 403)

	if err := f.sheets.Delete(ctx, actorOf(f.owner), sheet.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	var collaborators int64
	f.db.Model(&models.Collaborator{}).Where("split_sheet_id = ?", sheet.ID).Count(&collaborators)
	if collaborators != 0 {
		t.Errorf("Expected collaborators to be removed, got %d", collaborators)
	}
	if n := f.auditCount(t, models.ActionSheetDeleted, sheet.ID); n != 1 {
		t.Errorf("Expected 1 delete audit row, got %d", n)
	}

	expectStatus(t, f.sheets.Delete(ctx, actorOf(f.owner), sheet.ID), 404)
}

func TestDeleteCompletedIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet := f.midnight(t)
	if _, _, err := f.sheets.StartSignatures(ctx, actorOf(f.owner), sheet.ID); err != nil {
		t.Fatal(err)
	}
	for _, u := range []*models.User{f.alice, f.bob} {
		if _, err := f.sheets.Sign(ctx, actorOf(u), sheet.ID); err != nil {
			t.Fatal(err)
		}
	}

	expectStatus(t, f.sheets.Delete(ctx, actorOf(f.owner), sheet.ID), 409)
	_, err := f.sheets.GenerateInvite(ctx, actorOf(f.owner), sheet.ID)
	expectStatus(t, err, 409)

	// Completed documents carry the audit trail page.
	full, _, err := f.sheets.Render(ctx, actorOf(f.owner), sheet.ID, document.KindSummary)
	if err != nil {
		t.Fatal(err)
	}
	if len(full) == 0 {
		t.Error("Expected rendered bytes")
	}
}

func TestConcurrentLastSignersCompleteOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sheet := f.midnight(t)
	if _, _, err := f.sheets.StartSignatures(ctx, actorOf(f.owner), sheet.ID); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, u := range []*models.User{f.alice, f.bob} {
		wg.Add(1)
		go func(u *models.User) {
			defer wg.Done()
			_, err := f.sheets.Sign(ctx, actorOf(u), sheet.ID)
			errs <- err
		}(u)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Sign failed: %v", err)
		}
	}

	var stored models.SplitSheet
	if err := f.db.First(&stored, "id = ?", sheet.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.StatusCompleted || stored.DocumentHash == nil {
		t.Fatalf("Expected completed sheet with hash, got %s", stored.Status)
	}
	if n := f.auditCount(t, models.ActionSheetCompleted, sheet.ID); n != 1 {
		t.Errorf("Expected completion to fire once, got %d", n)
	}
	if n := len(f.notifications(t, models.NotifyCompletion)); n != 3 {
		t.Errorf("Expected 3 completion notifications, got %d", n)
	}
}
