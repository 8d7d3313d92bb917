package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestStatusTransitions(t *testing.T) {
	if !StatusDraft.CanTransitionTo(StatusPendingSignatures) {
		t.Error("Expected DRAFT -> PENDING_SIGNATURES")
	}
	if !StatusPendingSignatures.CanTransitionTo(StatusCompleted) {
		t.Error("Expected PENDING_SIGNATURES -> COMPLETED")
	}
	if StatusDraft.CanTransitionTo(StatusCompleted) {
		t.Error("DRAFT must not skip to COMPLETED")
	}
	if StatusCompleted.CanTransitionTo(StatusDraft) || StatusPendingSignatures.CanTransitionTo(StatusDraft) {
		t.Error("Status must never regress")
	}
	if SheetStatus("ARCHIVED").CanTransitionTo(StatusCompleted) {
		t.Error("Unknown status must not transition")
	}
}

func TestSheetHelpers(t *testing.T) {
	sheet := SplitSheet{Collaborators: []Collaborator{
		{Email: "alice@x.com", Percentage: decimal.NewFromInt(60), HasSigned: true},
		{Email: "bob@x.com", Percentage: decimal.NewFromFloat(40), HasSigned: false},
	}}

	if !sheet.PercentageTotal().Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected total 100, got %s", sheet.PercentageTotal())
	}
	if sheet.AllSigned() {
		t.Error("Expected not all signed")
	}
	if c := sheet.FindCollaborator(" Bob@X.com "); c == nil || c.Email != "bob@x.com" {
		t.Error("Expected case-insensitive collaborator lookup")
	}
	sheet.Collaborators[1].HasSigned = true
	if !sheet.AllSigned() {
		t.Error("Expected all signed")
	}
	if (&SplitSheet{}).AllSigned() {
		t.Error("Empty sheet must not count as signed")
	}
}

func TestContactRoleFor(t *testing.T) {
	if ContactRoleFor(RoleProducer) != ContactProducer {
		t.Error("Expected producer mapping")
	}
	if ContactRoleFor(CollaboratorRole("ENGINEER")) != ContactOther {
		t.Error("Expected OTHER fallback")
	}
}

func TestNewJSON(t *testing.T) {
	j := NewJSON(map[string]string{"title": "Midnight"})
	var out map[string]string
	if err := j.Decode(&out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out["title"] != "Midnight" {
		t.Errorf("Expected Midnight, got %q", out["title"])
	}
	if string(NewJSON(nil).JSON) != "{}" {
		t.Error("Expected nil to encode as empty object")
	}
}
