// handlers_test.go
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

package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saldanamusic/splitsheets/internal/auth"
	"github.com/saldanamusic/splitsheets/internal/config"
	"github.com/saldanamusic/splitsheets/internal/document"
	"github.com/saldanamusic/splitsheets/internal/handlers"
	"github.com/saldanamusic/splitsheets/internal/models"
	"github.com/saldanamusic/splitsheets/internal/services"
	"github.com/saldanamusic/splitsheets/internal/testutil"
	"github.com/saldanamusic/splitsheets/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testAPI struct {
	app *fiber.App
	db  *gorm.DB
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	db := testutil.OpenDB(t)
	log := zap.NewNop()

	notifier := services.NewNotifier(db, log)
	audit := services.NewAuditService(db, log)
	contacts := services.NewContactService(db, log)
	authSvc := services.NewAuthService(db, log, auth.NewJWTManager("test-secret", time.Hour), notifier, audit, 10*time.Minute)
	sheets := services.NewSplitSheetService(db, log, document.NewRenderer("", log), notifier, audit, contacts, "http://localhost:3000")

	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler})
	handlers.SetupRoutes(app.Group("/api"), handlers.Handlers{
		Auth:     &handlers.AuthHandler{Auth: authSvc},
		Sheets:   &handlers.SplitSheetHandler{Sheets: sheets},
		Contacts: &handlers.ContactHandler{Contacts: contacts, Audit: audit},
		Health:   &handlers.HealthHandler{Config: &config.Config{DBType: "sqlite"}, DB: db, Log: log},
	})
	return &testAPI{app: app, db: db}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	req.Header.Set("User-Agent", "handlers-test")

	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	return resp
}

func (a *testAPI) register(t *testing.T, email, name string) string {
	t.Helper()
	resp := a.do(t, "POST", "/api/auth/register", "", handlers.RegisterInput{
		Email: email, Password: "long-enough-pw", Name: name,
	})
	testutil.AssertStatus(t, resp, fiber.StatusCreated)
	var result services.AuthResult
	testutil.ParseJSON(t, resp, &result)
	return result.Token
}

func (a *testAPI) createSheet(t *testing.T, token string) models.SplitSheet {
	t.Helper()
	resp := a.do(t, "POST", "/api/split-sheets", token, map[string]interface{}{
		"title": "Midnight",
		"collaborators": []map[string]interface{}{
			{"email": "owner@x.com", "name": "Owner", "role": "SONGWRITER", "percentage": "50%"},
			{"email": "alice@x.com", "name": "Alice", "role": "PRODUCER", "percentage": 50},
		},
	})
	testutil.AssertStatus(t, resp, fiber.StatusCreated)
	var sheet models.SplitSheet
	testutil.ParseJSON(t, resp, &sheet)
	return sheet
}

// TestSignatureFlow drives a sheet from creation to completion over HTTP.
func TestSignatureFlow(t *testing.T) {
	api := setupAPI(t)
	owner := api.register(t, "owner@x.com", "Owner")
	alice := api.register(t, "alice@x.com", "Alice")

	sheet := api.createSheet(t, owner)
	if sheet.Status != models.StatusDraft || len(sheet.Collaborators) != 2 {
		t.Fatalf("Unexpected sheet %+v", sheet)
	}

	resp := api.do(t, "POST", "/api/split-sheets/"+sheet.ID+"/sign", alice, nil)
	testutil.AssertStatus(t, resp, fiber.StatusConflict)

	resp = api.do(t, "POST", "/api/split-sheets/"+sheet.ID+"/start-signatures", owner, nil)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var started utils.MessageResponseStruct
	testutil.ParseJSON(t, resp, &started)
	if !strings.Contains(started.Message, "1 collaborator") {
		t.Errorf("Unexpected start message %q", started.Message)
	}

	resp = api.do(t, "POST", "/api/split-sheets/"+sheet.ID+"/sign", owner, nil)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	resp = api.do(t, "POST", "/api/split-sheets/"+sheet.ID+"/sign", alice, nil)
	testutil.AssertStatus(t, resp, fiber.StatusOK)

	var signed models.SplitSheet
	testutil.ParseJSON(t, resp, &signed)
	if signed.Status != models.StatusCompleted || signed.DocumentHash == nil {
		t.Errorf("Expected completed sheet with a hash, got %s", signed.Status)
	}
	for _, c := range signed.Collaborators {
		if c.Email == "alice@x.com" && c.IPAddress != "203.0.113.7" {
			t.Errorf("Expected forwarded IP recorded, got %q", c.IPAddress)
		}
	}

	resp = api.do(t, "DELETE", "/api/split-sheets/"+sheet.ID, owner, nil)
	testutil.AssertStatus(t, resp, fiber.StatusConflict)
}

func TestRequiresBearerToken(t *testing.T) {
	api := setupAPI(t)

	resp := api.do(t, "GET", "/api/split-sheets", "", nil)
	testutil.AssertStatus(t, resp, fiber.StatusUnauthorized)

	var body utils.ErrorResponseStruct
	testutil.ParseJSON(t, resp, &body)
	if body.Ok || body.Status != fiber.StatusUnauthorized || body.Method != "GET" {
		t.Errorf("Unexpected error envelope %+v", body)
	}

	resp = api.do(t, "GET", "/api/auth/me", "not-a-token", nil)
	testutil.AssertStatus(t, resp, fiber.StatusUnauthorized)
}

func TestGetAccessAndNotFound(t *testing.T) {
	api := setupAPI(t)
	owner := api.register(t, "owner@x.com", "Owner")
	eve := api.register(t, "eve@x.com", "Eve")
	sheet := api.createSheet(t, owner)

	resp := api.do(t, "GET", "/api/split-sheets/"+sheet.ID, eve, nil)
	testutil.AssertStatus(t, resp, fiber.StatusForbidden)

	resp = api.do(t, "GET", "/api/split-sheets/does-not-exist", owner, nil)
	testutil.AssertStatus(t, resp, fiber.StatusNotFound)

	resp = api.do(t, "GET", "/api/split-sheets", owner, nil)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var sheets []models.SplitSheet
	testutil.ParseJSON(t, resp, &sheets)
	if len(sheets) != 1 {
		t.Errorf("Expected 1 sheet, got %d", len(sheets))
	}
}

func TestCreateRejectsBadBody(t *testing.T) {
	api := setupAPI(t)
	owner := api.register(t, "owner@x.com", "Owner")

	req := httptest.NewRequest("POST", "/api/split-sheets", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+owner)
	resp, err := api.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertStatus(t, resp, fiber.StatusBadRequest)

	resp = api.do(t, "POST", "/api/split-sheets", owner, map[string]interface{}{
		"title": "Uneven",
		"collaborators": []map[string]interface{}{
			{"email": "owner@x.com", "role": "SONGWRITER", "percentage": 60},
		},
	})
	testutil.AssertStatus(t, resp, fiber.StatusConflict)
}

func TestCollaboratorEdits(t *testing.T) {
	api := setupAPI(t)
	owner := api.register(t, "owner@x.com", "Owner")
	sheet := api.createSheet(t, owner)
	base := "/api/split-sheets/" + sheet.ID + "/collaborator"

	resp := api.do(t, "PATCH", base+"/alice@x.com", owner, map[string]interface{}{"percentage": 40})
	testutil.AssertStatus(t, resp, fiber.StatusOK)

	resp = api.do(t, "POST", base, owner, map[string]interface{}{
		"email": "bob@x.com", "role": "PUBLISHER", "percentage": "10",
	})
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var updated models.SplitSheet
	testutil.ParseJSON(t, resp, &updated)
	if len(updated.Collaborators) != 3 {
		t.Fatalf("Expected 3 collaborators, got %d", len(updated.Collaborators))
	}

	resp = api.do(t, "PATCH", base+"/bob@x.com", owner, map[string]interface{}{"percentage": 50})
	testutil.AssertStatus(t, resp, fiber.StatusConflict)

	resp = api.do(t, "PATCH", base+"/bob@x.com", owner, map[string]interface{}{})
	testutil.AssertStatus(t, resp, fiber.StatusBadRequest)

	resp = api.do(t, "DELETE", base+"/bob%40x.com", owner, nil)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	testutil.ParseJSON(t, resp, &updated)
	if len(updated.Collaborators) != 2 {
		t.Errorf("Expected 2 collaborators after removal, got %d", len(updated.Collaborators))
	}
}

func TestInviteAndJoin(t *testing.T) {
	api := setupAPI(t)
	owner := api.register(t, "owner@x.com", "Owner")
	bob := api.register(t, "bob@x.com", "Bob")
	sheet := api.createSheet(t, owner)

	resp := api.do(t, "POST", "/api/split-sheets/"+sheet.ID+"/invite", bob, nil)
	testutil.AssertStatus(t, resp, fiber.StatusForbidden)

	resp = api.do(t, "POST", "/api/split-sheets/"+sheet.ID+"/invite", owner, nil)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var invite handlers.InviteResponse
	testutil.ParseJSON(t, resp, &invite)
	if invite.Token == "" || !strings.HasSuffix(invite.URL, "/api/split-sheets/join/"+invite.Token) {
		t.Fatalf("Unexpected invite %+v", invite)
	}

	resp = api.do(t, "POST", "/api/split-sheets/join/"+invite.Token, bob, nil)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var joined utils.MessageResponseStruct
	testutil.ParseJSON(t, resp, &joined)
	if joined.Message != "Joined split sheet" {
		t.Errorf("Unexpected join message %q", joined.Message)
	}

	resp = api.do(t, "POST", "/api/split-sheets/join/"+invite.Token, bob, nil)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	testutil.ParseJSON(t, resp, &joined)
	if !strings.Contains(joined.Message, "already") {
		t.Errorf("Expected already-a-collaborator message, got %q", joined.Message)
	}

	resp = api.do(t, "POST", "/api/split-sheets/join/unknown-token", bob, nil)
	testutil.AssertStatus(t, resp, fiber.StatusNotFound)

	for _, path := range []string{"/api/split-sheets/" + sheet.ID, "/api/split-sheets"} {
		for _, token := range []string{owner, bob} {
			resp = api.do(t, "GET", path, token, nil)
			testutil.AssertStatus(t, resp, fiber.StatusOK)
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatal(err)
			}
			if strings.Contains(string(body), invite.Token) || strings.Contains(string(body), "inviteToken") {
				t.Errorf("GET %s exposes the invite token", path)
			}
		}
	}
}

func TestPDFDownload(t *testing.T) {
	api := setupAPI(t)
	owner := api.register(t, "owner@x.com", "Owner")
	sheet := api.createSheet(t, owner)

	for _, path := range []string{"/pdf", "/full-pdf"} {
		resp := api.do(t, "GET", "/api/split-sheets/"+sheet.ID+path, owner, nil)
		testutil.AssertStatus(t, resp, fiber.StatusOK)
		if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("%s: expected application/pdf, got %q", path, ct)
		}
		if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="split-sheet-midnight.pdf"` {
			t.Errorf("%s: unexpected disposition %q", path, cd)
		}
		body, _ := io.ReadAll(resp.Body)
		if !bytes.HasPrefix(body, []byte("%PDF")) {
			t.Errorf("%s: expected a PDF body", path)
		}
	}
}

func TestContactsAndAuditLogs(t *testing.T) {
	api := setupAPI(t)
	owner := api.register(t, "owner@x.com", "Owner")
	api.createSheet(t, owner)

	resp := api.do(t, "GET", "/api/contacts", owner, nil)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var contacts []models.Contact
	testutil.ParseJSON(t, resp, &contacts)
	if len(contacts) != 1 || contacts[0].Email != "alice@x.com" {
		t.Errorf("Expected only alice in the contact book, got %+v", contacts)
	}

	resp = api.do(t, "GET", "/api/audit-logs?limit=1", owner, nil)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var logs []models.AuditLog
	testutil.ParseJSON(t, resp, &logs)
	if len(logs) != 1 || logs[0].Action != models.ActionSheetCreated {
		t.Errorf("Unexpected audit logs %+v", logs)
	}
}

func TestPasswordResetRoutes(t *testing.T) {
	api := setupAPI(t)
	api.register(t, "owner@x.com", "Owner")

	resp := api.do(t, "POST", "/api/auth/otp/request", "", handlers.OTPRequestInput{Email: "ghost@x.com"})
	testutil.AssertStatus(t, resp, fiber.StatusAccepted)

	resp = api.do(t, "POST", "/api/auth/otp/request", "", handlers.OTPRequestInput{})
	testutil.AssertStatus(t, resp, fiber.StatusBadRequest)

	resp = api.do(t, "POST", "/api/auth/otp/verify", "", handlers.OTPVerifyInput{
		Email: "owner@x.com", Code: "123456", NewPassword: "brand-new-password",
	})
	testutil.AssertStatus(t, resp, fiber.StatusUnauthorized)

	resp = api.do(t, "POST", "/api/auth/login", "", handlers.LoginInput{Email: "owner@x.com", Password: "long-enough-pw"})
	testutil.AssertStatus(t, resp, fiber.StatusOK)
}

func TestHealthEndpoint(t *testing.T) {
	api := setupAPI(t)

	resp := api.do(t, "GET", "/api/health", "", nil)
	testutil.AssertStatus(t, resp, fiber.StatusOK)
	var result services.HealthCheckResult
	testutil.ParseJSON(t, resp, &result)
	if result.Status != "healthy" {
		t.Errorf("Expected healthy, got %+v", result)
	}
}
