package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saldanamusic/splitsheets/internal/types"
)

func decodeError(t *testing.T, body io.Reader) ErrorResponseStruct {
	t.Helper()
	var resp ErrorResponseStruct
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/custom", func(c *fiber.Ctx) error { return types.Conflict("already %s", "started") })
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "bad body") })
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("db exploded") })

	tests := []struct {
		path    string
		status  int
		message string
		typ     string
	}{
		{"/custom", 409, "already started", types.TypeConflict},
		{"/fiber", 400, "bad body", ""},
		{"/plain", 500, "Internal Server Error", "internal"},
	}

	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", tt.path+"?q=1", nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.status, resp.StatusCode)
		}
		body := decodeError(t, resp.Body)
		if body.Message != tt.message || body.Type != tt.typ || body.Ok {
			t.Errorf("%s: unexpected body %+v", tt.path, body)
		}
		if body.URL != tt.path+"?q=1" || body.Method != "GET" || body.Timestamp == "" {
			t.Errorf("%s: expected url, method and timestamp, got %+v", tt.path, body)
		}
	}
}

func TestPDFResponse(t *testing.T) {
	app := fiber.New()
	app.Get("/doc", func(c *fiber.Ctx) error {
		return PDFResponse(c, []byte("%PDF-1.3 test"), "split-sheet-midnight.pdf")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/doc", nil))
	if err != nil {
		t.Fatal(err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Expected application/pdf, got %s", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="split-sheet-midnight.pdf"` {
		t.Errorf("Unexpected Content-Disposition %s", cd)
	}
	if resp.Header.Get("Content-Length") != "13" {
		t.Errorf("Expected Content-Length 13, got %s", resp.Header.Get("Content-Length"))
	}
}

func TestClientIP(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(ClientIP(c)) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	resp, _ := app.Test(req)
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "203.0.113.5" {
		t.Errorf("Expected forwarded address, got %q", body)
	}
}

func TestPingAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if err := PingSMTP(ln.Addr().String()); err != nil {
		t.Errorf("Expected listener to be reachable: %v", err)
	}
	if err := PingService("smtp://"+ln.Addr().String(), time.Second); err != nil {
		t.Errorf("Expected URL form to be reachable: %v", err)
	}
	if err := PingService("::bad url", time.Second); err == nil {
		t.Error("Expected invalid URL to fail")
	}
}
