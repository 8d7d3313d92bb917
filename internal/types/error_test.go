package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestCustomErrorIs(t *testing.T) {
	base := Conflict("split sheet is not in DRAFT")
	wrapped := fmt.Errorf("start signatures: %w", base)

	if !errors.Is(wrapped, &CustomError{Code: fiber.StatusConflict, Type: TypeConflict}) {
		t.Error("Expected wrapped conflict to match by code and type")
	}
	if errors.Is(wrapped, &CustomError{Code: fiber.StatusNotFound, Type: TypeNotFound}) {
		t.Error("Did not expect conflict to match not found")
	}
}

func TestStatusOf(t *testing.T) {
	if got := StatusOf(Forbidden("nope")); got != fiber.StatusForbidden {
		t.Errorf("Expected 403, got %d", got)
	}
	if got := StatusOf(fmt.Errorf("wrap: %w", NotFound("missing"))); got != fiber.StatusNotFound {
		t.Errorf("Expected 404, got %d", got)
	}
	if got := StatusOf(fiber.NewError(fiber.StatusTeapot, "tea")); got != fiber.StatusTeapot {
		t.Errorf("Expected 418, got %d", got)
	}
	if got := StatusOf(errors.New("boom")); got != fiber.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", got)
	}
}
