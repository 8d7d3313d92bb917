package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/saldanamusic/splitsheets/internal/services"
	"github.com/saldanamusic/splitsheets/internal/utils"
)

// ContactHandler handles the contact book and audit log routes
type ContactHandler struct {
	Contacts *services.ContactService
	Audit    *services.AuditService
}

// List handles GET /api/contacts
// @Summary List saved contacts
// @Tags Contacts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Contact
// @Router /contacts [get]
func (h *ContactHandler) List(c *fiber.Ctx) error {
	act, err := actor(c)
	if err != nil {
		return err
	}
	contacts, err := h.Contacts.List(c.UserContext(), act.UserID)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, contacts, fiber.StatusOK)
}

// AuditLogs handles GET /api/audit-logs
// @Summary List the caller's audit entries
// @Tags Contacts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum rows (1-100)"
// @Success 200 {array} models.AuditLog
// @Router /audit-logs [get]
func (h *ContactHandler) AuditLogs(c *fiber.Ctx) error {
	act, err := actor(c)
	if err != nil {
		return err
	}
	logs, err := h.Audit.List(c.UserContext(), act.UserID, queryInt(c, "limit", services.MaxAuditLogs))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, logs, fiber.StatusOK)
}
