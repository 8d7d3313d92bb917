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

package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/saldanamusic/splitsheets/internal/document"
	"github.com/saldanamusic/splitsheets/internal/services"
	"github.com/saldanamusic/splitsheets/internal/types"
	"github.com/saldanamusic/splitsheets/internal/utils"
)

// SplitSheetHandler handles split sheet routes
type SplitSheetHandler struct {
	Sheets *services.SplitSheetService
}

// PercentageInput is the body of a percentage update.
type PercentageInput struct {
	Percentage *types.FlexDecimal `json:"percentage" swaggertype:"number"`
}

// InviteResponse carries a freshly issued invite.
type InviteResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

func emailParam(c *fiber.Ctx) (string, error) {
	email, err := url.PathUnescape(c.Params("email"))
	if err != nil || email == "" {
		return "", types.BadRequest("Invalid collaborator email")
	}
	return email, nil
}

// Create handles POST /api/split-sheets
// @Summary Create a split sheet
// @Description Collaborator percentages must total exactly 100.
// @Tags SplitSheets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateInput true "Split sheet"
// @Success 201 {object} models.SplitSheet
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /split-sheets [post]
func (h *SplitSheetHandler) Create(c *fiber.Ctx) error {
	act, err := actor(c)
	if err != nil {
		return err
	}
	var in services.CreateInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	sheet, err := h.Sheets.Create(c.UserContext(), act, in)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, sheet, fiber.StatusCreated)
}

// List handles GET /api/split-sheets
// @Summary List split sheets
// @Description Sheets the caller owns or collaborates on.
// @Tags SplitSheets
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.SplitSheet
// @Router /split-sheets [get]
func (h *SplitSheetHandler) List(c *fiber.Ctx) error {
	act, err := actor(c)
	if err != nil {
		return err
	}
	sheets, err := h.Sheets.List(c.UserContext(), act)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, sheets, fiber.StatusOK)
}

// Get handles GET /api/split-sheets/:id
// @Summary Get a split sheet
// @Tags SplitSheets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Split sheet id"
// @Success 200 {object} models.SplitSheet
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /split-sheets/{id} [get]
func (h *SplitSheetHandler) Get(c *fiber.Ctx) error {
	act, err := actor(c)
	if err != nil {
		return err
	}
	sheet, err := h.Sheets.Get(c.UserContext(), act, c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, sheet, fiber.StatusOK)
}

func (h *SplitSheetHandler) render(c *fiber.Ctx, kind document.Kind) error {
	act, err := actor(c)
	if err != nil {
		return err
	}
	doc, filename, err := h.Sheets.Render(c.UserContext(), act, c.Params("id"), kind)
	if err != nil {
		return err
	}
	return utils.PDFResponse(c, doc, filename)
}

// SummaryPDF handles GET /api/split-sheets/:id/pdf
// @Summary Download the one page PDF
// @Tags SplitSheets
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Split sheet id"
// @Success 200 {file} binary
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /split-sheets/{id}/pdf [get]
func (h *SplitSheetHandler) SummaryPDF(c *fiber.Ctx) error {
	return h.render(c, document.KindSummary)
}

// FullPDF handles GET /api/split-sheets/:id/full-pdf
// @Summary Download the multi page PDF
// @Tags SplitSheets
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Split sheet id"
// @Success 200 {file} binary
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /split-sheets/{id}/full-pdf [get]
func (h *SplitSheetHandler) FullPDF(c *fiber.Ctx) error {
	return h.render(c, document.KindFull)
}

// StartSignatures handles POST /api/split-sheets/:id/start-signatures
// @Summary Request signatures
// @Tags SplitSheets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Split sheet id"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /split-sheets/{id}/start-signatures [post]
func (h *SplitSheetHandler) StartSignatures(c *fiber.Ctx) error {
	act, err := actor(c)
	if err != nil {
		return err
	}
	sheet, message, err := h.Sheets.StartSignatures(c.UserContext(), act, c.Params("id"))
	if err != nil {
		return err
	}
	return utils.MessageResponse(c, fiber.StatusOK, message, sheet)
}

// Sign handles POST /api/split-sheets/:id/sign
// @Summary Sign a split sheet
// @Description Signing twice returns the sheet unchanged.
// @Tags SplitSheets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Split sheet id"
// @Success 200 {object} models.SplitSheet
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /split-sheets/{id}/sign [post]
func (h *SplitSheetHandler) Sign(c *fiber.Ctx) error {
	act, err := actor(c)
	if err != nil {
		return err
	}
	sheet, err := h.Sheets.Sign(c.UserContext(), act, c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, sheet, fiber.StatusOK)
}

// Invite handles POST /api/split-sheets/:id/invite
// @Summary Issue an invite link
// @Tags SplitSheets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Split sheet id"
// @Success 200 {object} InviteResponse
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /split-sheets/{id}/invite [post]
func (h *SplitSheetHandler) Invite(c *fiber.Ctx) error {
	act, err := actor(c)
	if err != nil {
		return err
	}
	token, err := h.Sheets.GenerateInvite(c.UserContext(), act, c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, InviteResponse{Token: token, URL: h.Sheets.InviteURL(token)}, fiber.StatusOK)
}

// Join handles POST /api/split-sheets/join/:token
// @Summary Join a split sheet through an invite
// @Tags SplitSheets
// @Produce json
// @Security BearerAuth
// @Param token path string true "Invite token"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /split-sheets/join/{token} [post]
func (h *SplitSheetHandler) Join(c *fiber.Ctx) error {
	act, err := actor(c)
	if err != nil {
		return err
	}
	sheet, joined, err := h.Sheets.JoinViaInvite(c.UserContext(), act, c.Params("token"))
	if err != nil {
		return err
	}
	message := "Joined split sheet"
	if !joined {
		message = "You are already a collaborator on this split sheet"
	}
	return utils.MessageResponse(c, fiber.StatusOK, message, sheet)
}

// AddCollaborator handles POST /api/split-sheets/:id/collaborator
// @Summary Add a collaborator
// @Tags SplitSheets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Split sheet id"
// @Param body body services.CollaboratorInput true "Collaborator"
// @Success 200 {object} models.SplitSheet
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /split-sheets/{id}/collaborator [post]
func (h *SplitSheetHandler) AddCollaborator(c *fiber.Ctx) error {
	act, err := actor(c)
	if err != nil {
		return err
	}
	var in services.CollaboratorInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	sheet, err := h.Sheets.AddCollaborator(c.UserContext(), act, c.Params("id"), in)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, sheet, fiber.StatusOK)
}

// UpdateCollaborator handles PATCH /api/split-sheets/:id/collaborator/:email
// @Summary Change a collaborator's percentage
// @Tags SplitSheets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Split sheet id"
// @Param email path string true "Collaborator email"
// @Param body body PercentageInput true "New percentage"
// @Success 200 {object} models.SplitSheet
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /split-sheets/{id}/collaborator/{email} [patch]
func (h *SplitSheetHandler) UpdateCollaborator(c *fiber.Ctx) error {
	act, err := actor(c)
	if err != nil {
		return err
	}
	email, err := emailParam(c)
	if err != nil {
		return err
	}
	var in PercentageInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if in.Percentage == nil {
		return types.BadRequest("Percentage is required")
	}
	sheet, err := h.Sheets.UpdateCollaboratorPercentage(c.UserContext(), act, c.Params("id"), email, in.Percentage.Decimal)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, sheet, fiber.StatusOK)
}

// RemoveCollaborator handles DELETE /api/split-sheets/:id/collaborator/:email
// @Summary Remove a collaborator
// @Tags SplitSheets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Split sheet id"
// @Param email path string true "Collaborator email"
// @Success 200 {object} models.SplitSheet
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /split-sheets/{id}/collaborator/{email} [delete]
func (h *SplitSheetHandler) RemoveCollaborator(c *fiber.Ctx) error {
	act, err := actor(c)
	if err != nil {
		return err
	}
	email, err := emailParam(c)
	if err != nil {
		return err
	}
	sheet, err := h.Sheets.RemoveCollaborator(c.UserContext(), act, c.Params("id"), email)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, sheet, fiber.StatusOK)
}

// Delete handles DELETE /api/split-sheets/:id
// @Summary Delete a split sheet
// @Description Completed sheets cannot be deleted.
// @Tags SplitSheets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Split sheet id"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /split-sheets/{id} [delete]
func (h *SplitSheetHandler) Delete(c *fiber.Ctx) error {
	act, err := actor(c)
	if err != nil {
		return err
	}
	if err := h.Sheets.Delete(c.UserContext(), act, c.Params("id")); err != nil {
		return err
	}
	return utils.MessageResponse(c, fiber.StatusOK, "Split sheet deleted", nil)
}
