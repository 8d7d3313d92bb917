package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/saldanamusic/splitsheets/internal/middleware"
)

// Handlers groups every route handler the API mounts.
type Handlers struct {
	Auth     *AuthHandler
	Sheets   *SplitSheetHandler
	Contacts *ContactHandler
	Health   *HealthHandler
}

// SetupRoutes mounts the API under router, typically the /api group.
func SetupRoutes(router fiber.Router, h Handlers) {
	router.Get("/health", h.Health.Health)

	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.Auth.Register)
	authRoutes.Post("/login", h.Auth.Login)
	authRoutes.Post("/otp/request", h.Auth.RequestOTP)
	authRoutes.Post("/otp/verify", h.Auth.VerifyOTP)

	requireAuth := middleware.RequireAuth(h.Auth.Auth)
	authRoutes.Get("/me", requireAuth, h.Auth.Me)

	sheets := router.Group("/split-sheets", requireAuth)
	sheets.Post("/", h.Sheets.Create)
	sheets.Get("/", h.Sheets.List)
	sheets.Post("/join/:token", h.Sheets.Join)
	sheets.Get("/:id", h.Sheets.Get)
	sheets.Delete("/:id", h.Sheets.Delete)
	sheets.Get("/:id/pdf", h.Sheets.SummaryPDF)
	sheets.Get("/:id/full-pdf", h.Sheets.FullPDF)
	sheets.Post("/:id/start-signatures", h.Sheets.StartSignatures)
	sheets.Post("/:id/sign", h.Sheets.Sign)
	sheets.Post("/:id/invite", h.Sheets.Invite)
	sheets.Post("/:id/collaborator", h.Sheets.AddCollaborator)
	sheets.Patch("/:id/collaborator/:email", h.Sheets.UpdateCollaborator)
	sheets.Delete("/:id/collaborator/:email", h.Sheets.RemoveCollaborator)

	router.Get("/contacts", requireAuth, h.Contacts.List)
	router.Get("/audit-logs", requireAuth, h.Contacts.AuditLogs)
}
