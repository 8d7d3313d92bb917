package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/saldanamusic/splitsheets/internal/middleware"
	"github.com/saldanamusic/splitsheets/internal/services"
	"github.com/saldanamusic/splitsheets/internal/types"
	"github.com/saldanamusic/splitsheets/internal/utils"
)

// AuthHandler handles account routes
type AuthHandler struct {
	Auth *services.AuthService
}

// RegisterInput is the body of a register request.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OTPRequestInput is the body of a reset code request.
type OTPRequestInput struct {
	Email string `json:"email"`
}

// OTPVerifyInput is the body of a reset code verification.
type OTPVerifyInput struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

// Register handles POST /api/auth/register
// @Summary Register an account
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RegisterInput true "Account"
// @Success 201 {object} services.AuthResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in RegisterInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	result, err := h.Auth.Register(c.UserContext(), in.Email, in.Password, in.Name)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, result, fiber.StatusCreated)
}

// Login handles POST /api/auth/login
// @Summary Log in
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginInput true "Credentials"
// @Success 200 {object} services.AuthResult
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in LoginInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	result, err := h.Auth.Login(c.UserContext(), in.Email, in.Password)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, result, fiber.StatusOK)
}

// RequestOTP handles POST /api/auth/otp/request
// @Summary Request a password reset code
// @Description Always accepted, whether or not the email has an account.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body OTPRequestInput true "Email"
// @Success 202 {object} utils.MessageResponseStruct
// @Router /auth/otp/request [post]
func (h *AuthHandler) RequestOTP(c *fiber.Ctx) error {
	var in OTPRequestInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if in.Email == "" {
		return types.BadRequest("Email is required")
	}
	if err := h.Auth.RequestOTP(c.UserContext(), in.Email); err != nil {
		return err
	}
	return utils.MessageResponse(c, fiber.StatusAccepted, "If an account exists, a reset code has been sent", nil)
}

// VerifyOTP handles POST /api/auth/otp/verify
// @Summary Reset a password with a code
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body OTPVerifyInput true "Code and new password"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /auth/otp/verify [post]
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var in OTPVerifyInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if err := h.Auth.VerifyOTP(c.UserContext(), in.Email, in.Code, in.NewPassword); err != nil {
		return err
	}
	return utils.MessageResponse(c, fiber.StatusOK, "Password updated", nil)
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return types.Unauthorized("Authentication required")
	}
	return utils.SuccessResponse(c, user, fiber.StatusOK)
}
