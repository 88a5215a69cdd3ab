package handlers

import (
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	resp, err := h.authService.Register(c.UserContext(), &req)
	if err != nil {
		return serviceError(c, err, "register")
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	resp, err := h.authService.Login(c.UserContext(), &req, c.IP())
	if err != nil {
		return serviceError(c, err, "login")
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	resp, err := h.authService.Refresh(c.UserContext(), &req)
	if err != nil {
		return serviceError(c, err, "refresh")
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := h.authService.Logout(c.UserContext(), &req); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to logout")
	}

	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

func (h *AuthHandler) DeleteAccount(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req dto.DeleteAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := h.authService.DeleteAccount(c.UserContext(), userID, req.Password); err != nil {
		return serviceError(c, err, "delete account")
	}

	return c.JSON(fiber.Map{"message": "Account deleted successfully"})
}
