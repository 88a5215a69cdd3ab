package handlers

import (
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type SettingsHandler struct {
	settings *services.SettingsService
}

func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) List(c *fiber.Ctx) error {
	all, err := h.settings.All(c.UserContext())
	if err != nil {
		return serviceError(c, err, "list settings")
	}
	return c.JSON(all)
}

func (h *SettingsHandler) Set(c *fiber.Ctx) error {
	var req dto.SettingRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	setting, err := h.settings.Set(c.UserContext(), c.Params("key"), req.Value, req.Type)
	if err != nil {
		return serviceError(c, err, "set setting")
	}
	return c.JSON(setting)
}

func (h *SettingsHandler) Delete(c *fiber.Ctx) error {
	if err := h.settings.Delete(c.UserContext(), c.Params("key")); err != nil {
		return serviceError(c, err, "delete setting")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
