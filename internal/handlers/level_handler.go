package handlers

import (
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type LevelHandler struct {
	levels *services.LevelService
}

func NewLevelHandler(levels *services.LevelService) *LevelHandler {
	return &LevelHandler{levels: levels}
}

// ListActive is the public catalog of levels open for checkout.
func (h *LevelHandler) ListActive(c *fiber.Ctx) error {
	levels, err := h.levels.List(c.UserContext(), true)
	if err != nil {
		return serviceError(c, err, "list levels")
	}
	return c.JSON(fiber.Map{"data": levels})
}

func (h *LevelHandler) List(c *fiber.Ctx) error {
	levels, err := h.levels.List(c.UserContext(), c.QueryBool("active_only"))
	if err != nil {
		return serviceError(c, err, "list levels")
	}
	return c.JSON(fiber.Map{"data": levels})
}

func (h *LevelHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	level, err := h.levels.Get(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err, "get level")
	}
	counts, err := h.levels.CountMembers(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err, "count level members")
	}

	return c.JSON(fiber.Map{"level": level, "members": counts})
}

func (h *LevelHandler) Create(c *fiber.Ctx) error {
	var req dto.LevelRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	level, err := h.levels.Create(c.UserContext(), &req)
	if err != nil {
		return serviceError(c, err, "create level")
	}
	return c.Status(fiber.StatusCreated).JSON(level)
}

func (h *LevelHandler) Update(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.LevelRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	level, err := h.levels.Update(c.UserContext(), id, &req)
	if err != nil {
		return serviceError(c, err, "update level")
	}
	return c.JSON(level)
}

func (h *LevelHandler) Delete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.levels.Delete(c.UserContext(), id); err != nil {
		return serviceError(c, err, "delete level")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
