package handlers

import (
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type DiscountHandler struct {
	discounts *services.DiscountService
	levels    *services.LevelService
}

func NewDiscountHandler(discounts *services.DiscountService, levels *services.LevelService) *DiscountHandler {
	return &DiscountHandler{discounts: discounts, levels: levels}
}

func (h *DiscountHandler) List(c *fiber.Ctx) error {
	discounts, err := h.discounts.List(c.UserContext(), c.Query("status"))
	if err != nil {
		return serviceError(c, err, "list discounts")
	}
	return c.JSON(fiber.Map{"data": discounts})
}

func (h *DiscountHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	d, err := h.discounts.Get(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err, "get discount")
	}
	return c.JSON(d)
}

func (h *DiscountHandler) Create(c *fiber.Ctx) error {
	var req dto.DiscountRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	d, err := h.discounts.Create(c.UserContext(), &req)
	if err != nil {
		return serviceError(c, err, "create discount")
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

func (h *DiscountHandler) Update(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.DiscountRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	d, err := h.discounts.Update(c.UserContext(), id, &req)
	if err != nil {
		return serviceError(c, err, "update discount")
	}
	return c.JSON(d)
}

func (h *DiscountHandler) Delete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.discounts.Delete(c.UserContext(), id); err != nil {
		return serviceError(c, err, "delete discount")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Validate previews a code against a level for the caller. An unusable code
// is reported with valid=false rather than an error status.
func (h *DiscountHandler) Validate(c *fiber.Ctx) error {
	customerID, err := middleware.GetCustomerID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req dto.ValidateDiscountRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	level, err := h.levels.Get(c.UserContext(), req.LevelID)
	if err != nil {
		return serviceError(c, err, "validate discount")
	}

	resp := dto.ValidateDiscountResponse{
		Code:     services.NormalizeCode(req.Code),
		Subtotal: level.Price,
		Total:    level.Price,
	}
	d, err := h.discounts.Validate(c.UserContext(), req.Code, level.ID, customerID)
	if err != nil {
		if status := statusFor(err); status == fiber.StatusUnprocessableEntity || status == fiber.StatusNotFound {
			return c.JSON(fiber.Map{"valid": false, "code": resp.Code, "message": err.Error()})
		}
		return serviceError(c, err, "validate discount")
	}

	resp.Valid = true
	resp.DiscountAmount = services.Apply(d, level.Price)
	resp.Total = level.Price - resp.DiscountAmount
	return c.JSON(resp)
}
