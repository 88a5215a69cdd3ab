package handlers

import (
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type CustomerHandler struct {
	customers *services.CustomerService
}

func NewCustomerHandler(customers *services.CustomerService) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

// Me returns the caller's customer record with its memberships.
func (h *CustomerHandler) Me(c *fiber.Ctx) error {
	customerID, err := middleware.GetCustomerID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	customer, err := h.customers.Get(c.UserContext(), customerID)
	if err != nil {
		return serviceError(c, err, "get customer")
	}
	return c.JSON(customer)
}

func (h *CustomerHandler) List(c *fiber.Ctx) error {
	customers, total, err := h.customers.List(c.UserContext(), c.Query("search"), c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		return serviceError(c, err, "list customers")
	}
	return paginated(c, customers, total)
}

func (h *CustomerHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	customer, err := h.customers.Get(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err, "get customer")
	}
	return c.JSON(customer)
}

func (h *CustomerHandler) Update(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.UpdateCustomerRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	customer, err := h.customers.SetEmailVerification(c.UserContext(), id, req.EmailVerification)
	if err != nil {
		return serviceError(c, err, "update customer")
	}
	return c.JSON(customer)
}

func (h *CustomerHandler) AddNote(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.CustomerNoteRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	customer, err := h.customers.AddNote(c.UserContext(), id, req.Note)
	if err != nil {
		return serviceError(c, err, "add customer note")
	}
	return c.JSON(customer)
}

func (h *CustomerHandler) Delete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.customers.Delete(c.UserContext(), id); err != nil {
		return serviceError(c, err, "delete customer")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
