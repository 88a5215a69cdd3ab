package handlers

import (
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type CheckoutHandler struct {
	checkout *services.CheckoutService
}

func NewCheckoutHandler(checkout *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// Checkout signs the caller up for a level. Free checkouts come back active;
// paid ones stay pending until the gateway confirms the payment.
func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	customerID, err := middleware.GetCustomerID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	var req dto.CheckoutRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	resp, err := h.checkout.Checkout(c.UserContext(), customerID, &req)
	if err != nil {
		return serviceError(c, err, "checkout")
	}

	slog.Info("checkout", "customer_id", customerID, "membership_id", resp.MembershipID, "status", resp.Status, "total", resp.Total)
	return c.Status(fiber.StatusCreated).JSON(resp)
}
