package handlers

import (
	"context"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) List(c *fiber.Ctx) error {
	customerID, err := queryUUID(c, "customer_id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	membershipID, err := queryUUID(c, "membership_id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	payments, total, err := h.payments.List(c.UserContext(), dto.PaymentFilter{
		CustomerID:   customerID,
		MembershipID: membershipID,
		Status:       c.Query("status"),
		Limit:        c.QueryInt("limit"),
		Offset:       c.QueryInt("offset"),
	})
	if err != nil {
		return serviceError(c, err, "list payments")
	}
	return paginated(c, payments, total)
}

// MyPayments lists the caller's payment history.
func (h *PaymentHandler) MyPayments(c *fiber.Ctx) error {
	customerID, err := middleware.GetCustomerID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	payments, total, err := h.payments.List(c.UserContext(), dto.PaymentFilter{
		CustomerID: customerID,
		Limit:      c.QueryInt("limit"),
		Offset:     c.QueryInt("offset"),
	})
	if err != nil {
		return serviceError(c, err, "list payments")
	}
	return paginated(c, payments, total)
}

func (h *PaymentHandler) Create(c *fiber.Ctx) error {
	var req dto.CreatePaymentRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	p, err := h.payments.Create(c.UserContext(), &req)
	if err != nil {
		return serviceError(c, err, "create payment")
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *PaymentHandler) Get(c *fiber.Ctx) error {
	return h.apply(c, "get payment", h.payments.Get)
}

func (h *PaymentHandler) Complete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.CompletePaymentRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		}
	}

	p, err := h.payments.Complete(c.UserContext(), id, req.TransactionID)
	if err != nil {
		return serviceError(c, err, "complete payment")
	}
	return c.JSON(p)
}

func (h *PaymentHandler) Fail(c *fiber.Ctx) error {
	return h.apply(c, "fail payment", h.payments.Fail)
}

func (h *PaymentHandler) Refund(c *fiber.Ctx) error {
	return h.apply(c, "refund payment", h.payments.Refund)
}

func (h *PaymentHandler) apply(c *fiber.Ctx, action string, fn func(ctx context.Context, id uuid.UUID) (*models.Payment, error)) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	p, err := fn(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err, action)
	}
	return c.JSON(p)
}
