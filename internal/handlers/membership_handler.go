package handlers

import (
	"context"
	"strconv"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type MembershipHandler struct {
	memberships *services.MembershipService
}

func NewMembershipHandler(memberships *services.MembershipService) *MembershipHandler {
	return &MembershipHandler{memberships: memberships}
}

func (h *MembershipHandler) List(c *fiber.Ctx) error {
	customerID, err := queryUUID(c, "customer_id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	levelID, err := queryUUID(c, "level_id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	memberships, total, err := h.memberships.List(c.UserContext(), dto.MembershipFilter{
		CustomerID: customerID,
		LevelID:    levelID,
		Status:     c.Query("status"),
		Limit:      c.QueryInt("limit"),
		Offset:     c.QueryInt("offset"),
	})
	if err != nil {
		return serviceError(c, err, "list memberships")
	}
	return paginated(c, memberships, total)
}

func (h *MembershipHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateMembershipRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	m, err := h.memberships.Create(c.UserContext(), &req)
	if err != nil {
		return serviceError(c, err, "create membership")
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

func (h *MembershipHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	m, err := h.memberships.Get(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err, "get membership")
	}
	return c.JSON(m)
}

// SetStatus applies an administrator's status change through the lifecycle.
func (h *MembershipHandler) SetStatus(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.MembershipStatusRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	m, err := h.memberships.SetStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return serviceError(c, err, "set membership status")
	}
	return c.JSON(m)
}

func (h *MembershipHandler) SetExpiration(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.MembershipExpirationRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	m, err := h.memberships.SetExpiration(c.UserContext(), id, req.ExpirationDate)
	if err != nil {
		return serviceError(c, err, "set membership expiration")
	}
	return c.JSON(m)
}

func (h *MembershipHandler) Renew(c *fiber.Ctx) error {
	return h.apply(c, "renew membership", h.memberships.Renew)
}

func (h *MembershipHandler) Disable(c *fiber.Ctx) error {
	return h.apply(c, "disable membership", h.memberships.Disable)
}

func (h *MembershipHandler) Enable(c *fiber.Ctx) error {
	return h.apply(c, "enable membership", h.memberships.Enable)
}

func (h *MembershipHandler) Cancel(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.CancelMembershipRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		}
	}

	m, err := h.memberships.Cancel(c.UserContext(), id, req.Reason)
	if err != nil {
		return serviceError(c, err, "cancel membership")
	}
	return c.JSON(m)
}

func (h *MembershipHandler) apply(c *fiber.Ctx, action string, fn func(ctx context.Context, id uuid.UUID) (*models.Membership, error)) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	m, err := fn(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err, action)
	}
	return c.JSON(m)
}

// MyMemberships lists the caller's memberships.
func (h *MembershipHandler) MyMemberships(c *fiber.Ctx) error {
	customerID, err := middleware.GetCustomerID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	memberships, total, err := h.memberships.List(c.UserContext(), dto.MembershipFilter{
		CustomerID: customerID,
		Status:     c.Query("status"),
		Limit:      c.QueryInt("limit"),
		Offset:     c.QueryInt("offset"),
	})
	if err != nil {
		return serviceError(c, err, "list memberships")
	}
	return paginated(c, memberships, total)
}

// CancelMine lets a customer cancel one of their own memberships.
func (h *MembershipHandler) CancelMine(c *fiber.Ctx) error {
	customerID, err := middleware.GetCustomerID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	if _, err := h.memberships.GetForCustomer(c.UserContext(), customerID, id); err != nil {
		return serviceError(c, err, "cancel membership")
	}
	m, err := h.memberships.Cancel(c.UserContext(), id, "Cancelled by the customer.")
	if err != nil {
		return serviceError(c, err, "cancel membership")
	}
	return c.JSON(m)
}

// Access reports whether the caller holds an active membership at or above
// the requested access level.
func (h *MembershipHandler) Access(c *fiber.Ctx) error {
	customerID, err := middleware.GetCustomerID(c)
	if err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	level, err := strconv.Atoi(c.Query("level", "0"))
	if err != nil || level < 0 {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid level")
	}

	ok, err := h.memberships.CanAccess(c.UserContext(), customerID, level)
	if err != nil {
		return serviceError(c, err, "check access")
	}
	return c.JSON(dto.AccessResponse{AccessLevel: level, HasAccess: ok})
}
