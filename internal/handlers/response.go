package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/batch"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/membership"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// errorStatuses maps service errors to HTTP status codes. Anything not
// listed is a 500 and its message is not shown to the client.
var errorStatuses = []struct {
	err    error
	status int
}{
	{services.ErrCustomerNotFound, fiber.StatusNotFound},
	{services.ErrLevelNotFound, fiber.StatusNotFound},
	{services.ErrMembershipNotFound, fiber.StatusNotFound},
	{services.ErrPaymentNotFound, fiber.StatusNotFound},
	{services.ErrDiscountNotFound, fiber.StatusNotFound},
	{services.ErrSettingNotFound, fiber.StatusNotFound},
	{services.ErrUserNotFound, fiber.StatusNotFound},
	{batch.ErrJobNotFound, fiber.StatusNotFound},

	{services.ErrEmailTaken, fiber.StatusConflict},
	{services.ErrCustomerExists, fiber.StatusConflict},
	{services.ErrCustomerHasAccess, fiber.StatusConflict},
	{services.ErrLevelInUse, fiber.StatusConflict},
	{services.ErrDiscountCodeTaken, fiber.StatusConflict},
	{services.ErrNotRenewable, fiber.StatusConflict},
	{services.ErrPaymentStatus, fiber.StatusConflict},
	{membership.ErrInvalidTransition, fiber.StatusConflict},
	{batch.ErrJobExists, fiber.StatusConflict},
	{batch.ErrJobLocked, fiber.StatusConflict},

	{services.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{services.ErrInvalidToken, fiber.StatusUnauthorized},

	{services.ErrPasswordRequired, fiber.StatusBadRequest},
	{services.ErrInvalidInput, fiber.StatusBadRequest},
	{membership.ErrInvalidUnit, fiber.StatusBadRequest},
	{services.ErrInvalidSetting, fiber.StatusBadRequest},
	{services.ErrLevelInactive, fiber.StatusBadRequest},
	{services.ErrGatewayUnavailable, fiber.StatusBadRequest},
	{membership.ErrInvalidStatus, fiber.StatusBadRequest},
	{batch.ErrUnknownProcessor, fiber.StatusBadRequest},
	{batch.ErrInvalidStepSize, fiber.StatusBadRequest},

	{services.ErrDiscountInactive, fiber.StatusUnprocessableEntity},
	{services.ErrDiscountExpired, fiber.StatusUnprocessableEntity},
	{services.ErrDiscountMaxedOut, fiber.StatusUnprocessableEntity},
	{services.ErrDiscountNotForLevel, fiber.StatusUnprocessableEntity},
	{services.ErrDiscountAlreadyUsed, fiber.StatusUnprocessableEntity},
}

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

// serviceError writes the response for an error returned by a service.
func serviceError(c *fiber.Ctx, err error, action string) error {
	if status := statusFor(err); status != fiber.StatusInternalServerError {
		return errorJSON(c, status, err.Error())
	}
	slog.Error(action+" failed", "path", c.Path(), "request_id", c.Locals("requestid"), "error", err)
	return errorJSON(c, fiber.StatusInternalServerError, "Internal server error")
}

func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return fiber.StatusInternalServerError
}

// parseBody decodes and validates a JSON body into req.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return errors.New("Invalid request body")
	}
	return dto.Validate(req)
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, errors.New("Invalid " + name)
	}
	return id, nil
}

// queryUUID parses an optional UUID query parameter. A missing value is uuid.Nil.
func queryUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("Invalid " + name)
	}
	return id, nil
}

func paginated(c *fiber.Ctx, data any, total int64) error {
	limit, offset := database.ClampPage(c.QueryInt("limit"), c.QueryInt("offset"))
	return c.JSON(dto.PaginatedResponse{Data: data, Total: total, Limit: limit, Offset: offset})
}
