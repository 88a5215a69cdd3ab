package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func claims(c *fiber.Ctx) (jwt.MapClaims, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return nil, errors.New("invalid token in context")
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	return mc, nil
}

func uuidClaim(c *fiber.Ctx, name string) (uuid.UUID, error) {
	mc, err := claims(c)
	if err != nil {
		return uuid.Nil, err
	}
	raw, ok := mc[name].(string)
	if !ok {
		return uuid.Nil, errors.New("missing " + name + " claim")
	}
	return uuid.Parse(raw)
}

// GetUserID extracts the user UUID from JWT claims in context.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuidClaim(c, "sub")
}

// GetCustomerID extracts the customer UUID issued alongside the user.
func GetCustomerID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuidClaim(c, "customer_id")
}
