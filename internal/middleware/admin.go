package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// AdminRequired admits X-Admin-Token holders, configured admin emails and
// user IDs, and users whose stored role is admin. The role is read from the
// database, not the token, so a demotion takes effect immediately.
func AdminRequired(db *gorm.DB, cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)
	adminUserIDs := parseCSV(cfg.AdminUserIDs)

	return func(c *fiber.Ctx) error {
		if hasAdminToken(c, cfg) {
			return c.Next()
		}

		mc, err := claims(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		email, _ := mc["email"].(string)
		sub, _ := mc["sub"].(string)

		if lo.Contains(adminEmails, strings.ToLower(email)) || lo.Contains(adminUserIDs, sub) {
			return c.Next()
		}

		if userID, err := uuid.Parse(sub); err == nil {
			var user models.User
			if err := db.WithContext(c.UserContext()).First(&user, "id = ?", userID).Error; err == nil {
				if user.Role == models.RoleAdmin {
					return c.Next()
				}
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Admin access required",
		})
	}
}

func hasAdminToken(c *fiber.Ctx, cfg *config.Config) bool {
	token := c.Get("X-Admin-Token")
	return cfg.AdminToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cfg.AdminToken)) == 1
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(p))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
