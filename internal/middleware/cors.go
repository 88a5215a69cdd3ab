package middleware

import (
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/gateway"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func CORS(cfg *config.Config) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Authorization, Accept, X-Admin-Token, " + gateway.SignatureHeader,
		AllowMethods:     "GET, POST, PUT, DELETE, PATCH, OPTIONS",
		AllowCredentials: false,
	})
}
