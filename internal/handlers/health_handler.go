package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/gateway"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db       *gorm.DB
	registry *gateway.Registry
}

func NewHealthHandler(db *gorm.DB, registry *gateway.Registry) *HealthHandler {
	return &HealthHandler{db: db, registry: registry}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	} else if err := sqlDB.PingContext(c.UserContext()); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	return c.JSON(dto.HealthResponse{
		Status:       "ok",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		DB:           dbStatus,
		GatewayCount: h.registry.Count(),
	})
}
