package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type WebhookHandler struct {
	gatewayService *services.GatewayService
	registry       *gateway.Registry
}

func NewWebhookHandler(gatewayService *services.GatewayService, registry *gateway.Registry) *WebhookHandler {
	return &WebhookHandler{
		gatewayService: gatewayService,
		registry:       registry,
	}
}

// Handle routes webhooks by the :gateway path param. The raw body must be
// signed with the gateway's secret.
func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	name := c.Params("gateway")
	if name == "" || name == gateway.Manual || !h.registry.Enabled(name) {
		return errorJSON(c, fiber.StatusNotFound, "Unknown gateway")
	}

	secret := h.registry.WebhookSecret(name)
	if secret == "" {
		return errorJSON(c, fiber.StatusNotFound, "Webhooks not configured for this gateway")
	}

	body := c.Body()
	if !gateway.VerifySignature(body, c.Get(gateway.SignatureHeader), secret) {
		slog.Warn("webhook signature mismatch", "gateway", name, "ip", c.IP())
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var webhook dto.GatewayWebhook
	if err := json.Unmarshal(body, &webhook); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid webhook payload")
	}
	if err := dto.Validate(&webhook); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	processed, err := h.gatewayService.HandleEvent(c.UserContext(), name, &webhook, body)
	if errors.Is(err, services.ErrUnknownEventType) {
		slog.Info("webhook event ignored", "gateway", name, "event_type", webhook.Type)
		return c.JSON(fiber.Map{"received": true, "ignored": true})
	}
	if err != nil {
		slog.Error("webhook processing failed", "gateway", name, "event_id", webhook.ID, "event_type", webhook.Type, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to process webhook event")
	}

	slog.Info("webhook processed", "gateway", name, "event_type", webhook.Type, "duplicate", !processed)
	return c.JSON(fiber.Map{"received": true, "duplicate": !processed})
}
