package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Handlers groups every HTTP handler the API exposes.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Health     *handlers.HealthHandler
	Webhook    *handlers.WebhookHandler
	Level      *handlers.LevelHandler
	Customer   *handlers.CustomerHandler
	Membership *handlers.MembershipHandler
	Payment    *handlers.PaymentHandler
	Discount   *handlers.DiscountHandler
	Checkout   *handlers.CheckoutHandler
	Settings   *handlers.SettingsHandler
	Batch      *handlers.BatchHandler
	Log        *handlers.LogHandler
}

func Setup(app *fiber.App, cfg *config.Config, db *gorm.DB, h Handlers, limiterStorage fiber.Storage) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(middleware.RateLimit(limiterStorage, 60, 1*time.Minute))

	api.Get("/health", h.Health.Check)
	api.Get("/levels", h.Level.ListActive)

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	auth := api.Group("/auth")
	auth.Use(middleware.RateLimit(limiterStorage, 10, 1*time.Minute))
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)

	// JWT is applied per route so the public routes above stay open.
	api.Post("/auth/logout", middleware.JWTProtected(cfg), h.Auth.Logout)
	api.Delete("/auth/account", middleware.JWTProtected(cfg), h.Auth.DeleteAccount)

	// Webhooks are authenticated by the gateway's signature, not JWT.
	api.Post("/webhooks/:gateway", h.Webhook.Handle)

	// Customer self-service
	me := api.Group("/me", middleware.JWTProtected(cfg))
	me.Get("/", h.Customer.Me)
	me.Get("/memberships", h.Membership.MyMemberships)
	me.Post("/memberships/:id/cancel", h.Membership.CancelMine)
	me.Get("/payments", h.Payment.MyPayments)
	me.Get("/access", h.Membership.Access)

	api.Post("/checkout", middleware.JWTProtected(cfg), h.Checkout.Checkout)
	api.Post("/discounts/validate", middleware.JWTProtected(cfg), h.Discount.Validate)

	admin := api.Group("/admin", middleware.AdminJWT(cfg), middleware.AdminRequired(db, cfg))

	admin.Get("/levels", h.Level.List)
	admin.Post("/levels", h.Level.Create)
	admin.Get("/levels/:id", h.Level.Get)
	admin.Put("/levels/:id", h.Level.Update)
	admin.Delete("/levels/:id", h.Level.Delete)

	admin.Get("/customers", h.Customer.List)
	admin.Get("/customers/:id", h.Customer.Get)
	admin.Put("/customers/:id", h.Customer.Update)
	admin.Post("/customers/:id/notes", h.Customer.AddNote)
	admin.Delete("/customers/:id", h.Customer.Delete)

	admin.Get("/memberships", h.Membership.List)
	admin.Post("/memberships", h.Membership.Create)
	admin.Get("/memberships/:id", h.Membership.Get)
	admin.Put("/memberships/:id/status", h.Membership.SetStatus)
	admin.Put("/memberships/:id/expiration", h.Membership.SetExpiration)
	admin.Post("/memberships/:id/renew", h.Membership.Renew)
	admin.Post("/memberships/:id/cancel", h.Membership.Cancel)
	admin.Post("/memberships/:id/disable", h.Membership.Disable)
	admin.Post("/memberships/:id/enable", h.Membership.Enable)

	admin.Get("/payments", h.Payment.List)
	admin.Post("/payments", h.Payment.Create)
	admin.Get("/payments/:id", h.Payment.Get)
	admin.Post("/payments/:id/complete", h.Payment.Complete)
	admin.Post("/payments/:id/fail", h.Payment.Fail)
	admin.Post("/payments/:id/refund", h.Payment.Refund)

	admin.Get("/discounts", h.Discount.List)
	admin.Post("/discounts", h.Discount.Create)
	admin.Get("/discounts/:id", h.Discount.Get)
	admin.Put("/discounts/:id", h.Discount.Update)
	admin.Delete("/discounts/:id", h.Discount.Delete)

	admin.Get("/settings", h.Settings.List)
	admin.Put("/settings/:key", h.Settings.Set)
	admin.Delete("/settings/:key", h.Settings.Delete)

	admin.Get("/batch", h.Batch.List)
	admin.Post("/batch", h.Batch.Create)
	admin.Post("/batch/import", h.Batch.Import)
	admin.Get("/batch/:id", h.Batch.Get)
	admin.Post("/batch/:id/step", h.Batch.Step)
	admin.Post("/batch/:id/reset", h.Batch.Reset)
	admin.Delete("/batch/:id", h.Batch.Delete)
	admin.Get("/batch/:id/download", h.Batch.Download)

	admin.Get("/logs", h.Log.List)
}
