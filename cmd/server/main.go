package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/batch"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/worker"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	stdoutHandler := logging.Setup(cfg.LogLevel)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Gateway registry. Without a config file only manual payments work.
	registry, err := gateway.LoadFromFile(cfg.GatewaysConfigPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Warn("gateways config not found, only manual payments enabled", "path", cfg.GatewaysConfigPath)
		registry = gateway.NewRegistry()
	case err != nil:
		slog.Error("failed to load gateways config", "path", cfg.GatewaysConfigPath, "error", err)
		os.Exit(1)
	}
	slog.Info("gateway registry loaded", "gateways", registry.Names())

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	dbLogHandler := logging.NewDBHandler(database.DB, 5*time.Second)
	slog.SetDefault(slog.New(logging.NewMultiHandler(stdoutHandler, dbLogHandler)))

	done := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, done)

	// Services
	settingsService := services.NewSettingsService(database.DB)
	if err := settingsService.SeedDefaults(context.Background()); err != nil {
		slog.Error("failed to seed settings", "error", err)
		os.Exit(1)
	}
	customerService := services.NewCustomerService(database.DB)
	levelService := services.NewLevelService(database.DB)
	membershipService := services.NewMembershipService(database.DB, settingsService)
	discountService := services.NewDiscountService(database.DB)
	paymentService := services.NewPaymentService(database.DB, membershipService, discountService)
	checkoutService := services.NewCheckoutService(database.DB, settingsService, membershipService, paymentService, discountService, registry)
	gatewayService := services.NewGatewayService(database.DB, membershipService, paymentService)
	authService := services.NewAuthService(database.DB, cfg, customerService, membershipService)

	// Batch jobs
	exporter := services.NewExportProcessor(database.DB, cfg.ExportDir)
	runner := batch.NewRunner(database.DB, batch.NewRegistry(
		services.NewImportProcessor(database.DB, membershipService, cfg.ImportDir),
		exporter,
		services.NewExpireProcessor(membershipService),
	), func(ctx context.Context) int {
		if n := settingsService.Int(ctx, services.SettingBatchStepSize); n > 0 {
			return n
		}
		return cfg.BatchStepSize
	})
	if cfg.BatchAutoRun {
		runner.Start(cfg.BatchInterval, done)
	}

	worker.StartExpiration(membershipService, cfg.ExpirationCheckInterval, done)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    16 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	routes.Setup(app, cfg, database.DB, routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService),
		Health:     handlers.NewHealthHandler(database.DB, registry),
		Webhook:    handlers.NewWebhookHandler(gatewayService, registry),
		Level:      handlers.NewLevelHandler(levelService),
		Customer:   handlers.NewCustomerHandler(customerService),
		Membership: handlers.NewMembershipHandler(membershipService),
		Payment:    handlers.NewPaymentHandler(paymentService),
		Discount:   handlers.NewDiscountHandler(discountService, levelService),
		Checkout:   handlers.NewCheckoutHandler(checkoutService),
		Settings:   handlers.NewSettingsHandler(settingsService),
		Batch:      handlers.NewBatchHandler(runner, exporter, cfg.ImportDir),
		Log:        handlers.NewLogHandler(database.DB),
	}, middleware.LimiterStorage(cfg))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(done)
	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	dbLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
