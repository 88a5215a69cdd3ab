package middleware

import (
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"
)

// LimiterStorage returns shared Redis storage for rate limit counters, or nil
// to keep them in process memory.
func LimiterStorage(cfg *config.Config) fiber.Storage {
	if cfg.RedisHost == "" {
		return nil
	}
	slog.Info("rate limiter using redis", "host", cfg.RedisHost, "db", cfg.RedisDB)
	return redis.New(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		Database: cfg.RedisDB,
		Reset:    false,
	})
}

// RateLimit allows max requests per window per client IP.
func RateLimit(storage fiber.Storage, limit int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
		Storage:           storage,
	})
}
