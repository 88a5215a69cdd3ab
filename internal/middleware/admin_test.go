package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/config"
)

func TestParseCSV(t *testing.T) {
	assert.Nil(t, parseCSV(""))
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, parseCSV(" A@Example.com, ,b@example.com "))
}

func TestHasAdminToken(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		want       bool
	}{
		{"matching", "secret", "secret", true},
		{"mismatch", "secret", "Secret", false},
		{"missing header", "secret", "", false},
		{"not configured", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{AdminToken: tt.configured}
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				if hasAdminToken(c, cfg) {
					return c.SendStatus(fiber.StatusOK)
				}
				return c.SendStatus(fiber.StatusForbidden)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Admin-Token", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode == fiber.StatusOK)
		})
	}
}

func TestGetCustomerID_NoToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		_, err := GetCustomerID(c)
		assert.Error(t, err)
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
