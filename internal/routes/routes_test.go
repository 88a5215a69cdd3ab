package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/batch"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/testutil"
)

const (
	testAdminToken    = "admin-token-for-tests"
	testWebhookSecret = "whsec_routes"
)

type testServer struct {
	app *fiber.App
	db  *gorm.DB
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cfg := &config.Config{
		JWTSecret:        "routes-test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: time.Hour,
		AdminToken:       testAdminToken,
	}

	registry := gateway.NewRegistry()
	registry.Register(&gateway.Config{Name: "stripe", WebhookSecret: testWebhookSecret, Enabled: true})

	settings := services.NewSettingsService(db)
	customers := services.NewCustomerService(db)
	levels := services.NewLevelService(db)
	memberships := services.NewMembershipService(db, settings)
	discounts := services.NewDiscountService(db)
	payments := services.NewPaymentService(db, memberships, discounts)
	checkout := services.NewCheckoutService(db, settings, memberships, payments, discounts, registry)
	gateways := services.NewGatewayService(db, memberships, payments)
	auth := services.NewAuthService(db, cfg, customers, memberships)

	exporter := services.NewExportProcessor(db, t.TempDir())
	runner := batch.NewRunner(db, batch.NewRegistry(exporter), func(context.Context) int { return 10 })

	app := fiber.New()
	Setup(app, cfg, db, Handlers{
		Auth:       handlers.NewAuthHandler(auth),
		Health:     handlers.NewHealthHandler(db, registry),
		Webhook:    handlers.NewWebhookHandler(gateways, registry),
		Level:      handlers.NewLevelHandler(levels),
		Customer:   handlers.NewCustomerHandler(customers),
		Membership: handlers.NewMembershipHandler(memberships),
		Payment:    handlers.NewPaymentHandler(payments),
		Discount:   handlers.NewDiscountHandler(discounts, levels),
		Checkout:   handlers.NewCheckoutHandler(checkout),
		Settings:   handlers.NewSettingsHandler(settings),
		Batch:      handlers.NewBatchHandler(runner, exporter, t.TempDir()),
		Log:        handlers.NewLogHandler(db),
	}, nil)

	return &testServer{app: app, db: db}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if raw, ok := body.([]byte); ok {
		reader = bytes.NewReader(raw)
	} else if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (s *testServer) register(t *testing.T, email string) dto.AuthResponse {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/auth/register", dto.RegisterRequest{
		Email: email, Password: "password123",
	}, nil)
	require.Equal(t, http.StatusCreated, status, string(body))

	var resp dto.AuthResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealthAndPublicLevels(t *testing.T) {
	s := setupServer(t)
	testutil.TestLevel(t, s.db, func(l *models.MembershipLevel) { l.Name = "Visible" })
	testutil.TestLevel(t, s.db, func(l *models.MembershipLevel) { l.Status = models.LevelStatusInactive })

	status, body := s.do(t, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var health dto.HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health.DB)
	assert.Equal(t, 1, health.GatewayCount)

	status, body = s.do(t, http.MethodGet, "/api/levels", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var levels struct {
		Data []models.MembershipLevel `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &levels))
	require.Len(t, levels.Data, 1)
	assert.Equal(t, "Visible", levels.Data[0].Name)
}

func TestRegisterValidation(t *testing.T) {
	s := setupServer(t)

	status, _ := s.do(t, http.MethodPost, "/api/auth/register", dto.RegisterRequest{Email: "not-an-email", Password: "password123"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	s.register(t, "taken@example.com")
	status, _ = s.do(t, http.MethodPost, "/api/auth/register", dto.RegisterRequest{Email: "taken@example.com", Password: "password123"}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestCheckoutPaidThroughWebhook(t *testing.T) {
	s := setupServer(t)
	level := testutil.TestLevel(t, s.db, func(l *models.MembershipLevel) { l.AccessLevel = 2 })
	user := s.register(t, "buyer@example.com")
	auth := bearer(user.AccessToken)

	status, body := s.do(t, http.MethodPost, "/api/checkout", dto.CheckoutRequest{LevelID: level.ID, Gateway: "stripe"}, auth)
	require.Equal(t, http.StatusCreated, status, string(body))
	var checkout dto.CheckoutResponse
	require.NoError(t, json.Unmarshal(body, &checkout))
	assert.Equal(t, "pending", checkout.Status)
	assert.Equal(t, int64(1000), checkout.Total)

	var access dto.AccessResponse
	status, body = s.do(t, http.MethodGet, "/api/me/access?level=2", nil, auth)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &access))
	assert.False(t, access.HasAccess)

	payload, err := json.Marshal(dto.GatewayWebhook{
		ID:   "evt_1",
		Type: services.EventPaymentSucceeded,
		Event: dto.GatewayEvent{
			PaymentID:     checkout.PaymentID.String(),
			TransactionID: "ch_1",
		},
	})
	require.NoError(t, err)

	status, _ = s.do(t, http.MethodPost, "/api/webhooks/stripe", payload,
		map[string]string{gateway.SignatureHeader: gateway.Sign(payload, "wrong-secret")})
	assert.Equal(t, http.StatusUnauthorized, status)

	signed := map[string]string{gateway.SignatureHeader: gateway.Sign(payload, testWebhookSecret)}
	status, body = s.do(t, http.MethodPost, "/api/webhooks/stripe", payload, signed)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"received":true,"duplicate":false}`, string(body))

	status, body = s.do(t, http.MethodPost, "/api/webhooks/stripe", payload, signed)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"received":true,"duplicate":true}`, string(body))

	status, body = s.do(t, http.MethodGet, "/api/me/access?level=2", nil, auth)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &access))
	assert.True(t, access.HasAccess)

	status, body = s.do(t, http.MethodGet, "/api/me/payments", nil, auth)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"transaction_id":"ch_1"`)
}

func TestWebhookUnknownGateway(t *testing.T) {
	s := setupServer(t)
	payload := []byte(`{"id":"evt_1","type":"payment_succeeded"}`)

	for _, name := range []string{"manual", "paypal"} {
		status, _ := s.do(t, http.MethodPost, "/api/webhooks/"+name, payload,
			map[string]string{gateway.SignatureHeader: gateway.Sign(payload, testWebhookSecret)})
		assert.Equal(t, http.StatusNotFound, status, name)
	}
}

func TestWebhookIgnoresUnknownEventType(t *testing.T) {
	s := setupServer(t)
	payload := []byte(`{"id":"evt_2","type":"invoice_created","data":{}}`)

	status, body := s.do(t, http.MethodPost, "/api/webhooks/stripe", payload,
		map[string]string{gateway.SignatureHeader: "sha256=" + gateway.Sign(payload, testWebhookSecret)})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"received":true,"ignored":true}`, string(body))
}

func TestAdminAccess(t *testing.T) {
	s := setupServer(t)
	member := s.register(t, "member@example.com")
	admin := s.register(t, "boss@example.com")
	require.NoError(t, s.db.Model(&models.User{}).Where("id = ?", admin.User.ID).Update("role", models.RoleAdmin).Error)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"no credentials", nil, http.StatusUnauthorized},
		{"wrong admin token", map[string]string{"X-Admin-Token": "guess"}, http.StatusUnauthorized},
		{"regular member", bearer(member.AccessToken), http.StatusForbidden},
		{"admin role", bearer(admin.AccessToken), http.StatusOK},
		{"admin token", map[string]string{"X-Admin-Token": testAdminToken}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := s.do(t, http.MethodGet, "/api/admin/settings", nil, tt.headers)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestAdminMembershipLifecycle(t *testing.T) {
	s := setupServer(t)
	adminHeaders := map[string]string{"X-Admin-Token": testAdminToken}
	customer := testutil.TestCustomer(t, s.db)
	level := testutil.TestLevel(t, s.db)

	status, body := s.do(t, http.MethodPost, "/api/admin/memberships", dto.CreateMembershipRequest{
		CustomerID: customer.ID,
		LevelID:    level.ID,
		Status:     "active",
	}, adminHeaders)
	require.Equal(t, http.StatusCreated, status, string(body))
	var m models.Membership
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, "active", string(m.Status))

	status, body = s.do(t, http.MethodPost, "/api/admin/memberships/"+m.ID.String()+"/cancel",
		map[string]string{"reason": "Requested by phone."}, adminHeaders)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, "cancelled", string(m.Status))

	// Cancelled memberships cannot be renewed.
	status, _ = s.do(t, http.MethodPost, "/api/admin/memberships/"+m.ID.String()+"/renew", nil, adminHeaders)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = s.do(t, http.MethodGet, "/api/admin/memberships/not-a-uuid", nil, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, status)
}
