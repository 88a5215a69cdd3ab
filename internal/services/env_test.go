package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/testutil"
)

// testNow is the last day of a month so month arithmetic has to clamp.
var testNow = time.Date(2026, time.January, 31, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	db          *gorm.DB
	registry    *gateway.Registry
	settings    *SettingsService
	customers   *CustomerService
	levels      *LevelService
	memberships *MembershipService
	discounts   *DiscountService
	payments    *PaymentService
	checkout    *CheckoutService
	gateways    *GatewayService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	clock := func() time.Time { return testNow }

	settings := NewSettingsService(db)
	require.NoError(t, settings.SeedDefaults(context.Background()))

	registry := gateway.NewRegistry()
	registry.Register(&gateway.Config{Name: "stripe", WebhookSecret: "whsec_test", Enabled: true})
	registry.Register(&gateway.Config{Name: "paypal", Enabled: false})

	customers := NewCustomerService(db)
	customers.now = clock
	memberships := NewMembershipService(db, settings)
	memberships.now = clock
	discounts := NewDiscountService(db)
	discounts.now = clock
	payments := NewPaymentService(db, memberships, discounts)
	payments.now = clock
	gateways := NewGatewayService(db, memberships, payments)
	gateways.now = clock

	return &testEnv{
		db:          db,
		registry:    registry,
		settings:    settings,
		customers:   customers,
		levels:      NewLevelService(db),
		memberships: memberships,
		discounts:   discounts,
		payments:    payments,
		checkout:    NewCheckoutService(db, settings, memberships, payments, discounts, registry),
		gateways:    gateways,
	}
}

func (e *testEnv) reload(t *testing.T, m *models.Membership) *models.Membership {
	t.Helper()
	got, err := e.memberships.Get(context.Background(), m.ID)
	require.NoError(t, err)
	return got
}

func endOfDay(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 23, 59, 59, 0, time.UTC)
}
