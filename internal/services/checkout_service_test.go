package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/membership"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/testutil"
)

func TestCheckout_FreeLevelActivatesImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := testutil.TestCustomer(t, env.db)
	level := testutil.TestLevel(t, env.db, func(l *models.MembershipLevel) { l.Price = 0 })

	resp, err := env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{LevelID: level.ID})
	require.NoError(t, err)

	assert.Equal(t, string(membership.StatusActive), resp.Status)
	assert.Zero(t, resp.Total)
	require.NotNil(t, resp.Expiration)

	m := env.reload(t, &models.Membership{ID: resp.MembershipID})
	assert.Equal(t, membership.StatusActive, m.Status)
	assert.False(t, m.AutoRenew, "free levels never auto renew")
	assert.Zero(t, m.TimesBilled)

	p, err := env.payments.Get(ctx, resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusComplete, p.Status)
	assert.Equal(t, models.TransactionTypeNew, p.TransactionType)
}

func TestCheckout_PaidLevelStaysPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := testutil.TestCustomer(t, env.db)
	level := testutil.TestLevel(t, env.db, func(l *models.MembershipLevel) { l.Fee = 250 })

	resp, err := env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{LevelID: level.ID, Gateway: "stripe"})
	require.NoError(t, err)

	assert.Equal(t, string(membership.StatusPending), resp.Status)
	assert.EqualValues(t, 1250, resp.Subtotal)
	assert.EqualValues(t, 1250, resp.Total)
	assert.Nil(t, resp.Expiration)

	m := env.reload(t, &models.Membership{ID: resp.MembershipID})
	assert.Equal(t, "stripe", m.Gateway)
	assert.EqualValues(t, 1250, m.InitialAmount)
	assert.EqualValues(t, 1000, m.RecurringAmount)
	assert.True(t, m.AutoRenew)

	p, err := env.payments.Get(ctx, resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.EqualValues(t, 1000, p.Subtotal)
	assert.EqualValues(t, 250, p.Fees)
}

func TestCheckout_DiscountAppliesToPriceOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := testutil.TestCustomer(t, env.db)
	level := testutil.TestLevel(t, env.db, func(l *models.MembershipLevel) { l.Fee = 200 })
	_, err := env.discounts.Create(ctx, &dto.DiscountRequest{Name: "Half", Code: "half", Amount: 50, Unit: models.DiscountUnitPercent})
	require.NoError(t, err)

	resp, err := env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{
		LevelID:      level.ID,
		DiscountCode: "Half",
		Gateway:      "stripe",
	})
	require.NoError(t, err)

	assert.EqualValues(t, 1200, resp.Subtotal)
	assert.EqualValues(t, 500, resp.Discount)
	assert.EqualValues(t, 700, resp.Total)

	p, err := env.payments.Get(ctx, resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "HALF", p.DiscountCode)
}

func TestCheckout_InvalidDiscountAborts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := testutil.TestCustomer(t, env.db)
	level := testutil.TestLevel(t, env.db)

	_, err := env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{LevelID: level.ID, DiscountCode: "nope"})
	assert.ErrorIs(t, err, ErrDiscountNotFound)

	var count int64
	env.db.Model(&models.Membership{}).Count(&count)
	assert.Zero(t, count, "nothing is created when the discount is rejected")
}

func TestCheckout_TrialOncePerCustomer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := testutil.TestCustomer(t, env.db)
	level := testutil.TestLevel(t, env.db, func(l *models.MembershipLevel) { l.TrialDuration = 7 })

	first, err := env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{LevelID: level.ID})
	require.NoError(t, err)
	assert.Equal(t, string(membership.StatusActive), first.Status)
	assert.Zero(t, first.Total)

	m := env.reload(t, &models.Membership{ID: first.MembershipID})
	require.NotNil(t, m.TrialEndDate)
	assert.True(t, m.ExpirationDate.Equal(endOfDay(2026, time.February, 7)), "got %s", m.ExpirationDate)

	c, err := env.customers.Get(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, c.HasTrialed)

	second, err := env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{LevelID: level.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1000, second.Total)
	assert.Equal(t, string(membership.StatusPending), second.Status)
}

func TestCheckout_UpgradeReplacesCurrentMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := testutil.TestCustomer(t, env.db)
	basic := testutil.TestLevel(t, env.db)
	free := testutil.TestLevel(t, env.db, func(l *models.MembershipLevel) { l.Price = 0 })
	current := testutil.TestMembership(t, env.db, customer.ID, basic.ID, membership.StatusActive,
		testutil.ExpiresAt(testNow.AddDate(0, 0, 20)))

	resp, err := env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{LevelID: free.ID})
	require.NoError(t, err)

	m := env.reload(t, &models.Membership{ID: resp.MembershipID})
	require.NotNil(t, m.UpgradedFrom)
	assert.Equal(t, current.ID, *m.UpgradedFrom)
	assert.Equal(t, membership.StatusActive, m.Status)
	assert.Equal(t, membership.StatusExpired, env.reload(t, current).Status)

	p, err := env.payments.Get(ctx, resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeUpgrade, p.TransactionType)
}

func TestCheckout_MultipleMembershipsKeepsCurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.settings.Set(ctx, SettingMultipleMemberships, "true", "")
	require.NoError(t, err)

	customer := testutil.TestCustomer(t, env.db)
	basic := testutil.TestLevel(t, env.db)
	free := testutil.TestLevel(t, env.db, func(l *models.MembershipLevel) { l.Price = 0 })
	current := testutil.TestMembership(t, env.db, customer.ID, basic.ID, membership.StatusActive,
		testutil.ExpiresAt(testNow.AddDate(0, 0, 20)))

	resp, err := env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{LevelID: free.ID})
	require.NoError(t, err)

	assert.Nil(t, env.reload(t, &models.Membership{ID: resp.MembershipID}).UpgradedFrom)
	assert.Equal(t, membership.StatusActive, env.reload(t, current).Status)
}

func TestCheckout_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := testutil.TestCustomer(t, env.db)
	level := testutil.TestLevel(t, env.db)
	inactive := testutil.TestLevel(t, env.db, func(l *models.MembershipLevel) { l.Status = models.LevelStatusInactive })

	_, err := env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{LevelID: level.ID, Gateway: "paypal"})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	_, err = env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{LevelID: level.ID, Gateway: "bitcoin"})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	_, err = env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{LevelID: inactive.ID})
	assert.ErrorIs(t, err, ErrLevelInactive)

	_, err = env.checkout.Checkout(ctx, level.ID, &dto.CheckoutRequest{LevelID: level.ID})
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestCheckout_AutoRenewPolicy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := testutil.TestCustomer(t, env.db)
	level := testutil.TestLevel(t, env.db)
	_, err := env.settings.Set(ctx, SettingMultipleMemberships, "true", "")
	require.NoError(t, err)

	no := false
	resp, err := env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{LevelID: level.ID, AutoRenew: &no})
	require.NoError(t, err)
	assert.False(t, env.reload(t, &models.Membership{ID: resp.MembershipID}).AutoRenew)

	_, err = env.settings.Set(ctx, SettingAutoRenew, AutoRenewAlways, "")
	require.NoError(t, err)
	resp, err = env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{LevelID: level.ID, AutoRenew: &no})
	require.NoError(t, err)
	assert.True(t, env.reload(t, &models.Membership{ID: resp.MembershipID}).AutoRenew)
}
