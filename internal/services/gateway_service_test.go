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

func webhook(id, typ string, ev dto.GatewayEvent) *dto.GatewayWebhook {
	return &dto.GatewayWebhook{ID: id, Type: typ, Event: ev}
}

func TestHandleEvent_CompletesCheckoutPaymentOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := testutil.TestCustomer(t, env.db)
	level := testutil.TestLevel(t, env.db)

	resp, err := env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{LevelID: level.ID, Gateway: "stripe"})
	require.NoError(t, err)

	ev := webhook("evt_1", EventPaymentSucceeded, dto.GatewayEvent{
		PaymentID:     resp.PaymentID.String(),
		TransactionID: "ch_1",
	})
	processed, err := env.gateways.HandleEvent(ctx, "stripe", ev, []byte(`{"id":"evt_1"}`))
	require.NoError(t, err)
	assert.True(t, processed)

	m := env.reload(t, &models.Membership{ID: resp.MembershipID})
	assert.Equal(t, membership.StatusActive, m.Status)
	assert.Equal(t, 1, m.TimesBilled)

	processed, err = env.gateways.HandleEvent(ctx, "stripe", ev, []byte(`{"id":"evt_1"}`))
	require.NoError(t, err)
	assert.False(t, processed, "a replayed event is not applied twice")
	assert.Equal(t, 1, env.reload(t, m).TimesBilled)

	var events []models.WebhookEvent
	require.NoError(t, env.db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.NotNil(t, events[0].ProcessedAt)
}

func TestHandleEvent_ActivatesBySubscription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := testutil.TestCustomer(t, env.db)
	level := testutil.TestLevel(t, env.db)

	resp, err := env.checkout.Checkout(ctx, customer.ID, &dto.CheckoutRequest{LevelID: level.ID, Gateway: "stripe"})
	require.NoError(t, err)

	_, err = env.gateways.HandleEvent(ctx, "stripe", webhook("evt_1", EventPaymentSucceeded, dto.GatewayEvent{
		MembershipID:          resp.MembershipID.String(),
		GatewayCustomerID:     "cus_1",
		GatewaySubscriptionID: "sub_1",
		TransactionID:         "ch_1",
	}), []byte(`{}`))
	require.NoError(t, err)

	m := env.reload(t, &models.Membership{ID: resp.MembershipID})
	assert.Equal(t, membership.StatusActive, m.Status)
	assert.Equal(t, "cus_1", m.GatewayCustomerID)
	assert.Equal(t, "sub_1", m.GatewaySubscriptionID)

	p, err := env.payments.Get(ctx, resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusComplete, p.Status)
}

func TestHandleEvent_RenewalUsesGatewayPeriodEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := testutil.TestCustomer(t, env.db)
	level := testutil.TestLevel(t, env.db)
	m := testutil.TestMembership(t, env.db, customer.ID, level.ID, membership.StatusActive,
		testutil.ExpiresAt(testNow.AddDate(0, 0, 1)),
		func(m *models.Membership) {
			m.Gateway = "stripe"
			m.GatewaySubscriptionID = "sub_9"
			m.RecurringAmount = 1000
			m.TimesBilled = 1
		})
	periodEnd := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	processed, err := env.gateways.HandleEvent(ctx, "stripe", webhook("evt_r", EventPaymentSucceeded, dto.GatewayEvent{
		GatewaySubscriptionID: "sub_9",
		TransactionID:         "ch_r",
		ExpiresAtMs:           periodEnd.UnixMilli(),
	}), []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, processed)

	got := env.reload(t, m)
	assert.Equal(t, 2, got.TimesBilled)
	require.NotNil(t, got.ExpirationDate)
	assert.True(t, got.ExpirationDate.Equal(periodEnd), "got %s", got.ExpirationDate)

	p, err := env.payments.GetByTransaction(ctx, "stripe", "ch_r")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeRenewal, p.TransactionType)
	assert.EqualValues(t, 1000, p.Amount)
}

func TestHandleEvent_CancelAndExpire(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := testutil.TestCustomer(t, env.db)
	level := testutil.TestLevel(t, env.db)
	m := testutil.TestMembership(t, env.db, customer.ID, level.ID, membership.StatusActive,
		testutil.ExpiresAt(testNow.AddDate(0, 0, 10)),
		func(m *models.Membership) {
			m.Gateway = "stripe"
			m.GatewaySubscriptionID = "sub_2"
		})
	ev := dto.GatewayEvent{GatewaySubscriptionID: "sub_2"}

	_, err := env.gateways.HandleEvent(ctx, "stripe", webhook("evt_c", EventSubscriptionCancelled, ev), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, membership.StatusCancelled, env.reload(t, m).Status)

	// A second cancellation under a new event id is a no-op.
	_, err = env.gateways.HandleEvent(ctx, "stripe", webhook("evt_c2", EventSubscriptionCancelled, ev), []byte(`{}`))
	require.NoError(t, err)

	_, err = env.gateways.HandleEvent(ctx, "stripe", webhook("evt_e", EventSubscriptionExpired, ev), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, membership.StatusExpired, env.reload(t, m).Status)
}

func TestHandleEvent_PaymentFailedByTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := testutil.TestCustomer(t, env.db)
	level := testutil.TestLevel(t, env.db)
	m := testutil.TestMembership(t, env.db, customer.ID, level.ID, membership.StatusPending)
	p, err := env.payments.Create(ctx, &dto.CreatePaymentRequest{MembershipID: m.ID, Subtotal: 1000, Gateway: "stripe"})
	require.NoError(t, err)
	require.NoError(t, env.db.Model(p).Update("transaction_id", "pi_1").Error)

	_, err = env.gateways.HandleEvent(ctx, "stripe", webhook("evt_f", EventPaymentFailed, dto.GatewayEvent{TransactionID: "pi_1"}), []byte(`{}`))
	require.NoError(t, err)

	stored, err := env.payments.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)
}

func TestHandleEvent_UnknownTypeIsMarkedProcessed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := webhook("evt_x", "invoice_created", dto.GatewayEvent{})

	processed, err := env.gateways.HandleEvent(ctx, "stripe", ev, []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownEventType)
	assert.False(t, processed)

	var stored models.WebhookEvent
	require.NoError(t, env.db.First(&stored, "event_id = ?", "evt_x").Error)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Contains(t, stored.Error, "invoice_created")

	processed, err = env.gateways.HandleEvent(ctx, "stripe", ev, []byte(`{}`))
	assert.NoError(t, err)
	assert.False(t, processed)
}

func TestHandleEvent_FailedEventIsRetried(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := webhook("evt_m", EventSubscriptionCancelled, dto.GatewayEvent{GatewaySubscriptionID: "sub_missing"})

	_, err := env.gateways.HandleEvent(ctx, "stripe", ev, []byte(`{}`))
	assert.ErrorIs(t, err, ErrMembershipNotFound)

	var stored models.WebhookEvent
	require.NoError(t, env.db.First(&stored, "event_id = ?", "evt_m").Error)
	assert.Nil(t, stored.ProcessedAt)

	customer := testutil.TestCustomer(t, env.db)
	level := testutil.TestLevel(t, env.db)
	testutil.TestMembership(t, env.db, customer.ID, level.ID, membership.StatusActive,
		testutil.ExpiresAt(testNow.AddDate(0, 0, 3)),
		func(m *models.Membership) {
			m.Gateway = "stripe"
			m.GatewaySubscriptionID = "sub_missing"
		})

	processed, err := env.gateways.HandleEvent(ctx, "stripe", ev, []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestHandleEvent_RejectedRenewalLeavesNoPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := testutil.TestCustomer(t, env.db)
	level := testutil.TestLevel(t, env.db)
	m := testutil.TestMembership(t, env.db, customer.ID, level.ID, membership.StatusCancelled,
		testutil.ExpiresAt(testNow.AddDate(0, 0, 5)),
		func(m *models.Membership) {
			m.Gateway = "stripe"
			m.GatewaySubscriptionID = "sub_late"
			m.RecurringAmount = 1000
		})
	periodEnd := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	ev := webhook("evt_late", EventPaymentSucceeded, dto.GatewayEvent{
		GatewaySubscriptionID: "sub_late",
		TransactionID:         "ch_late",
		ExpiresAtMs:           periodEnd.UnixMilli(),
	})

	// The gateway keeps redelivering an event that cannot be applied.
	for i := 0; i < 3; i++ {
		_, err := env.gateways.HandleEvent(ctx, "stripe", ev, []byte(`{}`))
		assert.ErrorIs(t, err, ErrNotRenewable)
	}

	var count int64
	require.NoError(t, env.db.Model(&models.Payment{}).Where("membership_id = ?", m.ID).Count(&count).Error)
	assert.Zero(t, count)

	got := env.reload(t, m)
	assert.Equal(t, membership.StatusCancelled, got.Status)
	require.NotNil(t, got.ExpirationDate)
	assert.True(t, got.ExpirationDate.Equal(*m.ExpirationDate), "got %s", got.ExpirationDate)
}
