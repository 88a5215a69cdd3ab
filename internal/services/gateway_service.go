package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/membership"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Gateway event types accepted on /api/webhooks/:gateway.
const (
	EventPaymentSucceeded      = "payment_succeeded"
	EventPaymentFailed         = "payment_failed"
	EventPaymentRefunded       = "payment_refunded"
	EventSubscriptionCancelled = "subscription_cancelled"
	EventSubscriptionExpired   = "subscription_expired"
)

// GatewayService applies payment gateway webhooks to memberships and
// payments. Every delivery is stored so a retried event is applied once.
type GatewayService struct {
	db          *gorm.DB
	memberships *MembershipService
	payments    *PaymentService
	now         func() time.Time
}

func NewGatewayService(db *gorm.DB, memberships *MembershipService, payments *PaymentService) *GatewayService {
	return &GatewayService{
		db:          db,
		memberships: memberships,
		payments:    payments,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HandleEvent processes a verified webhook. It returns processed=false when
// the event was already handled.
func (s *GatewayService) HandleEvent(ctx context.Context, gw string, webhook *dto.GatewayWebhook, payload []byte) (bool, error) {
	event := models.WebhookEvent{
		Gateway:   gw,
		EventID:   webhook.ID,
		EventType: webhook.Type,
		Payload:   datatypes.JSON(payload),
	}
	err := s.db.WithContext(ctx).
		Where("gateway = ? AND event_id = ?", gw, webhook.ID).
		FirstOrCreate(&event).Error
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}
	if event.ProcessedAt != nil {
		slog.Info("webhook event already processed", "gateway", gw, "event_id", webhook.ID)
		return false, nil
	}

	handleErr := s.dispatch(ctx, gw, webhook)

	updates := map[string]interface{}{"error": ""}
	if handleErr != nil {
		updates["error"] = handleErr.Error()
	}
	// Unknown types are marked processed so the gateway stops retrying them.
	if handleErr == nil || errors.Is(handleErr, ErrUnknownEventType) {
		updates["processed_at"] = s.now()
	}
	if err := s.db.WithContext(ctx).Model(&event).Updates(updates).Error; err != nil {
		return false, fmt.Errorf("failed to update webhook event: %w", err)
	}
	return handleErr == nil, handleErr
}

func (s *GatewayService) dispatch(ctx context.Context, gw string, webhook *dto.GatewayWebhook) error {
	ev := &webhook.Event
	switch webhook.Type {
	case EventPaymentSucceeded:
		return s.paymentSucceeded(ctx, gw, ev)
	case EventPaymentFailed:
		p, err := s.findPayment(ctx, gw, ev)
		if err != nil {
			return err
		}
		_, err = s.payments.Fail(ctx, p.ID)
		return err
	case EventPaymentRefunded:
		p, err := s.findPayment(ctx, gw, ev)
		if err != nil {
			return err
		}
		_, err = s.payments.Refund(ctx, p.ID)
		return err
	case EventSubscriptionCancelled:
		m, err := s.findMembership(ctx, gw, ev)
		if err != nil {
			return err
		}
		if m.Status == membership.StatusCancelled {
			return nil
		}
		_, err = s.memberships.Cancel(ctx, m.ID, "Cancelled at the payment gateway.")
		return err
	case EventSubscriptionExpired:
		m, err := s.findMembership(ctx, gw, ev)
		if err != nil {
			return err
		}
		if m.Status == membership.StatusExpired {
			return nil
		}
		_, err = s.memberships.Expire(ctx, m.ID)
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEventType, webhook.Type)
	}
}

// paymentSucceeded completes the pending payment named by the event, or
// bills a renewal on the subscription's membership.
func (s *GatewayService) paymentSucceeded(ctx context.Context, gw string, ev *dto.GatewayEvent) error {
	if ev.PaymentID != "" {
		p, err := s.findPayment(ctx, gw, ev)
		if err != nil {
			return err
		}
		if p.Status == models.PaymentStatusComplete {
			return nil
		}
		_, err = s.payments.Complete(ctx, p.ID, ev.TransactionID)
		return err
	}

	m, err := s.findMembership(ctx, gw, ev)
	if err != nil {
		return err
	}
	if err := s.linkGatewayIDs(ctx, m, ev); err != nil {
		return err
	}

	if m.Status == membership.StatusPending {
		p, err := s.payments.PendingForMembership(ctx, m.ID)
		if err != nil {
			return err
		}
		_, err = s.payments.Complete(ctx, p.ID, ev.TransactionID)
		return err
	}

	amount := ev.Amount
	if amount == 0 {
		amount = m.RecurringAmount
	}
	// A renewal that cannot complete leaves no payment behind, so a
	// redelivered event does not pile up pending rows.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.payments.create(tx, &dto.CreatePaymentRequest{
			MembershipID:    m.ID,
			Subtotal:        amount,
			TransactionType: models.TransactionTypeRenewal,
			Gateway:         gw,
		})
		if err != nil {
			return err
		}
		if err := s.payments.complete(tx, p, ev.TransactionID); err != nil {
			return err
		}
		if ev.ExpiresAtMs <= 0 {
			return nil
		}

		// The gateway's own period end wins over the locally calculated one.
		renewed, err := s.memberships.get(tx, m.ID)
		if err != nil {
			return err
		}
		exp := msToTime(ev.ExpiresAtMs)
		return s.memberships.setExpiration(tx, renewed, &exp)
	})
}

func (s *GatewayService) findPayment(ctx context.Context, gw string, ev *dto.GatewayEvent) (*models.Payment, error) {
	if ev.PaymentID != "" {
		id, err := uuid.Parse(ev.PaymentID)
		if err != nil {
			return nil, fmt.Errorf("invalid payment id: %w", err)
		}
		return s.payments.Get(ctx, id)
	}
	if ev.TransactionID != "" {
		return s.payments.GetByTransaction(ctx, gw, ev.TransactionID)
	}
	return nil, ErrPaymentNotFound
}

func (s *GatewayService) findMembership(ctx context.Context, gw string, ev *dto.GatewayEvent) (*models.Membership, error) {
	if ev.MembershipID != "" {
		id, err := uuid.Parse(ev.MembershipID)
		if err != nil {
			return nil, fmt.Errorf("invalid membership id: %w", err)
		}
		return s.memberships.Get(ctx, id)
	}
	if ev.GatewaySubscriptionID == "" {
		return nil, ErrMembershipNotFound
	}

	var m models.Membership
	err := s.db.WithContext(ctx).Preload("Level").
		Where("gateway = ? AND gateway_subscription_id = ?", gw, ev.GatewaySubscriptionID).
		Order("created_date DESC").
		First(&m).Error
	if err != nil {
		return nil, notFound(err, ErrMembershipNotFound)
	}
	return &m, nil
}

func (s *GatewayService) linkGatewayIDs(ctx context.Context, m *models.Membership, ev *dto.GatewayEvent) error {
	updates := map[string]interface{}{}
	if ev.GatewayCustomerID != "" && m.GatewayCustomerID == "" {
		updates["gateway_customer_id"] = ev.GatewayCustomerID
	}
	if ev.GatewaySubscriptionID != "" && m.GatewaySubscriptionID == "" {
		updates["gateway_subscription_id"] = ev.GatewaySubscriptionID
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Membership{}).Where("id = ?", m.ID).Updates(updates).Error
}

func msToTime(ms int64) time.Time {
	return time.Unix(ms/1000, (ms%1000)*int64(time.Millisecond)).UTC()
}
