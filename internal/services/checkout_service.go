package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CheckoutService turns a registration into a pending membership and the
// payment that pays for it.
type CheckoutService struct {
	db          *gorm.DB
	settings    *SettingsService
	memberships *MembershipService
	payments    *PaymentService
	discounts   *DiscountService
	gateways    *gateway.Registry
}

func NewCheckoutService(db *gorm.DB, settings *SettingsService, memberships *MembershipService, payments *PaymentService, discounts *DiscountService, gateways *gateway.Registry) *CheckoutService {
	return &CheckoutService{
		db:          db,
		settings:    settings,
		memberships: memberships,
		payments:    payments,
		discounts:   discounts,
		gateways:    gateways,
	}
}

func (s *CheckoutService) Checkout(ctx context.Context, customerID uuid.UUID, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	gw := req.Gateway
	if gw == "" {
		gw = gateway.Manual
	}
	if !s.gateways.Enabled(gw) {
		return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, gw)
	}

	// Settings reads happen outside the transaction.
	autoRenew := s.settings.DefaultAutoRenew(ctx, req.AutoRenew)
	multiple := s.settings.Bool(ctx, SettingMultipleMemberships)

	var m *models.Membership
	var p *models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.First(&customer, "id = ?", customerID).Error; err != nil {
			return notFound(err, ErrCustomerNotFound)
		}
		var level models.MembershipLevel
		if err := tx.First(&level, "id = ?", req.LevelID).Error; err != nil {
			return notFound(err, ErrLevelNotFound)
		}
		if level.Status != models.LevelStatusActive {
			return ErrLevelInactive
		}

		var discount *models.Discount
		if req.DiscountCode != "" {
			d, err := s.discounts.validate(tx, req.DiscountCode, level.ID, customer.ID)
			if err != nil {
				return err
			}
			discount = d
		}

		plan := level.Plan()
		trial := plan.HasTrial() && !customer.HasTrialed

		subtotal := level.Price
		if trial {
			subtotal = 0
		}
		discountAmount := Apply(discount, subtotal)
		fees := level.Fee
		total := paymentTotal(subtotal, discountAmount, fees)

		txType := models.TransactionTypeNew
		var upgradedFrom *uuid.UUID
		if !multiple {
			current, err := s.memberships.currentForCustomer(tx, customer.ID)
			if err != nil {
				return err
			}
			if current != nil {
				upgradedFrom = &current.ID
				txType = models.TransactionTypeUpgrade
			}
		}

		var err error
		m, err = s.memberships.createPending(tx, newMembership{
			customerID:      customer.ID,
			level:           &level,
			autoRenew:       autoRenew && !plan.IsLifetime() && !level.IsFree(),
			initialAmount:   total,
			recurringAmount: level.Price,
			gateway:         gw,
			signupMethod:    models.SignupMethodLive,
			upgradedFrom:    upgradedFrom,
		})
		if err != nil {
			return err
		}

		p = &models.Payment{
			CustomerID:      customer.ID,
			MembershipID:    m.ID,
			LevelID:         level.ID,
			Subtotal:        subtotal,
			DiscountAmount:  discountAmount,
			Fees:            fees,
			Amount:          total,
			Status:          models.PaymentStatusPending,
			TransactionType: txType,
			Gateway:         gw,
		}
		if discount != nil {
			p.DiscountCode = discount.Code
		}
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		if total == 0 {
			if err := s.payments.complete(tx, p, ""); err != nil {
				return err
			}
			// complete works on its own copy of the membership.
			if m, err = s.memberships.get(tx, m.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.CheckoutResponse{
		MembershipID: m.ID,
		PaymentID:    p.ID,
		Status:       string(m.Status),
		Subtotal:     p.Subtotal + p.Fees,
		Discount:     p.DiscountAmount,
		Total:        p.Amount,
	}
	if m.ExpirationDate != nil {
		exp := m.ExpirationDate.UTC().Format(time.RFC3339)
		resp.Expiration = &exp
	}
	return resp, nil
}
