package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/membership"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentService struct {
	db          *gorm.DB
	memberships *MembershipService
	discounts   *DiscountService
	now         func() time.Time
}

func NewPaymentService(db *gorm.DB, memberships *MembershipService, discounts *DiscountService) *PaymentService {
	return &PaymentService{
		db:          db,
		memberships: memberships,
		discounts:   discounts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create records a pending payment against a membership.
func (s *PaymentService) Create(ctx context.Context, req *dto.CreatePaymentRequest) (*models.Payment, error) {
	return s.create(s.db.WithContext(ctx), req)
}

func (s *PaymentService) create(tx *gorm.DB, req *dto.CreatePaymentRequest) (*models.Payment, error) {
	m, err := s.memberships.get(tx, req.MembershipID)
	if err != nil {
		return nil, err
	}

	txType := req.TransactionType
	if txType == "" {
		txType = models.TransactionTypeManual
	}
	gw := req.Gateway
	if gw == "" {
		gw = gateway.Manual
	}

	p := models.Payment{
		CustomerID:      m.CustomerID,
		MembershipID:    m.ID,
		LevelID:         m.LevelID,
		Subtotal:        req.Subtotal,
		DiscountAmount:  req.DiscountAmount,
		Fees:            req.Fees,
		Amount:          paymentTotal(req.Subtotal, req.DiscountAmount, req.Fees),
		Status:          models.PaymentStatusPending,
		TransactionType: txType,
		Gateway:         gw,
	}
	if err := tx.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return &p, nil
}

func (s *PaymentService) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return s.get(s.db.WithContext(ctx), id)
}

func (s *PaymentService) get(tx *gorm.DB, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	if err := tx.First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	return &p, nil
}

// GetByTransaction finds a payment by its gateway transaction id.
func (s *PaymentService) GetByTransaction(ctx context.Context, gw, transactionID string) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).
		First(&p, "gateway = ? AND transaction_id = ?", gw, transactionID).Error; err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	return &p, nil
}

// PendingForMembership returns the oldest pending payment on a membership.
func (s *PaymentService) PendingForMembership(ctx context.Context, membershipID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).Order("created_at ASC").
		First(&p, "membership_id = ? AND status = ?", membershipID, models.PaymentStatusPending).Error; err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	return &p, nil
}

func (s *PaymentService) List(ctx context.Context, f dto.PaymentFilter) ([]models.Payment, int64, error) {
	var payments []models.Payment
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Payment{}).
		Scopes(
			database.WhereIf("customer_id", f.CustomerID),
			database.WhereIf("membership_id", f.MembershipID),
			database.WhereIf("status", f.Status),
		)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").
		Scopes(database.Paginate(f.Limit, f.Offset)).Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// Complete marks a pending payment complete and applies it to the
// membership: a pending membership is activated, an active one renewed.
func (s *PaymentService) Complete(ctx context.Context, id uuid.UUID, transactionID string) (*models.Payment, error) {
	var p *models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = s.get(tx, id); err != nil {
			return err
		}
		return s.complete(tx, p, transactionID)
	})
	return p, err
}

func (s *PaymentService) complete(tx *gorm.DB, p *models.Payment, transactionID string) error {
	if p.Status != models.PaymentStatusPending {
		return fmt.Errorf("%w: payment is %s", ErrPaymentStatus, p.Status)
	}

	m, err := s.memberships.get(tx, p.MembershipID)
	if err != nil {
		return err
	}

	switch m.Status {
	case membership.StatusPending:
		if err := s.memberships.activate(tx, m, p.TransactionType != models.TransactionTypeManual); err != nil {
			return err
		}
		if p.Amount > 0 {
			m.TimesBilled++
			if err := s.memberships.save(tx, m); err != nil {
				return err
			}
		}
	case membership.StatusActive:
		if p.TransactionType == models.TransactionTypeRenewal {
			if err := s.memberships.renew(tx, m); err != nil {
				return err
			}
		}
	default:
		if p.TransactionType == models.TransactionTypeRenewal {
			return ErrNotRenewable
		}
	}

	if p.DiscountCode != "" {
		d, err := s.discounts.getByCode(tx, p.DiscountCode)
		if err == nil {
			if err := s.discounts.RecordUse(tx, d, p.CustomerID, p.ID); err != nil {
				return err
			}
		}
	}

	now := s.now()
	p.Status = models.PaymentStatusComplete
	p.CompletedDate = &now
	if transactionID != "" {
		p.TransactionID = transactionID
	}
	if err := tx.Save(p).Error; err != nil {
		return fmt.Errorf("failed to complete payment: %w", err)
	}
	return nil
}

// Fail marks a pending payment failed and notes it on the membership.
func (s *PaymentService) Fail(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p *models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = s.get(tx, id); err != nil {
			return err
		}
		if p.Status != models.PaymentStatusPending {
			return fmt.Errorf("%w: payment is %s", ErrPaymentStatus, p.Status)
		}
		p.Status = models.PaymentStatusFailed
		if err := tx.Save(p).Error; err != nil {
			return err
		}
		return s.noteMembership(tx, p.MembershipID, fmt.Sprintf("Payment %s failed.", p.ID))
	})
	return p, err
}

// Refund marks a complete payment refunded. Membership access is left to the
// gateway's follow-up events or an administrator.
func (s *PaymentService) Refund(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p *models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = s.get(tx, id); err != nil {
			return err
		}
		if p.Status != models.PaymentStatusComplete {
			return fmt.Errorf("%w: payment is %s", ErrPaymentStatus, p.Status)
		}
		p.Status = models.PaymentStatusRefunded
		if err := tx.Save(p).Error; err != nil {
			return err
		}
		return s.noteMembership(tx, p.MembershipID, fmt.Sprintf("Payment %s refunded.", p.ID))
	})
	return p, err
}

func (s *PaymentService) noteMembership(tx *gorm.DB, membershipID uuid.UUID, note string) error {
	m, err := s.memberships.get(tx, membershipID)
	if err != nil {
		return err
	}
	m.AppendNote(s.now(), note)
	return s.memberships.save(tx, m)
}

func paymentTotal(subtotal, discount, fees int64) int64 {
	return max(subtotal-discount, 0) + fees
}
