package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type DiscountService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDiscountService(db *gorm.DB) *DiscountService {
	return &DiscountService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// NormalizeCode makes discount codes case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *DiscountService) Create(ctx context.Context, req *dto.DiscountRequest) (*models.Discount, error) {
	d := models.Discount{}
	if err := applyDiscountRequest(&d, req); err != nil {
		return nil, err
	}
	if err := s.ensureCodeFree(ctx, d.Code, uuid.Nil); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&d).Error; err != nil {
		return nil, fmt.Errorf("failed to create discount: %w", err)
	}
	return &d, nil
}

func (s *DiscountService) Get(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	var d models.Discount
	if err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrDiscountNotFound)
	}
	return &d, nil
}

func (s *DiscountService) GetByCode(ctx context.Context, code string) (*models.Discount, error) {
	return s.getByCode(s.db.WithContext(ctx), code)
}

func (s *DiscountService) getByCode(tx *gorm.DB, code string) (*models.Discount, error) {
	var d models.Discount
	if err := tx.First(&d, "code = ?", NormalizeCode(code)).Error; err != nil {
		return nil, notFound(err, ErrDiscountNotFound)
	}
	return &d, nil
}

func (s *DiscountService) List(ctx context.Context, status string) ([]models.Discount, error) {
	var discounts []models.Discount
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&discounts).Error; err != nil {
		return nil, err
	}
	return discounts, nil
}

func (s *DiscountService) Update(ctx context.Context, id uuid.UUID, req *dto.DiscountRequest) (*models.Discount, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyDiscountRequest(d, req); err != nil {
		return nil, err
	}
	if err := s.ensureCodeFree(ctx, d.Code, d.ID); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(d).Error; err != nil {
		return nil, fmt.Errorf("failed to update discount: %w", err)
	}
	return d, nil
}

func (s *DiscountService) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Delete(&models.Discount{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDiscountNotFound
	}
	return nil
}

// Validate looks up code and checks that it can be used on levelID. A
// non-nil customerID also enforces one-time codes.
func (s *DiscountService) Validate(ctx context.Context, code string, levelID uuid.UUID, customerID uuid.UUID) (*models.Discount, error) {
	return s.validate(s.db.WithContext(ctx), code, levelID, customerID)
}

func (s *DiscountService) validate(tx *gorm.DB, code string, levelID uuid.UUID, customerID uuid.UUID) (*models.Discount, error) {
	d, err := s.getByCode(tx, code)
	if err != nil {
		return nil, err
	}
	if d.Status != models.DiscountStatusActive {
		return nil, ErrDiscountInactive
	}
	if d.Expiration != nil && !d.Expiration.After(s.now()) {
		return nil, ErrDiscountExpired
	}
	if d.MaxUses > 0 && d.UseCount >= d.MaxUses {
		return nil, ErrDiscountMaxedOut
	}
	if len(d.LevelIDs) > 0 && !lo.Contains(d.LevelIDs, levelID) {
		return nil, ErrDiscountNotForLevel
	}
	if d.OneTime && customerID != uuid.Nil {
		var used int64
		if err := tx.Model(&models.DiscountUse{}).
			Where("discount_id = ? AND customer_id = ?", d.ID, customerID).
			Count(&used).Error; err != nil {
			return nil, err
		}
		if used > 0 {
			return nil, ErrDiscountAlreadyUsed
		}
	}
	return d, nil
}

// Apply returns the amount d takes off price. The result never exceeds price.
func Apply(d *models.Discount, price int64) int64 {
	if d == nil || price <= 0 || d.Amount <= 0 {
		return 0
	}
	var off int64
	switch d.Unit {
	case models.DiscountUnitPercent:
		off = price * d.Amount / 100
	default:
		off = d.Amount
	}
	return min(off, price)
}

// RecordUse bumps the use count and marks the code as used by the customer.
func (s *DiscountService) RecordUse(tx *gorm.DB, d *models.Discount, customerID, paymentID uuid.UUID) error {
	if err := tx.Model(&models.Discount{}).Where("id = ?", d.ID).
		UpdateColumn("use_count", gorm.Expr("use_count + 1")).Error; err != nil {
		return fmt.Errorf("failed to record discount use: %w", err)
	}
	use := models.DiscountUse{DiscountID: d.ID, CustomerID: customerID, PaymentID: paymentID}
	return tx.Where("discount_id = ? AND customer_id = ?", d.ID, customerID).FirstOrCreate(&use).Error
}

func (s *DiscountService) ensureCodeFree(ctx context.Context, code string, self uuid.UUID) error {
	existing, err := s.GetByCode(ctx, code)
	if errors.Is(err, ErrDiscountNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != self {
		return ErrDiscountCodeTaken
	}
	return nil
}

func applyDiscountRequest(d *models.Discount, req *dto.DiscountRequest) error {
	code := NormalizeCode(req.Code)
	if code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if req.Unit == models.DiscountUnitPercent && req.Amount > 100 {
		return fmt.Errorf("%w: percent discounts cannot exceed 100", ErrInvalidInput)
	}

	status := req.Status
	if status == "" {
		status = models.DiscountStatusActive
	}

	d.Name = req.Name
	d.Description = req.Description
	d.Code = code
	d.Amount = req.Amount
	d.Unit = req.Unit
	d.Status = status
	d.MaxUses = req.MaxUses
	d.Expiration = req.Expiration
	d.LevelIDs = lo.Uniq(req.LevelIDs)
	d.OneTime = req.OneTime
	return nil
}
