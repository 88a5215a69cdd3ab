package services

import (
	"context"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/membership"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LevelService struct {
	db *gorm.DB
}

func NewLevelService(db *gorm.DB) *LevelService {
	return &LevelService{db: db}
}

func (s *LevelService) Create(ctx context.Context, req *dto.LevelRequest) (*models.MembershipLevel, error) {
	level := models.MembershipLevel{}
	if err := applyLevelRequest(&level, req); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&level).Error; err != nil {
		return nil, fmt.Errorf("failed to create membership level: %w", err)
	}
	return &level, nil
}

func (s *LevelService) Get(ctx context.Context, id uuid.UUID) (*models.MembershipLevel, error) {
	var level models.MembershipLevel
	if err := s.db.WithContext(ctx).First(&level, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrLevelNotFound)
	}
	return &level, nil
}

func (s *LevelService) List(ctx context.Context, activeOnly bool) ([]models.MembershipLevel, error) {
	var levels []models.MembershipLevel
	query := s.db.WithContext(ctx).Order("list_order ASC, price ASC")
	if activeOnly {
		query = query.Where("status = ?", models.LevelStatusActive)
	}
	if err := query.Find(&levels).Error; err != nil {
		return nil, err
	}
	return levels, nil
}

// Update replaces the level's editable fields. Existing memberships keep the
// amounts and renewal limits they were created with.
func (s *LevelService) Update(ctx context.Context, id uuid.UUID, req *dto.LevelRequest) (*models.MembershipLevel, error) {
	level, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyLevelRequest(level, req); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(level).Error; err != nil {
		return nil, fmt.Errorf("failed to update membership level: %w", err)
	}
	return level, nil
}

func (s *LevelService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Membership{}).Where("level_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrLevelInUse
	}
	return s.db.WithContext(ctx).Delete(&models.MembershipLevel{}, "id = ?", id).Error
}

// CountMembers returns the number of memberships per status on a level.
func (s *LevelService) CountMembers(ctx context.Context, id uuid.UUID) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Select("status, COUNT(*) AS count").
		Where("level_id = ?", id).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func applyLevelRequest(level *models.MembershipLevel, req *dto.LevelRequest) error {
	unit := membership.UnitMonth
	if req.DurationUnit != "" {
		u, err := membership.ParseUnit(req.DurationUnit)
		if err != nil {
			return err
		}
		unit = u
	}
	trialUnit := membership.UnitDay
	if req.TrialDurationUnit != "" {
		u, err := membership.ParseUnit(req.TrialDurationUnit)
		if err != nil {
			return err
		}
		trialUnit = u
	}
	if req.TrialDuration > 0 && req.Price == 0 {
		return fmt.Errorf("%w: free levels cannot have a trial", ErrInvalidInput)
	}

	afterFinal := req.AfterFinalPayment
	if afterFinal == "" {
		afterFinal = membership.AfterFinalPaymentLifetime
	}
	status := req.Status
	if status == "" {
		status = models.LevelStatusActive
	}

	level.Name = req.Name
	level.Description = req.Description
	level.Price = req.Price
	level.Fee = req.Fee
	level.Duration = req.Duration
	level.DurationUnit = unit
	level.TrialDuration = req.TrialDuration
	level.TrialDurationUnit = trialUnit
	level.MaximumRenewals = req.MaximumRenewals
	level.AfterFinalPayment = afterFinal
	level.AccessLevel = req.AccessLevel
	level.Role = req.Role
	level.Status = status
	level.ListOrder = req.ListOrder
	return nil
}
