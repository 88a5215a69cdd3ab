package models

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/membership"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	LevelStatusActive   = "active"
	LevelStatusInactive = "inactive"
)

// MembershipLevel is the pricing/duration template customers subscribe to.
type MembershipLevel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string          `gorm:"size:200;not null;uniqueIndex" json:"name"`
	Description       string          `gorm:"type:text" json:"description"`
	Price             int64           `gorm:"not null;default:0" json:"price"`
	Fee               int64           `gorm:"not null;default:0" json:"fee"`
	Duration          int             `gorm:"not null;default:0" json:"duration"`
	DurationUnit      membership.Unit `gorm:"size:10;not null;default:'month'" json:"duration_unit"`
	TrialDuration     int             `gorm:"not null;default:0" json:"trial_duration"`
	TrialDurationUnit membership.Unit `gorm:"size:10;not null;default:'day'" json:"trial_duration_unit"`
	MaximumRenewals   int             `gorm:"not null;default:0" json:"maximum_renewals"`
	AfterFinalPayment string          `gorm:"size:30;default:'lifetime'" json:"after_final_payment"`
	AccessLevel       int             `gorm:"not null;default:0" json:"access_level"`
	Role              string          `gorm:"size:50;default:'subscriber'" json:"role"`
	Status            string          `gorm:"size:20;not null;default:'active';index" json:"status"`
	ListOrder         int             `gorm:"default:0" json:"list_order"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (l *MembershipLevel) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Plan returns the billing template used for expiration math.
func (l *MembershipLevel) Plan() membership.Plan {
	return membership.Plan{
		Duration:          l.Duration,
		DurationUnit:      l.DurationUnit,
		TrialDuration:     l.TrialDuration,
		TrialDurationUnit: l.TrialDurationUnit,
		MaximumRenewals:   l.MaximumRenewals,
		AfterFinalPayment: l.AfterFinalPayment,
	}
}

// IsFree reports whether signing up costs nothing.
func (l *MembershipLevel) IsFree() bool {
	return l.Price == 0 && l.Fee == 0
}
