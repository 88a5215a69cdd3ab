package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DiscountUnitPercent = "%"
	DiscountUnitFlat    = "flat"

	DiscountStatusActive   = "active"
	DiscountStatusDisabled = "disabled"
)

// Discount is a checkout code. Percent amounts are whole percents; flat
// amounts are minor currency units.
type Discount struct {
	ID          uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string                         `gorm:"size:200;not null" json:"name"`
	Description string                         `gorm:"type:text" json:"description"`
	Code        string                         `gorm:"size:100;not null;uniqueIndex" json:"code"`
	Amount      int64                          `gorm:"not null" json:"amount"`
	Unit        string                         `gorm:"size:10;not null;default:'%'" json:"unit"`
	Status      string                         `gorm:"size:20;not null;default:'active'" json:"status"`
	UseCount    int                            `gorm:"not null;default:0" json:"use_count"`
	MaxUses     int                            `gorm:"not null;default:0" json:"max_uses"`
	Expiration  *time.Time                     `json:"expiration,omitempty"`
	LevelIDs    datatypes.JSONSlice[uuid.UUID] `gorm:"type:jsonb" json:"level_ids"`
	OneTime     bool                           `gorm:"default:false" json:"one_time"`
	CreatedAt   time.Time                      `json:"created_at"`
	UpdatedAt   time.Time                      `json:"updated_at"`
}

func (d *Discount) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DiscountUse records that a customer redeemed a discount.
type DiscountUse struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DiscountID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_discount_uses_discount_customer,priority:1" json:"discount_id"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_discount_uses_discount_customer,priority:2" json:"customer_id"`
	PaymentID  uuid.UUID `gorm:"type:uuid" json:"payment_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (u *DiscountUse) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
