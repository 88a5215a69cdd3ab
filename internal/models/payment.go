package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusComplete = "complete"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

const (
	TransactionTypeNew     = "new"
	TransactionTypeRenewal = "renewal"
	TransactionTypeUpgrade = "upgrade"
	TransactionTypeManual  = "manual"
)

// Payment records a charge against a membership.
type Payment struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"customer_id"`
	MembershipID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"membership_id"`
	LevelID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"level_id"`
	Subtotal        int64      `gorm:"not null;default:0" json:"subtotal"`
	DiscountAmount  int64      `gorm:"not null;default:0" json:"discount_amount"`
	DiscountCode    string     `gorm:"size:100" json:"discount_code,omitempty"`
	Fees            int64      `gorm:"not null;default:0" json:"fees"`
	Amount          int64      `gorm:"not null;default:0" json:"amount"`
	Status          string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	TransactionType string     `gorm:"size:20;not null;default:'new'" json:"transaction_type"`
	TransactionID   string     `gorm:"size:255;index" json:"transaction_id,omitempty"`
	Gateway         string     `gorm:"size:50" json:"gateway"`
	CompletedDate   *time.Time `json:"completed_date,omitempty"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
