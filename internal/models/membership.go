package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/membership"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SignupMethodLive     = "live"
	SignupMethodManual   = "manual"
	SignupMethodImported = "imported"
)

// Membership is a customer's subscription to a MembershipLevel.
type Membership struct {
	ID                    uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID            uuid.UUID         `gorm:"type:uuid;not null;index" json:"customer_id"`
	LevelID               uuid.UUID         `gorm:"type:uuid;not null;index" json:"level_id"`
	Status                membership.Status `gorm:"size:20;not null;default:'pending';index" json:"status"`
	CreatedDate           time.Time         `gorm:"not null" json:"created_date"`
	ActivatedDate         *time.Time        `json:"activated_date,omitempty"`
	TrialEndDate          *time.Time        `json:"trial_end_date,omitempty"`
	RenewedDate           *time.Time        `json:"renewed_date,omitempty"`
	CancellationDate      *time.Time        `json:"cancellation_date,omitempty"`
	ExpirationDate        *time.Time        `gorm:"index" json:"expiration_date"`
	AutoRenew             bool              `gorm:"default:false" json:"auto_renew"`
	TimesBilled           int               `gorm:"not null;default:0" json:"times_billed"`
	MaximumRenewals       int               `gorm:"not null;default:0" json:"maximum_renewals"`
	InitialAmount         int64             `gorm:"not null;default:0" json:"initial_amount"`
	RecurringAmount       int64             `gorm:"not null;default:0" json:"recurring_amount"`
	Gateway               string            `gorm:"size:50" json:"gateway"`
	GatewayCustomerID     string            `gorm:"size:255;index" json:"gateway_customer_id"`
	GatewaySubscriptionID string            `gorm:"size:255;index" json:"gateway_subscription_id"`
	SignupMethod          string            `gorm:"size:20;default:'live'" json:"signup_method"`
	Disabled              bool              `gorm:"default:false" json:"disabled"`
	UpgradedFrom          *uuid.UUID        `gorm:"type:uuid" json:"upgraded_from,omitempty"`
	Notes                 string            `gorm:"type:text" json:"notes"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	Level                 MembershipLevel   `gorm:"foreignKey:LevelID" json:"level,omitempty"`
}

func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedDate.IsZero() {
		m.CreatedDate = time.Now().UTC()
	}
	return nil
}

// HasAccess reports whether the membership grants access at now.
func (m *Membership) HasAccess(now time.Time) bool {
	return membership.HasAccess(m.Status, m.Disabled, m.ExpirationDate, now)
}

// AppendNote adds a timestamped line to the membership notes.
func (m *Membership) AppendNote(now time.Time, note string) {
	m.Notes = appendNote(m.Notes, now, note)
}

func appendNote(existing string, now time.Time, note string) string {
	line := fmt.Sprintf("%s - %s", now.UTC().Format(time.RFC3339), strings.TrimSpace(note))
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
