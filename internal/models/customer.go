package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EmailVerificationNone     = "none"
	EmailVerificationPending  = "pending"
	EmailVerificationVerified = "verified"
)

// MaxCustomerIPs caps the login IP history kept per customer.
const MaxCustomerIPs = 10

// Customer wraps a User with membership-specific state.
type Customer struct {
	ID                uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	EmailVerification string                      `gorm:"size:20;not null;default:'none'" json:"email_verification"`
	DateRegistered    time.Time                   `gorm:"not null" json:"date_registered"`
	LastLogin         *time.Time                  `json:"last_login,omitempty"`
	IPs               datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"ips"`
	HasTrialed        bool                        `gorm:"default:false" json:"has_trialed"`
	Notes             string                      `gorm:"type:text" json:"notes"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
	User              User                        `gorm:"foreignKey:UserID" json:"user"`
	Memberships       []Membership                `gorm:"foreignKey:CustomerID" json:"memberships,omitempty"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.DateRegistered.IsZero() {
		c.DateRegistered = time.Now().UTC()
	}
	return nil
}

// PushIP records ip as the most recent login address.
func (c *Customer) PushIP(ip string) {
	if ip == "" {
		return
	}
	ips := make([]string, 0, len(c.IPs)+1)
	ips = append(ips, ip)
	for _, existing := range c.IPs {
		if existing != ip {
			ips = append(ips, existing)
		}
	}
	if len(ips) > MaxCustomerIPs {
		ips = ips[:MaxCustomerIPs]
	}
	c.IPs = ips
}

// AppendNote adds a timestamped line to the customer notes.
func (c *Customer) AppendNote(now time.Time, note string) {
	c.Notes = appendNote(c.Notes, now, note)
}
