package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/membership"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
)

// TestUser creates a user with a unique email.
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*models.User)) *models.User {
	t.Helper()

	user := &models.User{
		Email:    fmt.Sprintf("user_%s@example.com", uuid.NewString()[:8]),
		Password: "$2a$10$abcdefghijklmnopqrstuvwxyz123456",
		Role:     models.RoleUser,
	}
	for _, opt := range opts {
		opt(user)
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// TestCustomer creates a user and the customer wrapping it.
func TestCustomer(t *testing.T, db *gorm.DB, opts ...func(*models.Customer)) *models.Customer {
	t.Helper()

	user := TestUser(t, db)
	customer := &models.Customer{
		UserID:            user.ID,
		EmailVerification: models.EmailVerificationNone,
	}
	for _, opt := range opts {
		opt(customer)
	}
	if err := db.Create(customer).Error; err != nil {
		t.Fatalf("failed to create test customer: %v", err)
	}
	customer.User = *user
	return customer
}

// TestLevel creates an active monthly level priced at 10.00.
func TestLevel(t *testing.T, db *gorm.DB, opts ...func(*models.MembershipLevel)) *models.MembershipLevel {
	t.Helper()

	level := &models.MembershipLevel{
		Name:              "Level " + uuid.NewString()[:8],
		Price:             1000,
		Duration:          1,
		DurationUnit:      membership.UnitMonth,
		TrialDurationUnit: membership.UnitDay,
		AfterFinalPayment: membership.AfterFinalPaymentLifetime,
		AccessLevel:       1,
		Status:            models.LevelStatusActive,
	}
	for _, opt := range opts {
		opt(level)
	}
	if err := db.Create(level).Error; err != nil {
		t.Fatalf("failed to create test level: %v", err)
	}
	return level
}

// TestMembership creates a membership in the given status.
func TestMembership(t *testing.T, db *gorm.DB, customerID, levelID uuid.UUID, status membership.Status, opts ...func(*models.Membership)) *models.Membership {
	t.Helper()

	m := &models.Membership{
		CustomerID:   customerID,
		LevelID:      levelID,
		Status:       status,
		SignupMethod: models.SignupMethodManual,
	}
	if status != membership.StatusPending {
		now := time.Now().UTC()
		m.ActivatedDate = &now
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("failed to create test membership: %v", err)
	}
	return m
}

// ExpiresAt sets a membership's expiration date.
func ExpiresAt(at time.Time) func(*models.Membership) {
	return func(m *models.Membership) {
		at = at.UTC()
		m.ExpirationDate = &at
	}
}
