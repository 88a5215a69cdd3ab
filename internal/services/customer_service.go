package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type CustomerService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCustomerService(db *gorm.DB) *CustomerService {
	return &CustomerService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create adds a customer record for an existing user.
func (s *CustomerService) Create(ctx context.Context, userID uuid.UUID) (*models.Customer, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, ErrUserNotFound
	}

	var count int64
	s.db.WithContext(ctx).Model(&models.Customer{}).Where("user_id = ?", userID).Count(&count)
	if count > 0 {
		return nil, ErrCustomerExists
	}

	customer := models.Customer{
		UserID:            userID,
		EmailVerification: models.EmailVerificationNone,
		DateRegistered:    s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	customer.User = user
	return &customer, nil
}

// EnsureForUser returns the user's customer, creating it on first use.
func (s *CustomerService) EnsureForUser(ctx context.Context, userID uuid.UUID) (*models.Customer, error) {
	customer, err := s.GetByUser(ctx, userID)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return nil, err
	}
	return s.Create(ctx, userID)
}

func (s *CustomerService) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.WithContext(ctx).Preload("User").Preload("Memberships").First(&customer, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, ErrCustomerNotFound)
	}
	return &customer, nil
}

func (s *CustomerService) GetByUser(ctx context.Context, userID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.WithContext(ctx).Preload("User").First(&customer, "user_id = ?", userID).Error
	if err != nil {
		return nil, notFound(err, ErrCustomerNotFound)
	}
	return &customer, nil
}

// List returns customers, optionally filtered by an email substring.
func (s *CustomerService) List(ctx context.Context, search string, limit, offset int) ([]models.Customer, int64, error) {
	var customers []models.Customer
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Customer{})
	if search = strings.TrimSpace(search); search != "" {
		query = query.Joins("JOIN users ON users.id = customers.user_id").
			Where("LOWER(users.email) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Preload("User").Order("customers.date_registered DESC").
		Scopes(database.Paginate(limit, offset)).Find(&customers).Error; err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

// SetEmailVerification updates the verification state of a customer.
func (s *CustomerService) SetEmailVerification(ctx context.Context, id uuid.UUID, state string) (*models.Customer, error) {
	switch state {
	case models.EmailVerificationNone, models.EmailVerificationPending, models.EmailVerificationVerified:
	default:
		return nil, fmt.Errorf("%w: email verification state %q", ErrInvalidInput, state)
	}

	customer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer.EmailVerification == state {
		return customer, nil
	}

	customer.AppendNote(s.now(), fmt.Sprintf("Email verification changed from %s to %s.", customer.EmailVerification, state))
	customer.EmailVerification = state
	if err := s.db.WithContext(ctx).Model(customer).Updates(map[string]interface{}{
		"email_verification": customer.EmailVerification,
		"notes":              customer.Notes,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}
	return customer, nil
}

func (s *CustomerService) AddNote(ctx context.Context, id uuid.UUID, note string) (*models.Customer, error) {
	if strings.TrimSpace(note) == "" {
		return nil, fmt.Errorf("%w: note is required", ErrInvalidInput)
	}
	customer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	customer.AppendNote(s.now(), note)
	if err := s.db.WithContext(ctx).Model(customer).Update("notes", customer.Notes).Error; err != nil {
		return nil, fmt.Errorf("failed to add note: %w", err)
	}
	return customer, nil
}

// RecordLogin stamps the last login time and pushes ip onto the history.
func (s *CustomerService) RecordLogin(ctx context.Context, userID uuid.UUID, ip string) error {
	customer, err := s.EnsureForUser(ctx, userID)
	if err != nil {
		return err
	}
	now := s.now()
	customer.PushIP(ip)
	return s.db.WithContext(ctx).Model(customer).Updates(map[string]interface{}{
		"last_login": now,
		"ips":        customer.IPs,
	}).Error
}

// Delete removes a customer that no longer has access through any membership.
func (s *CustomerService) Delete(ctx context.Context, id uuid.UUID) error {
	customer, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	if lo.SomeBy(customer.Memberships, func(m models.Membership) bool { return m.HasAccess(now) }) {
		return ErrCustomerHasAccess
	}

	// History goes with the customer; the user account itself is kept.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.DiscountUse{}, &models.Payment{}, &models.Membership{}} {
			if err := tx.Where("customer_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Customer{}, "id = ?", id).Error
	})
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
