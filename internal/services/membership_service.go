package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/membership"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// accessStatuses are the statuses that can still grant access.
var accessStatuses = []string{string(membership.StatusActive), string(membership.StatusCancelled)}

type MembershipService struct {
	db       *gorm.DB
	settings *SettingsService
	now      func() time.Time
}

func NewMembershipService(db *gorm.DB, settings *SettingsService) *MembershipService {
	return &MembershipService{
		db:       db,
		settings: settings,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type newMembership struct {
	customerID      uuid.UUID
	level           *models.MembershipLevel
	autoRenew       bool
	initialAmount   int64
	recurringAmount int64
	gateway         string
	signupMethod    string
	upgradedFrom    *uuid.UUID
}

// Create adds a membership for a customer from the admin screen. Requesting
// status active activates it right away; an explicit expiration date
// overrides the level's calculated one.
func (s *MembershipService) Create(ctx context.Context, req *dto.CreateMembershipRequest) (*models.Membership, error) {
	autoRenew := s.settings.DefaultAutoRenew(ctx, req.AutoRenew)
	gw := req.Gateway
	if gw == "" {
		gw = gateway.Manual
	}

	var created *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.First(&customer, "id = ?", req.CustomerID).Error; err != nil {
			return notFound(err, ErrCustomerNotFound)
		}
		var level models.MembershipLevel
		if err := tx.First(&level, "id = ?", req.LevelID).Error; err != nil {
			return notFound(err, ErrLevelNotFound)
		}

		m, err := s.createPending(tx, newMembership{
			customerID:      customer.ID,
			level:           &level,
			autoRenew:       autoRenew && !level.Plan().IsLifetime(),
			initialAmount:   level.Price + level.Fee,
			recurringAmount: level.Price,
			gateway:         gw,
			signupMethod:    models.SignupMethodManual,
		})
		if err != nil {
			return err
		}

		if req.Status == string(membership.StatusActive) {
			if err := s.activate(tx, m, false); err != nil {
				return err
			}
		}
		if req.ExpirationDate != nil {
			exp := req.ExpirationDate.UTC()
			m.ExpirationDate = &exp
			if err := s.save(tx, m); err != nil {
				return err
			}
		}
		created = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *MembershipService) createPending(tx *gorm.DB, p newMembership) (*models.Membership, error) {
	now := s.now()
	m := models.Membership{
		CustomerID:      p.customerID,
		LevelID:         p.level.ID,
		Status:          membership.StatusPending,
		CreatedDate:     now,
		AutoRenew:       p.autoRenew,
		MaximumRenewals: p.level.MaximumRenewals,
		InitialAmount:   p.initialAmount,
		RecurringAmount: p.recurringAmount,
		Gateway:         p.gateway,
		SignupMethod:    p.signupMethod,
		UpgradedFrom:    p.upgradedFrom,
	}
	m.AppendNote(now, fmt.Sprintf("Membership for %s created.", p.level.Name))
	if err := tx.Omit(clause.Associations).Create(&m).Error; err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}
	m.Level = *p.level
	return &m, nil
}

func (s *MembershipService) Get(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	return s.get(s.db.WithContext(ctx), id)
}

func (s *MembershipService) get(tx *gorm.DB, id uuid.UUID) (*models.Membership, error) {
	var m models.Membership
	if err := tx.Preload("Level").First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrMembershipNotFound)
	}
	return &m, nil
}

// GetForCustomer loads a membership only if it belongs to customerID.
func (s *MembershipService) GetForCustomer(ctx context.Context, customerID, id uuid.UUID) (*models.Membership, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.CustomerID != customerID {
		return nil, ErrMembershipNotFound
	}
	return m, nil
}

func (s *MembershipService) List(ctx context.Context, f dto.MembershipFilter) ([]models.Membership, int64, error) {
	var memberships []models.Membership
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Membership{}).
		Scopes(database.WhereIf("customer_id", f.CustomerID), database.WhereIf("level_id", f.LevelID))
	if f.Status != "" {
		status, err := membership.ParseStatus(f.Status)
		if err != nil {
			return nil, 0, err
		}
		query = query.Where("status = ?", string(status))
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Level").Order("created_date DESC").
		Scopes(database.Paginate(f.Limit, f.Offset)).Find(&memberships).Error; err != nil {
		return nil, 0, err
	}
	return memberships, total, nil
}

// Activate moves a pending membership to active and sets its first term.
func (s *MembershipService) Activate(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	var m *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if m, err = s.get(tx, id); err != nil {
			return err
		}
		return s.activate(tx, m, false)
	})
	return m, err
}

// activate requires m.Level to be loaded. When allowTrial is set and the
// customer has never trialed, the level's trial replaces the first term.
// The membership it upgrades from, if any, is expired.
func (s *MembershipService) activate(tx *gorm.DB, m *models.Membership, allowTrial bool) error {
	if err := membership.Transition(m.Status, membership.StatusActive); err != nil {
		return err
	}

	now := s.now()
	plan := m.Level.Plan()

	useTrial := false
	if allowTrial && plan.HasTrial() {
		var customer models.Customer
		if err := tx.First(&customer, "id = ?", m.CustomerID).Error; err != nil {
			return notFound(err, ErrCustomerNotFound)
		}
		if !customer.HasTrialed {
			useTrial = true
			if err := tx.Model(&customer).Update("has_trialed", true).Error; err != nil {
				return err
			}
		}
	}

	m.ExpirationDate = membership.CalculateExpiration(plan, now, membership.ExpirationOptions{UseTrial: useTrial})
	if useTrial {
		m.TrialEndDate = m.ExpirationDate
	}
	m.Status = membership.StatusActive
	m.ActivatedDate = &now
	m.AppendNote(now, statusNote(membership.StatusPending, membership.StatusActive, ""))

	if m.UpgradedFrom != nil {
		prev, err := s.get(tx, *m.UpgradedFrom)
		if err != nil {
			return fmt.Errorf("failed to load upgraded membership: %w", err)
		}
		if membership.CanTransition(prev.Status, membership.StatusExpired) {
			if err := s.expire(tx, prev, fmt.Sprintf("Upgraded to membership %s.", m.ID)); err != nil {
				return err
			}
		}
	}

	return s.save(tx, m)
}

// Renew bills another term on an active membership.
func (s *MembershipService) Renew(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	var m *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if m, err = s.get(tx, id); err != nil {
			return err
		}
		return s.renew(tx, m)
	})
	return m, err
}

// renew increments times_billed and extends the expiration date from the
// later of now and the current expiration. Once a payment plan has collected
// its final payment the level's after_final_payment rule applies.
func (s *MembershipService) renew(tx *gorm.DB, m *models.Membership) error {
	if m.Status != membership.StatusActive {
		return ErrNotRenewable
	}

	now := s.now()
	plan := m.Level.Plan()
	plan.MaximumRenewals = m.MaximumRenewals

	m.TimesBilled++
	m.RenewedDate = &now

	if plan.HasPaymentPlan() && membership.AtMaximumRenewals(m.TimesBilled, plan.MaximumRenewals) {
		m.AutoRenew = false
		outcome := plan.FinalPaymentOutcome()
		switch {
		case outcome.ExpireNow:
			if err := s.save(tx, m); err != nil {
				return err
			}
			return s.expire(tx, m, "Payment plan completed.")
		case outcome.Lifetime:
			m.ExpirationDate = nil
			m.AppendNote(now, "Payment plan completed. Membership is now lifetime.")
			return s.save(tx, m)
		default:
			m.AppendNote(now, "Payment plan completed. Membership expires at the end of the term.")
		}
	}

	m.ExpirationDate = membership.CalculateExpiration(plan, now, membership.ExpirationOptions{
		CurrentExpiration: m.ExpirationDate,
	})
	m.AppendNote(now, fmt.Sprintf("Membership renewed. Times billed: %d.", m.TimesBilled))
	return s.save(tx, m)
}

// Cancel stops auto renewal. The customer keeps access until the expiration
// date; a lifetime membership ends now.
func (s *MembershipService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Membership, error) {
	var m *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if m, err = s.get(tx, id); err != nil {
			return err
		}
		return s.cancel(tx, m, reason)
	})
	return m, err
}

func (s *MembershipService) cancel(tx *gorm.DB, m *models.Membership, reason string) error {
	if err := membership.Transition(m.Status, membership.StatusCancelled); err != nil {
		return err
	}

	now := s.now()
	m.Status = membership.StatusCancelled
	m.CancellationDate = &now
	m.AutoRenew = false
	if m.ExpirationDate == nil {
		m.ExpirationDate = &now
	}
	m.AppendNote(now, statusNote(membership.StatusActive, membership.StatusCancelled, reason))
	return s.save(tx, m)
}

func (s *MembershipService) Expire(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	var m *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if m, err = s.get(tx, id); err != nil {
			return err
		}
		return s.expire(tx, m, "")
	})
	return m, err
}

func (s *MembershipService) expire(tx *gorm.DB, m *models.Membership, reason string) error {
	from := m.Status
	if err := membership.Transition(from, membership.StatusExpired); err != nil {
		return err
	}

	now := s.now()
	m.Status = membership.StatusExpired
	m.AutoRenew = false
	if m.ExpirationDate == nil || m.ExpirationDate.After(now) {
		m.ExpirationDate = &now
	}
	m.AppendNote(now, statusNote(from, membership.StatusExpired, reason))
	return s.save(tx, m)
}

// SetStatus applies an admin status change through the transition table.
func (s *MembershipService) SetStatus(ctx context.Context, id uuid.UUID, raw string) (*models.Membership, error) {
	status, err := membership.ParseStatus(raw)
	if err != nil {
		return nil, err
	}

	var m *models.Membership
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if m, err = s.get(tx, id); err != nil {
			return err
		}
		switch status {
		case membership.StatusActive:
			return s.activate(tx, m, false)
		case membership.StatusCancelled:
			return s.cancel(tx, m, "Cancelled by an administrator.")
		case membership.StatusExpired:
			return s.expire(tx, m, "Expired by an administrator.")
		default:
			return membership.Transition(m.Status, status)
		}
	})
	return m, err
}

// SetExpiration overrides the expiration date. Nil makes the membership
// lifetime. The status is left unchanged.
func (s *MembershipService) SetExpiration(ctx context.Context, id uuid.UUID, exp *time.Time) (*models.Membership, error) {
	var m *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if m, err = s.get(tx, id); err != nil {
			return err
		}
		return s.setExpiration(tx, m, exp)
	})
	return m, err
}

func (s *MembershipService) setExpiration(tx *gorm.DB, m *models.Membership, exp *time.Time) error {
	now := s.now()
	if exp == nil {
		m.ExpirationDate = nil
		m.AppendNote(now, "Expiration date changed to never.")
	} else {
		t := exp.UTC()
		m.ExpirationDate = &t
		m.AppendNote(now, fmt.Sprintf("Expiration date changed to %s.", t.Format(time.RFC3339)))
	}
	return s.save(tx, m)
}

func (s *MembershipService) Disable(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	return s.setDisabled(ctx, id, true)
}

func (s *MembershipService) Enable(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	return s.setDisabled(ctx, id, false)
}

func (s *MembershipService) setDisabled(ctx context.Context, id uuid.UUID, disabled bool) (*models.Membership, error) {
	var m *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if m, err = s.get(tx, id); err != nil {
			return err
		}
		if m.Disabled == disabled {
			return nil
		}
		m.Disabled = disabled
		if disabled {
			m.AppendNote(s.now(), "Membership disabled.")
		} else {
			m.AppendNote(s.now(), "Membership enabled.")
		}
		return s.save(tx, m)
	})
	return m, err
}

// ExpireDue expires up to limit active or cancelled memberships whose
// expiration date has passed and returns how many were changed.
func (s *MembershipService) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	var due []models.Membership
	if err := s.db.WithContext(ctx).Preload("Level").
		Where("status IN ? AND expiration_date IS NOT NULL AND expiration_date <= ?", accessStatuses, now).
		Order("expiration_date ASC").
		Limit(limit).
		Find(&due).Error; err != nil {
		return 0, err
	}

	expired := 0
	for i := range due {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.expire(tx, &due[i], "Expiration date reached.")
		})
		if err != nil {
			return expired, fmt.Errorf("failed to expire membership %s: %w", due[i].ID, err)
		}
		expired++
	}
	return expired, nil
}

// CountDue counts memberships ExpireDue would pick up.
func (s *MembershipService) CountDue(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("status IN ? AND expiration_date IS NOT NULL AND expiration_date <= ?", accessStatuses, now).
		Count(&count).Error
	return count, err
}

// CanAccess reports whether any of the customer's memberships grants at
// least accessLevel right now.
func (s *MembershipService) CanAccess(ctx context.Context, customerID uuid.UUID, accessLevel int) (bool, error) {
	var memberships []models.Membership
	if err := s.db.WithContext(ctx).Preload("Level").
		Where("customer_id = ? AND status IN ?", customerID, accessStatuses).
		Find(&memberships).Error; err != nil {
		return false, err
	}

	now := s.now()
	return lo.SomeBy(memberships, func(m models.Membership) bool {
		return m.HasAccess(now) && m.Level.AccessLevel >= accessLevel
	}), nil
}

// currentForCustomer returns the customer's most recent membership that
// still grants access, or nil.
func (s *MembershipService) currentForCustomer(tx *gorm.DB, customerID uuid.UUID) (*models.Membership, error) {
	var memberships []models.Membership
	if err := tx.Where("customer_id = ? AND status IN ?", customerID, accessStatuses).
		Order("created_date DESC").Find(&memberships).Error; err != nil {
		return nil, err
	}
	now := s.now()
	current, ok := lo.Find(memberships, func(m models.Membership) bool { return m.HasAccess(now) })
	if !ok {
		return nil, nil
	}
	return &current, nil
}

func (s *MembershipService) save(tx *gorm.DB, m *models.Membership) error {
	if err := tx.Omit(clause.Associations).Save(m).Error; err != nil {
		return fmt.Errorf("failed to save membership: %w", err)
	}
	return nil
}

func statusNote(from, to membership.Status, reason string) string {
	note := fmt.Sprintf("Status changed from %s to %s.", from, to)
	if reason = strings.TrimSpace(reason); reason != "" {
		note += " " + reason
	}
	return note
}
