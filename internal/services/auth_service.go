package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/membership"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrUserNotFound       = errors.New("user not found")
	ErrPasswordRequired   = errors.New("password is required")
)

type AuthService struct {
	db          *gorm.DB
	cfg         *config.Config
	customers   *CustomerService
	memberships *MembershipService
}

func NewAuthService(db *gorm.DB, cfg *config.Config, customers *CustomerService, memberships *MembershipService) *AuthService {
	return &AuthService{
		db:          db,
		cfg:         cfg,
		customers:   customers,
		memberships: memberships,
	}
}

// Register creates the user and its customer record together.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	email := normalizeEmail(req.Email)

	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Email:    email,
		Password: string(hash),
		Role:     models.RoleUser,
	}
	customer := models.Customer{
		EmailVerification: models.EmailVerificationPending,
		DateRegistered:    time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		customer.UserID = user.ID
		if err := tx.Omit("User", "Memberships").Create(&customer).Error; err != nil {
			return fmt.Errorf("failed to create customer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.generateTokenPair(ctx, &user, customer.ID)
}

// Login verifies credentials and records the login on the customer.
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest, ip string) (*dto.AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.customers.RecordLogin(ctx, user.ID, ip); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	customer, err := s.customers.GetByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return s.generateTokenPair(ctx, &user, customer.ID)
}

func (s *AuthService) Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	db := s.db.WithContext(ctx)
	tokenHash := hashToken(req.RefreshToken)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ? AND revoked = ?", tokenHash, false).First(&stored).Error; err != nil {
		return nil, ErrInvalidToken
	}

	if time.Now().After(stored.ExpiresAt) {
		db.Model(&stored).Update("revoked", true)
		return nil, ErrInvalidToken
	}

	db.Model(&stored).Update("revoked", true)

	var user models.User
	if err := db.First(&user, "id = ?", stored.UserID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	customer, err := s.customers.EnsureForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return s.generateTokenPair(ctx, &user, customer.ID)
}

func (s *AuthService) Logout(ctx context.Context, req *dto.LogoutRequest) error {
	tokenHash := hashToken(req.RefreshToken)
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true).Error
}

// DeleteAccount removes the user after cancelling every membership that still
// grants access. Memberships and payments stay for the records.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uuid.UUID, password string) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return ErrUserNotFound
	}

	if password == "" {
		return ErrPasswordRequired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.First(&customer, "user_id = ?", userID).Error; err == nil {
			var active []models.Membership
			if err := tx.Where("customer_id = ? AND status = ?", customer.ID, string(membership.StatusActive)).
				Find(&active).Error; err != nil {
				return err
			}
			for i := range active {
				if err := s.memberships.cancel(tx, &active[i], "Account deleted."); err != nil {
					return err
				}
			}
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
}

func (s *AuthService) generateTokenPair(ctx context.Context, user *models.User, customerID uuid.UUID) (*dto.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user, customerID)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: dto.UserResponse{
			ID:         user.ID,
			Email:      user.Email,
			Role:       user.Role,
			CustomerID: customerID,
		},
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User, customerID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub":         user.ID.String(),
		"email":       user.Email,
		"role":        user.Role,
		"customer_id": customerID.String(),
		"iat":         time.Now().Unix(),
		"exp":         time.Now().Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(ctx context.Context, user *models.User) (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rawToken := base64.URLEncoding.EncodeToString(rawBytes)
	record := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: time.Now().Add(s.cfg.JWTRefreshExpiry),
	}

	if err := s.db.WithContext(ctx).Omit("User").Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return rawToken, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
