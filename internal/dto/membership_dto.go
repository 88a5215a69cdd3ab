package dto

import (
	"time"

	"github.com/google/uuid"
)

type LevelRequest struct {
	Name              string `json:"name" validate:"required,max=200"`
	Description       string `json:"description"`
	Price             int64  `json:"price" validate:"gte=0"`
	Fee               int64  `json:"fee" validate:"gte=0"`
	Duration          int    `json:"duration" validate:"gte=0"`
	DurationUnit      string `json:"duration_unit"`
	TrialDuration     int    `json:"trial_duration" validate:"gte=0"`
	TrialDurationUnit string `json:"trial_duration_unit"`
	MaximumRenewals   int    `json:"maximum_renewals" validate:"gte=0"`
	AfterFinalPayment string `json:"after_final_payment" validate:"omitempty,oneof=lifetime expire_immediately expire_term_end"`
	AccessLevel       int    `json:"access_level" validate:"gte=0"`
	Role              string `json:"role" validate:"max=50"`
	Status            string `json:"status" validate:"omitempty,oneof=active inactive"`
	ListOrder         int    `json:"list_order"`
}

// CreateMembershipRequest is the admin form for adding a membership by hand.
type CreateMembershipRequest struct {
	CustomerID     uuid.UUID  `json:"customer_id" validate:"required"`
	LevelID        uuid.UUID  `json:"level_id" validate:"required"`
	Status         string     `json:"status" validate:"omitempty,oneof=pending active"`
	ExpirationDate *time.Time `json:"expiration_date"`
	AutoRenew      *bool      `json:"auto_renew"`
	Gateway        string     `json:"gateway" validate:"max=50"`
}

type MembershipStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type MembershipExpirationRequest struct {
	// Nil makes the membership lifetime.
	ExpirationDate *time.Time `json:"expiration_date"`
}

type CancelMembershipRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type MembershipFilter struct {
	CustomerID uuid.UUID
	LevelID    uuid.UUID
	Status     string
	Limit      int
	Offset     int
}

type AccessResponse struct {
	AccessLevel int  `json:"access_level"`
	HasAccess   bool `json:"has_access"`
}

type CustomerNoteRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

type UpdateCustomerRequest struct {
	EmailVerification string `json:"email_verification" validate:"required,oneof=none pending verified"`
}

type CreatePaymentRequest struct {
	MembershipID    uuid.UUID `json:"membership_id" validate:"required"`
	Subtotal        int64     `json:"subtotal" validate:"gte=0"`
	DiscountAmount  int64     `json:"discount_amount" validate:"gte=0"`
	Fees            int64     `json:"fees" validate:"gte=0"`
	TransactionType string    `json:"transaction_type" validate:"omitempty,oneof=new renewal upgrade manual"`
	Gateway         string    `json:"gateway" validate:"max=50"`
}

type CompletePaymentRequest struct {
	TransactionID string `json:"transaction_id" validate:"max=255"`
}

type PaymentFilter struct {
	CustomerID   uuid.UUID
	MembershipID uuid.UUID
	Status       string
	Limit        int
	Offset       int
}

type DiscountRequest struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Description string      `json:"description"`
	Code        string      `json:"code" validate:"required,max=100"`
	Amount      int64       `json:"amount" validate:"gt=0"`
	Unit        string      `json:"unit" validate:"required,oneof=% flat"`
	Status      string      `json:"status" validate:"omitempty,oneof=active disabled"`
	MaxUses     int         `json:"max_uses" validate:"gte=0"`
	Expiration  *time.Time  `json:"expiration"`
	LevelIDs    []uuid.UUID `json:"level_ids"`
	OneTime     bool        `json:"one_time"`
}

type ValidateDiscountRequest struct {
	Code    string    `json:"code" validate:"required"`
	LevelID uuid.UUID `json:"level_id" validate:"required"`
}

type ValidateDiscountResponse struct {
	Valid          bool   `json:"valid"`
	Code           string `json:"code"`
	Subtotal       int64  `json:"subtotal"`
	DiscountAmount int64  `json:"discount_amount"`
	Total          int64  `json:"total"`
}

type CheckoutRequest struct {
	LevelID      uuid.UUID `json:"level_id" validate:"required"`
	DiscountCode string    `json:"discount_code" validate:"max=100"`
	Gateway      string    `json:"gateway" validate:"max=50"`
	AutoRenew    *bool     `json:"auto_renew"`
}

type CheckoutResponse struct {
	MembershipID uuid.UUID `json:"membership_id"`
	PaymentID    uuid.UUID `json:"payment_id"`
	Status       string    `json:"status"`
	Subtotal     int64     `json:"subtotal"`
	Discount     int64     `json:"discount_amount"`
	Total        int64     `json:"total"`
	Expiration   *string   `json:"expiration_date"`
}

type SettingRequest struct {
	Value string `json:"value"`
	Type  string `json:"type" validate:"omitempty,oneof=string bool int json"`
}

type CreateBatchJobRequest struct {
	Name        string         `json:"name" validate:"required,max=100"`
	Callback    string         `json:"callback" validate:"required"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data"`
}

type BatchJobResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Callback        string    `json:"callback"`
	Status          string    `json:"status"`
	Step            int       `json:"step"`
	TotalCount      int       `json:"total_count"`
	CurrentCount    int       `json:"current_count"`
	FailedCount     int       `json:"failed_count"`
	PercentComplete int       `json:"percent_complete"`
	Errors          []string  `json:"errors"`
}

type PaginatedResponse struct {
	Data   any   `json:"data"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}
