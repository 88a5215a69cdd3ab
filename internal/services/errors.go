package services

import "errors"

var (
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrCustomerExists     = errors.New("customer already exists for user")
	ErrCustomerHasAccess  = errors.New("customer still has memberships with access")
	ErrLevelNotFound      = errors.New("membership level not found")
	ErrLevelInactive      = errors.New("membership level is not active")
	ErrLevelInUse         = errors.New("membership level has memberships")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrNotRenewable       = errors.New("only active memberships can be renewed")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrPaymentStatus      = errors.New("payment status does not allow this change")
	ErrSettingNotFound    = errors.New("setting not found")
	ErrInvalidSetting     = errors.New("invalid setting value")
	ErrUnknownEventType   = errors.New("unknown gateway event type")
	ErrGatewayUnavailable = errors.New("payment gateway is not available")
	ErrInvalidInput       = errors.New("invalid input")

	ErrDiscountNotFound    = errors.New("discount not found")
	ErrDiscountInactive    = errors.New("discount is not active")
	ErrDiscountExpired     = errors.New("discount has expired")
	ErrDiscountMaxedOut    = errors.New("discount has reached its maximum uses")
	ErrDiscountNotForLevel = errors.New("discount does not apply to this membership level")
	ErrDiscountAlreadyUsed = errors.New("discount has already been used")
	ErrDiscountCodeTaken   = errors.New("discount code already exists")
)
