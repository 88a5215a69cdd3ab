package membership

import (
	"fmt"
	"strings"
	"time"
)

// Unit is a calendar duration unit used by levels and trials.
type Unit string

const (
	UnitDay   Unit = "day"
	UnitWeek  Unit = "week"
	UnitMonth Unit = "month"
	UnitYear  Unit = "year"
)

// What happens once a payment plan has collected its last payment.
const (
	AfterFinalPaymentLifetime          = "lifetime"
	AfterFinalPaymentExpireImmediately = "expire_immediately"
	AfterFinalPaymentExpireTermEnd     = "expire_term_end"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitDay, UnitWeek, UnitMonth, UnitYear:
		return true
	}
	return false
}

func ParseUnit(raw string) (Unit, error) {
	u := Unit(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "s"))
	if !u.Valid() {
		return "", fmt.Errorf("%w %q", ErrInvalidUnit, raw)
	}
	return u, nil
}

// Plan is the pricing/duration template a membership is billed against.
type Plan struct {
	Duration          int
	DurationUnit      Unit
	TrialDuration     int
	TrialDurationUnit Unit
	MaximumRenewals   int
	AfterFinalPayment string
}

func (p Plan) IsLifetime() bool {
	return p.Duration <= 0
}

func (p Plan) HasTrial() bool {
	return p.TrialDuration > 0 && p.TrialDurationUnit.Valid()
}

func (p Plan) HasPaymentPlan() bool {
	return p.MaximumRenewals > 0
}

// ExpirationOptions carries the membership-specific inputs to
// CalculateExpiration.
type ExpirationOptions struct {
	// CurrentExpiration is the membership's existing expiration date, used as
	// the base when renewing before it has passed.
	CurrentExpiration *time.Time
	// UseTrial grants the plan's trial period instead of a paid term.
	UseTrial bool
}

// CalculateExpiration returns the expiration date for a new term of plan, or
// nil when the plan never expires. The result is pinned to 23:59:59 UTC so the
// same inputs always produce the same date.
func CalculateExpiration(p Plan, now time.Time, opts ExpirationOptions) *time.Time {
	if opts.UseTrial && p.HasTrial() {
		exp := EndOfDay(AddDuration(now, p.TrialDuration, p.TrialDurationUnit))
		return &exp
	}
	if p.IsLifetime() {
		return nil
	}

	base := now
	if opts.CurrentExpiration != nil && opts.CurrentExpiration.After(now) {
		base = *opts.CurrentExpiration
	}

	exp := EndOfDay(AddDuration(base, p.Duration, p.DurationUnit))
	return &exp
}

// AddDuration adds n units to t. Month and year arithmetic clamps to the last
// day of the target month instead of overflowing into the next one.
func AddDuration(t time.Time, n int, u Unit) time.Time {
	switch u {
	case UnitDay:
		return t.AddDate(0, 0, n)
	case UnitWeek:
		return t.AddDate(0, 0, 7*n)
	case UnitMonth:
		return addMonths(t, n)
	case UnitYear:
		return addMonths(t, 12*n)
	}
	return t
}

func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, n, 0)
	day := t.Day()
	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// EndOfDay returns 23:59:59 UTC of t's UTC day.
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 0, time.UTC)
}

// AtMaximumRenewals reports whether a payment plan has collected every
// payment: the initial one plus maxRenewals renewals.
func AtMaximumRenewals(timesBilled, maxRenewals int) bool {
	if maxRenewals <= 0 {
		return false
	}
	return timesBilled >= maxRenewals+1
}

// FinalPaymentOutcome describes how a completed payment plan changes the
// membership.
type FinalPaymentOutcome struct {
	// Lifetime clears the expiration date.
	Lifetime bool
	// ExpireNow moves the membership to expired right away.
	ExpireNow bool
}

func (p Plan) FinalPaymentOutcome() FinalPaymentOutcome {
	switch p.AfterFinalPayment {
	case AfterFinalPaymentExpireImmediately:
		return FinalPaymentOutcome{ExpireNow: true}
	case AfterFinalPaymentExpireTermEnd:
		return FinalPaymentOutcome{}
	default:
		return FinalPaymentOutcome{Lifetime: true}
	}
}

// HasAccess reports whether a membership currently grants access. Cancelled
// memberships keep access until their expiration date.
func HasAccess(status Status, disabled bool, expiration *time.Time, now time.Time) bool {
	if disabled {
		return false
	}
	switch status {
	case StatusActive, StatusCancelled:
	default:
		return false
	}
	return expiration == nil || expiration.After(now)
}
