package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off the order subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixedAmount takes a flat amount off the order total.
	DiscountFixedAmount DiscountType = "fixed_amount"
	// DiscountFreeShipping waives the shipping charge. The discount amount
	// itself is zero.
	DiscountFreeShipping DiscountType = "free_shipping"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not found or inactive.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its validity window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

// MinAmountError indicates the purchase amount is below the coupon's minimum.
type MinAmountError struct {
	MinAmount decimal.Decimal
}

func (e *MinAmountError) Error() string {
	return fmt.Sprintf("minimum purchase amount of %s not met", e.MinAmount.StringFixed(2))
}

// Rule defines a coupon's discount behaviour and eligibility constraints.
// Codes are stored upper-cased; lookups are case-insensitive. A zero
// UsageLimit means unlimited; zero MinAmount and MaxDiscount mean unset.
type Rule struct {
	Code        string
	Type        DiscountType
	Value       decimal.Decimal
	MinAmount   decimal.Decimal
	MaxDiscount decimal.Decimal
	UsageLimit  int
	UsedCount   int
	StartsAt    *time.Time
	ExpiresAt   *time.Time
	Description string
}

// Discount is the outcome of evaluating a rule against a purchase amount.
type Discount struct {
	Amount       decimal.Decimal
	FreeShipping bool
	Description  string
}

// Repository provides lookup of active coupon rules. Usage counts are
// incremented only inside the order ledger's apply-coupon transaction,
// never by the evaluator.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
}
