package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator evaluates a coupon code against a pre-discount purchase amount
// and returns the computed discount. Validation is read-only.
type Validator interface {
	Validate(ctx context.Context, code string, amount decimal.Decimal) (*Discount, error)
}

// RepoValidator implements Validator by looking up coupon rules from a
// Repository and applying them via the Apply function.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the rule for the given code and checks its validity
// window, usage-limit head room, and minimum purchase amount. The minimum is
// compared against the pre-discount amount, not the post-tax total.
func (v *RepoValidator) Validate(ctx context.Context, code string, amount decimal.Decimal) (*Discount, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := v.now()

	if rule.StartsAt != nil && now.Before(*rule.StartsAt) {
		return nil, ErrCouponExpired
	}
	if rule.ExpiresAt != nil && now.After(*rule.ExpiresAt) {
		return nil, ErrCouponExpired
	}

	if rule.UsageLimit > 0 && rule.UsedCount >= rule.UsageLimit {
		return nil, ErrUsageLimitReached
	}

	if rule.MinAmount.IsPositive() && amount.LessThan(rule.MinAmount) {
		return nil, &MinAmountError{MinAmount: rule.MinAmount}
	}

	d, err := Apply(rule, amount)
	if err != nil {
		return nil, err
	}

	return &d, nil
}
