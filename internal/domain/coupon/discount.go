package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply calculates the discount for the given rule against a pre-discount
// purchase amount. It is a pure function: eligibility (window, usage, minimum
// amount) is the validator's job.
func Apply(rule *Rule, amount decimal.Decimal) (Discount, error) {
	switch rule.Type {
	case DiscountPercentage:
		return applyPercentage(rule, amount), nil
	case DiscountFixedAmount:
		return Discount{
			Amount:      floorAtZero(rule.Value).Round(2),
			Description: rule.Description,
		}, nil
	case DiscountFreeShipping:
		return Discount{
			Amount:       decimal.Zero,
			FreeShipping: true,
			Description:  rule.Description,
		}, nil
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.Type)
	}
}

func applyPercentage(rule *Rule, amount decimal.Decimal) Discount {
	d := amount.Mul(rule.Value).Div(hundred)
	if rule.MaxDiscount.IsPositive() && d.GreaterThan(rule.MaxDiscount) {
		d = rule.MaxDiscount
	}
	return Discount{
		Amount:      floorAtZero(d).Round(2),
		Description: rule.Description,
	}
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
