package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_Percentage(t *testing.T) {
	rule := &Rule{
		Code:  "TEN",
		Type:  DiscountPercentage,
		Value: decimal.NewFromInt(10),
	}

	d, err := Apply(rule, decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.00").Equal(d.Amount))
	assert.False(t, d.FreeShipping)
}

func TestApply_PercentageRounding(t *testing.T) {
	rule := &Rule{
		Code:  "FIFTEEN",
		Type:  DiscountPercentage,
		Value: decimal.NewFromInt(15),
	}

	d, err := Apply(rule, decimal.RequireFromString("33.33"))
	require.NoError(t, err)
	// 15% of 33.33 = 4.9995, rounded to cents.
	assert.True(t, decimal.RequireFromString("5.00").Equal(d.Amount))
}

func TestApply_PercentageCappedAtMaxDiscount(t *testing.T) {
	rule := &Rule{
		Code:        "HALFOFF",
		Type:        DiscountPercentage,
		Value:       decimal.NewFromInt(50),
		MaxDiscount: decimal.NewFromInt(30),
	}

	d, err := Apply(rule, decimal.RequireFromString("200.00"))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("30.00").Equal(d.Amount))
}

func TestApply_FixedAmount(t *testing.T) {
	rule := &Rule{
		Code:  "SAVE20",
		Type:  DiscountFixedAmount,
		Value: decimal.NewFromInt(20),
	}

	d, err := Apply(rule, decimal.RequireFromString("55.00"))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("20.00").Equal(d.Amount))
}

func TestApply_FreeShipping(t *testing.T) {
	rule := &Rule{
		Code: "FREESHIP",
		Type: DiscountFreeShipping,
	}

	d, err := Apply(rule, decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	assert.True(t, d.Amount.IsZero())
	assert.True(t, d.FreeShipping)
}

func TestApply_UnknownType(t *testing.T) {
	rule := &Rule{Code: "WAT", Type: "bogo"}

	_, err := Apply(rule, decimal.NewFromInt(10))
	require.Error(t, err)
}
