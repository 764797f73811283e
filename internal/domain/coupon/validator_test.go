package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	rules map[string]*Rule
	err   error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*Rule, error) {
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.rules[code]
	if !ok {
		return nil, ErrInvalidCoupon
	}
	return r, nil
}

func newValidator(now time.Time, rules ...*Rule) *RepoValidator {
	byCode := make(map[string]*Rule, len(rules))
	for _, r := range rules {
		byCode[r.Code] = r
	}
	v := NewRepoValidator(&mockCouponRepo{rules: byCode})
	v.now = func() time.Time { return now }
	return v
}

func welcome10() *Rule {
	return &Rule{
		Code:        "WELCOME10",
		Type:        DiscountPercentage,
		Value:       decimal.NewFromInt(10),
		MinAmount:   decimal.NewFromInt(50),
		Description: "Welcome: 10% off orders over $50",
	}
}

func TestValidate_Welcome10BelowMinimum(t *testing.T) {
	v := newValidator(time.Now(), welcome10())

	_, err := v.Validate(context.Background(), "WELCOME10", decimal.RequireFromString("40.00"))

	var minErr *MinAmountError
	require.ErrorAs(t, err, &minErr)
	assert.True(t, decimal.NewFromInt(50).Equal(minErr.MinAmount))
}

func TestValidate_Welcome10AboveMinimum(t *testing.T) {
	v := newValidator(time.Now(), welcome10())

	d, err := v.Validate(context.Background(), "WELCOME10", decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.00").Equal(d.Amount))
}

func TestValidate_UnknownCode(t *testing.T) {
	v := newValidator(time.Now())

	_, err := v.Validate(context.Background(), "NOPE", decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrInvalidCoupon)
}

func TestValidate_NotYetStarted(t *testing.T) {
	now := time.Now()
	starts := now.Add(time.Hour)
	rule := welcome10()
	rule.StartsAt = &starts
	v := newValidator(now, rule)

	_, err := v.Validate(context.Background(), "WELCOME10", decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrCouponExpired)
}

func TestValidate_Expired(t *testing.T) {
	now := time.Now()
	expired := now.Add(-time.Hour)
	rule := welcome10()
	rule.ExpiresAt = &expired
	v := newValidator(now, rule)

	_, err := v.Validate(context.Background(), "WELCOME10", decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrCouponExpired)
}

func TestValidate_UsageLimitExhausted(t *testing.T) {
	rule := welcome10()
	rule.UsageLimit = 5
	rule.UsedCount = 5
	v := newValidator(time.Now(), rule)

	_, err := v.Validate(context.Background(), "WELCOME10", decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrUsageLimitReached)
}

func TestValidate_ZeroUsageLimitMeansUnlimited(t *testing.T) {
	rule := welcome10()
	rule.UsedCount = 1_000_000
	v := newValidator(time.Now(), rule)

	_, err := v.Validate(context.Background(), "WELCOME10", decimal.NewFromInt(100))
	require.NoError(t, err)
}
