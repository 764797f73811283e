package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nimbusmart/storefront/internal/domain/coupon"
)

// Codes are stored upper-cased, so a case-insensitive lookup only has to
// normalize the parameter.
const getCouponByCodeSQL = `SELECT code, discount_type, value,
		COALESCE(min_amount, 0), COALESCE(max_discount, 0),
		usage_limit, used_count, starts_at, expires_at, description
	FROM coupons WHERE code = UPPER($1) AND active = TRUE`

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
		usageLimit   int32
		usedCount    int32
		startsAt     *time.Time
		expiresAt    *time.Time
	)
	err := row.Scan(
		&rule.Code, &discountType, &rule.Value,
		&rule.MinAmount, &rule.MaxDiscount,
		&usageLimit, &usedCount, &startsAt, &expiresAt, &rule.Description,
	)
	rule.Type = coupon.DiscountType(discountType)
	rule.UsageLimit = int(usageLimit)
	rule.UsedCount = int(usedCount)
	rule.StartsAt = startsAt
	rule.ExpiresAt = expiresAt
	return rule, err
}
