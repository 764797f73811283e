package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nimbusmart/storefront/internal/domain/coupon"
	"github.com/nimbusmart/storefront/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, order_number, user_id, status,
			subtotal, tax, shipping, discount, total, coupon_code,
			shipping_address_id, billing_address_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, variant_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)`

	// Stock only moves when enough is on hand; zero rows affected means the
	// shortfall aborts the surrounding transaction.
	decrementStockSQL = `UPDATE products SET stock = stock - $1
		WHERE id = $2 AND active AND stock >= $1`

	restoreStockSQL = `UPDATE products SET stock = stock + $1 WHERE id = $2`

	getOrderSQL = `SELECT id, order_number, user_id, status,
			subtotal, tax, shipping, discount, total, coupon_code,
			shipping_address_id, billing_address_id, notes, tracking_number,
			created_at, shipped_at, delivered_at
		FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT id, order_number, user_id, status,
			subtotal, tax, shipping, discount, total, coupon_code,
			shipping_address_id, billing_address_id, notes, tracking_number,
			created_at, shipped_at, delivered_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	getOrderItemsSQL = `SELECT product_id, variant_id, quantity, price
		FROM order_items WHERE order_id = $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $2,
			shipped_at = CASE WHEN $2 = 'shipped' AND shipped_at IS NULL THEN NOW() ELSE shipped_at END,
			delivered_at = CASE WHEN $2 = 'delivered' AND delivered_at IS NULL THEN NOW() ELSE delivered_at END,
			tracking_number = CASE WHEN $3 <> '' THEN $3 ELSE tracking_number END
		WHERE id = $1`

	cancelOrderSQL = `UPDATE orders SET status = 'cancelled'
		WHERE id = $1 AND status IN ('pending', 'confirmed')`

	// Guarded increment: rolls back the apply-coupon transaction when the
	// usage limit is already exhausted.
	incrementCouponUsageSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE code = $1 AND active AND (usage_limit = 0 OR used_count < usage_limit)`

	applyCouponToOrderSQL = `UPDATE orders SET coupon_code = $2, discount = $3,
			shipping = $4, total = $5
		WHERE id = $1`

	insertRefundPaymentSQL = `INSERT INTO payments (id, order_id, amount, method, status,
			gateway, transaction_id, gateway_data)
		VALUES ($1, $2, $3, $4, 'REFUNDED', '', '', $5)`

	markOrderRefundedSQL = `UPDATE orders SET status = 'refunded'
		WHERE id = $1 AND status = 'cancelled'`

	clearCartForOrderSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. The
// multi-row mutations each run in a single transaction so stock, order,
// cart, and coupon state move together or not at all.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order with its items, decrements stock per line with a
// guarded update, and clears the user's server-side cart, all in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.OrderNumber, o.UserID, string(o.Status),
			o.Subtotal, o.Tax, o.Shipping, o.Discount, o.Total, o.CouponCode,
			o.ShippingAddressID, o.BillingAddressID, o.Notes,
		)
		if err != nil {
			return fmt.Errorf("inserting order %q: %w", o.ID, err)
		}

		for _, it := range o.Items {
			tag, err := tx.Exec(ctx, decrementStockSQL, it.Quantity, it.ProductID)
			if err != nil {
				return fmt.Errorf("decrementing stock for %q: %w", it.ProductID, err)
			}
			if tag.RowsAffected() == 0 {
				return &order.InsufficientStockError{ProductID: it.ProductID}
			}

			_, err = tx.Exec(ctx, insertOrderItemSQL,
				o.ID, it.ProductID, it.VariantID, it.Quantity, it.Price,
			)
			if err != nil {
				return fmt.Errorf("inserting order item %q: %w", it.ProductID, err)
			}
		}

		if _, err := tx.Exec(ctx, clearCartForOrderSQL, o.UserID); err != nil {
			return fmt.Errorf("clearing cart for %q: %w", o.UserID, err)
		}
		return nil
	})
	if err != nil {
		var ise *order.InsufficientStockError
		if errors.As(err, &ise) {
			return ise
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns the order with its line items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	itemRows, err := r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns the user's orders newest first, items included.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", userID, err)
	}
	list, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", userID, err)
	}

	for i := range list {
		itemRows, err := r.pool.Query(ctx, getOrderItemsSQL, list[i].ID)
		if err != nil {
			return nil, fmt.Errorf("getting items for order %q: %w", list[i].ID, err)
		}
		list[i].Items, err = pgx.CollectRows(itemRows, scanOrderItem)
		if err != nil {
			return nil, fmt.Errorf("getting items for order %q: %w", list[i].ID, err)
		}
	}
	return list, nil
}

// UpdateStatus sets the status, stamping shipped_at/delivered_at on the
// matching transitions.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, trackingNumber string) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status), trackingNumber)
	if err != nil {
		return fmt.Errorf("updating status for order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Cancel marks the order cancelled and restores stock for every line. The
// status guard keeps a concurrent ship/cancel race from restoring stock for
// an order that already moved on. Coupon usage, if any, stays incremented.
func (r *OrderRepository) Cancel(ctx context.Context, o *order.Order) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, cancelOrderSQL, o.ID)
		if err != nil {
			return fmt.Errorf("cancelling order %q: %w", o.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return order.ErrInvalidTransition
		}

		for _, it := range o.Items {
			if _, err := tx.Exec(ctx, restoreStockSQL, it.Quantity, it.ProductID); err != nil {
				return fmt.Errorf("restoring stock for %q: %w", it.ProductID, err)
			}
		}
		return nil
	})
}

// ApplyCoupon records the discount on the order and bumps the coupon's
// usage count, both guarded, in one transaction.
func (r *OrderRepository) ApplyCoupon(ctx context.Context, orderID, code string, discount, shipping, total decimal.Decimal) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, incrementCouponUsageSQL, code)
		if err != nil {
			return fmt.Errorf("incrementing usage for coupon %q: %w", code, err)
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrUsageLimitReached
		}

		if _, err := tx.Exec(ctx, applyCouponToOrderSQL, orderID, code, discount, shipping, total); err != nil {
			return fmt.Errorf("applying coupon to order %q: %w", orderID, err)
		}
		return nil
	})
}

// Refund writes the REFUNDED payment row and, for full refunds, flips the
// order status in the same transaction.
func (r *OrderRepository) Refund(ctx context.Context, rec order.RefundRecord) error {
	data, err := json.Marshal(map[string]string{
		"estimated_delivery": rec.EstimatedDelivery,
		"notes":              rec.Notes,
	})
	if err != nil {
		return fmt.Errorf("marshaling refund data: %w", err)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertRefundPaymentSQL,
			rec.PaymentID, rec.OrderID, rec.Amount, rec.Method, data,
		)
		if err != nil {
			return fmt.Errorf("inserting refund payment for order %q: %w", rec.OrderID, err)
		}

		if rec.MarkRefunded {
			tag, err := tx.Exec(ctx, markOrderRefundedSQL, rec.OrderID)
			if err != nil {
				return fmt.Errorf("marking order %q refunded: %w", rec.OrderID, err)
			}
			if tag.RowsAffected() == 0 {
				return order.ErrNotCancelled
			}
		}
		return nil
	})
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &status,
		&o.Subtotal, &o.Tax, &o.Shipping, &o.Discount, &o.Total, &o.CouponCode,
		&o.ShippingAddressID, &o.BillingAddressID, &o.Notes, &o.TrackingNumber,
		&o.CreatedAt, &o.ShippedAt, &o.DeliveredAt,
	)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(&it.ProductID, &it.VariantID, &it.Quantity, &it.Price)
	return it, err
}
