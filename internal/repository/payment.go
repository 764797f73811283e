package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nimbusmart/storefront/internal/domain/order"
	"github.com/nimbusmart/storefront/internal/domain/payment"
)

const (
	insertPaymentSQL = `INSERT INTO payments (id, order_id, amount, method, status,
			gateway, transaction_id, gateway_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getPaymentSQL = `SELECT id, order_id, amount, method, status,
			gateway, transaction_id, gateway_data, created_at
		FROM payments WHERE id = $1`

	listPaymentsByOrderSQL = `SELECT id, order_id, amount, method, status,
			gateway, transaction_id, gateway_data, created_at
		FROM payments WHERE order_id = $1 ORDER BY created_at DESC`

	findOpenPaymentSQL = `SELECT id, order_id, amount, method, status,
			gateway, transaction_id, gateway_data, created_at
		FROM payments
		WHERE order_id = $1 AND method = $2 AND status IN ('PENDING', 'COMPLETED')
		ORDER BY created_at DESC LIMIT 1`

	latestCompletedPaymentSQL = `SELECT method, transaction_id, amount
		FROM payments
		WHERE order_id = $1 AND status = 'COMPLETED'
		ORDER BY created_at DESC LIMIT 1`

	completePendingPaymentSQL = `UPDATE payments SET status = 'COMPLETED', transaction_id = $2
		WHERE id = $1 AND status = 'PENDING'
		RETURNING id, order_id, amount, method, status,
			gateway, transaction_id, gateway_data, created_at`

	confirmOrderSQL = `UPDATE orders SET status = 'confirmed'
		WHERE id = $1 AND status = 'pending'`

	failStalePaymentsSQL = `UPDATE payments SET status = 'FAILED'
		WHERE method = $1 AND status = 'PENDING' AND created_at < $2`
)

var (
	_ payment.Repository  = (*PaymentRepository)(nil)
	_ order.PaymentLedger = (*PaymentRepository)(nil)
)

// PaymentRepository implements payment.Repository backed by PostgreSQL. It
// also serves as the order ledger's read-side view of completed payments.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create inserts a payment row as-is, PENDING rows included.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	_, err := r.pool.Exec(ctx, insertPaymentSQL,
		p.ID, p.OrderID, p.Amount, string(p.Method), string(p.Status),
		p.Gateway, p.TransactionID, p.GatewayData,
	)
	if err != nil {
		return fmt.Errorf("inserting payment %q: %w", p.ID, err)
	}
	return nil
}

// GetByID returns the payment with the given id.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	rows, err := r.pool.Query(ctx, getPaymentSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting payment %q: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("getting payment %q: %w", id, err)
	}
	return &p, nil
}

// ListByOrder returns all payment rows for the order, newest first.
func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]payment.Payment, error) {
	rows, err := r.pool.Query(ctx, listPaymentsByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing payments for order %q: %w", orderID, err)
	}
	list, err := pgx.CollectRows(rows, scanPayment)
	if err != nil {
		return nil, fmt.Errorf("listing payments for order %q: %w", orderID, err)
	}
	return list, nil
}

// FindOpenByOrder returns the newest PENDING or COMPLETED payment with the
// given method, or (nil, nil) when the order has none.
func (r *PaymentRepository) FindOpenByOrder(ctx context.Context, orderID string, method payment.Method) (*payment.Payment, error) {
	rows, err := r.pool.Query(ctx, findOpenPaymentSQL, orderID, string(method))
	if err != nil {
		return nil, fmt.Errorf("finding open payment for order %q: %w", orderID, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding open payment for order %q: %w", orderID, err)
	}
	return &p, nil
}

// LatestCompleted returns the most recent COMPLETED payment for the order,
// or (nil, nil) when none exists.
func (r *PaymentRepository) LatestCompleted(ctx context.Context, orderID string) (*order.CompletedPayment, error) {
	var cp order.CompletedPayment
	err := r.pool.QueryRow(ctx, latestCompletedPaymentSQL, orderID).
		Scan(&cp.Method, &cp.TransactionID, &cp.Amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting latest completed payment for order %q: %w", orderID, err)
	}
	return &cp, nil
}

// CreateCompleted inserts a COMPLETED payment row and confirms its order in
// the same transaction. A concurrent confirmation makes the guarded order
// update a no-op, which is fine.
func (r *PaymentRepository) CreateCompleted(ctx context.Context, p *payment.Payment) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertPaymentSQL,
			p.ID, p.OrderID, p.Amount, string(p.Method), string(p.Status),
			p.Gateway, p.TransactionID, p.GatewayData,
		)
		if err != nil {
			return fmt.Errorf("inserting payment %q: %w", p.ID, err)
		}
		if _, err := tx.Exec(ctx, confirmOrderSQL, p.OrderID); err != nil {
			return fmt.Errorf("confirming order %q: %w", p.OrderID, err)
		}
		return nil
	})
}

// CompletePending settles a PENDING payment and confirms its order.
func (r *PaymentRepository) CompletePending(ctx context.Context, paymentID, transactionID string) (*payment.Payment, error) {
	var p payment.Payment
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, completePendingPaymentSQL, paymentID, transactionID)
		if err != nil {
			return fmt.Errorf("completing payment %q: %w", paymentID, err)
		}
		p, err = pgx.CollectExactlyOneRow(rows, scanPayment)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return payment.ErrNotPending
			}
			return fmt.Errorf("completing payment %q: %w", paymentID, err)
		}

		if _, err := tx.Exec(ctx, confirmOrderSQL, p.OrderID); err != nil {
			return fmt.Errorf("confirming order %q: %w", p.OrderID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FailPendingOlderThan sweeps stale PENDING payments of the given method.
func (r *PaymentRepository) FailPendingOlderThan(ctx context.Context, method payment.Method, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, failStalePaymentsSQL, string(method), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failing stale %s payments: %w", method, err)
	}
	return tag.RowsAffected(), nil
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var (
		p              payment.Payment
		method, status string
	)
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Amount, &method, &status,
		&p.Gateway, &p.TransactionID, &p.GatewayData, &p.CreatedAt,
	)
	p.Method = payment.Method(method)
	p.Status = payment.Status(status)
	return p, err
}
