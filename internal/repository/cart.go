package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nimbusmart/storefront/internal/domain/cart"
)

const (
	listCartItemsSQL = `SELECT user_id, product_id, variant_id, quantity
		FROM cart_items WHERE user_id = $1 ORDER BY product_id, variant_id`

	upsertCartItemSQL = `INSERT INTO cart_items (user_id, product_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id, variant_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	removeCartItemSQL = `DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = $2 AND variant_id = $3`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// List returns the user's cart lines.
func (r *CartRepository) List(ctx context.Context, userID string) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx, listCartItemsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanCartItem)
}

// Upsert inserts the line or adds its quantity to the existing one.
func (r *CartRepository) Upsert(ctx context.Context, item cart.Item) error {
	_, err := r.pool.Exec(ctx, upsertCartItemSQL,
		item.UserID, item.ProductID, item.VariantID, item.Quantity,
	)
	if err != nil {
		return fmt.Errorf("upserting cart item %q: %w", item.ProductID, err)
	}
	return nil
}

// Remove deletes a single cart line.
func (r *CartRepository) Remove(ctx context.Context, userID, productID, variantID string) error {
	_, err := r.pool.Exec(ctx, removeCartItemSQL, userID, productID, variantID)
	if err != nil {
		return fmt.Errorf("removing cart item %q: %w", productID, err)
	}
	return nil
}

// Clear deletes every cart line for the user.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, clearCartSQL, userID)
	if err != nil {
		return fmt.Errorf("clearing cart for %q: %w", userID, err)
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.UserID, &it.ProductID, &it.VariantID, &it.Quantity)
	return it, err
}
