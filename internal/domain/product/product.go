package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist or is
// not active.
var ErrNotFound = errors.New("product not found")

// ErrInsufficientStock is returned when a stock adjustment would drive the
// on-hand quantity below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// Product is a catalog item available for purchase. Stock is mutated only
// by order-ledger transactions and admin restocks.
type Product struct {
	ID       string
	Name     string
	Category string
	Price    decimal.Decimal
	OldPrice decimal.Decimal
	Stock    int
	Active   bool
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetActiveByIDs returns the active products matching the given IDs.
	// Missing or inactive products are absent from the result.
	GetActiveByIDs(ctx context.Context, ids []string) ([]Product, error)
	// AdjustStock applies a relative stock change outside the order flow.
	// It returns ErrInsufficientStock if the change would drive stock
	// negative and ErrNotFound if the product does not exist.
	AdjustStock(ctx context.Context, id string, delta int) error
}
