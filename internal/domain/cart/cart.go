package cart

import "context"

// Item is one line of a user's server-side cart. A cart holds at most one
// row per (product, variant) pair; adding the same pair again bumps the
// quantity. Rows exist only while unordered.
type Item struct {
	UserID    string
	ProductID string
	VariantID string
	Quantity  int
}

// Repository defines persistence operations for server-side carts. Guest
// carts live client-side and never reach this interface.
type Repository interface {
	List(ctx context.Context, userID string) ([]Item, error)
	// Upsert inserts the line or adds its quantity to an existing one.
	Upsert(ctx context.Context, item Item) error
	Remove(ctx context.Context, userID, productID, variantID string) error
	Clear(ctx context.Context, userID string) error
}
