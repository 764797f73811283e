package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the order lifecycle state. The forward path is
// pending -> confirmed -> processing -> shipped -> delivered, with
// cancelled and refunded as side branches.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusConfirmed
}

var (
	// ErrEmptyCart is returned when a checkout has no items to order.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrForbidden is returned when an order belongs to another user.
	ErrForbidden = errors.New("order belongs to another user")
	// ErrInvalidTransition is returned when the requested lifecycle change is
	// not allowed from the order's current status.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrNotCancelled is returned when a refund is requested for an order
	// that has not been cancelled.
	ErrNotCancelled = errors.New("order must be cancelled before refund")
	// ErrRefundExceedsTotal is returned when a refund amount is above the
	// order total.
	ErrRefundExceedsTotal = errors.New("refund amount exceeds order total")
)

// InsufficientStockError indicates a line item asked for more units than the
// product has in stock. Checkout is all-or-nothing: one short line aborts the
// whole order.
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

// ProductUnavailableError indicates a requested product is missing or inactive.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// Item is a single order line. Price is a snapshot of the product price at
// order time and is never recomputed from the current catalog.
type Item struct {
	ProductID string
	VariantID string
	Quantity  int
	Price     decimal.Decimal
}

// Order is a persisted customer order. Everything except status, tracking,
// and the financial adjustment fields is immutable after creation.
type Order struct {
	ID                string
	OrderNumber       string
	UserID            string
	Status            Status
	Subtotal          decimal.Decimal
	Tax               decimal.Decimal
	Shipping          decimal.Decimal
	Discount          decimal.Decimal
	Total             decimal.Decimal
	CouponCode        string
	ShippingAddressID string
	BillingAddressID  string
	Notes             string
	TrackingNumber    string
	Items             []Item
	CreatedAt         time.Time
	ShippedAt         *time.Time
	DeliveredAt       *time.Time
}

// RefundInfo is the informational refund eligibility computed on
// cancellation. It does not move money.
type RefundInfo struct {
	Eligible bool
	Amount   decimal.Decimal
	Method   string
}

// CompletedPayment summarizes the latest completed payment against an order.
type CompletedPayment struct {
	Method        string
	TransactionID string
	Amount        decimal.Decimal
}

// PaymentLedger is the slice of the payment store the order ledger reads.
type PaymentLedger interface {
	// LatestCompleted returns the most recent COMPLETED payment for the
	// order, or (nil, nil) when none exists.
	LatestCompleted(ctx context.Context, orderID string) (*CompletedPayment, error)
}

// RefundRecord is the input for recording a refund payment row.
type RefundRecord struct {
	PaymentID         string
	OrderID           string
	Amount            decimal.Decimal
	Method            string
	Notes             string
	EstimatedDelivery string
	// MarkRefunded flips the order status to refunded in the same
	// transaction (full refunds only).
	MarkRefunded bool
}

// Repository defines persistence for orders. The multi-row operations
// (Create, Cancel, ApplyCoupon, Refund) are each a single transaction.
type Repository interface {
	// Create persists the order and its items, decrements product stock with
	// a guarded update, and clears the user's cart. Any stock shortfall
	// aborts the transaction with an InsufficientStockError.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// UpdateStatus sets the status and stamps shipped_at/delivered_at on the
	// corresponding transitions. Tracking number is updated when non-empty.
	UpdateStatus(ctx context.Context, id string, status Status, trackingNumber string) error
	// Cancel marks the order cancelled and restores stock for every item.
	// The coupon usage count, if any, is deliberately left untouched.
	Cancel(ctx context.Context, o *Order) error
	// ApplyCoupon records the discount on the order and increments the
	// coupon's used_count with a usage-limit guard; the guard failing rolls
	// back with coupon.ErrUsageLimitReached.
	ApplyCoupon(ctx context.Context, orderID, code string, discount, shipping, total decimal.Decimal) error
	// Refund writes a REFUNDED payment row and, for full refunds, flips the
	// order status in the same transaction.
	Refund(ctx context.Context, rec RefundRecord) error
}
