package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method identifies the payment instrument.
type Method string

const (
	MethodCard        Method = "card"
	MethodPayPal      Method = "paypal"
	MethodMobileMoney Method = "mobile_money"
)

// Status is the settlement state of a payment row.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusRefunded  Status = "REFUNDED"
	StatusFailed    Status = "FAILED"
)

var (
	// ErrGatewayDisabled is returned for payment routes that are switched
	// off in the current deployment (card/Stripe).
	ErrGatewayDisabled = errors.New("payment gateway disabled")
	// ErrNotApproved is returned when the gateway reports any state other
	// than approved on execution. No payment row is written.
	ErrNotApproved = errors.New("payment not approved by gateway")
	// ErrNotFound is returned when a payment does not exist.
	ErrNotFound = errors.New("payment not found")
	// ErrNotPending is returned when completing a payment that is not in the
	// PENDING state.
	ErrNotPending = errors.New("payment is not pending")
	// ErrAlreadyPaid is returned when charging an order that already left
	// the pending status.
	ErrAlreadyPaid = errors.New("order already paid")
)

// Payment is one settlement record against an order. An order may carry
// several rows: the original charge plus later refund entries.
type Payment struct {
	ID            string
	OrderID       string
	Amount        decimal.Decimal
	Method        Method
	Status        Status
	Gateway       string
	TransactionID string
	GatewayData   json.RawMessage
	CreatedAt     time.Time
}

// Repository defines persistence for payments. Operations that settle an
// order (CreateCompleted, CompletePending) also confirm the order inside the
// same transaction.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id string) (*Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
	// FindOpenByOrder returns the newest PENDING or COMPLETED payment with
	// the given method for the order, or (nil, nil) when none exists.
	FindOpenByOrder(ctx context.Context, orderID string, method Method) (*Payment, error)
	// CreateCompleted inserts a COMPLETED payment row and confirms its order.
	CreateCompleted(ctx context.Context, p *Payment) error
	// CompletePending moves a PENDING payment to COMPLETED with the given
	// transaction id and confirms its order. Returns ErrNotPending when the
	// payment already settled or failed.
	CompletePending(ctx context.Context, paymentID, transactionID string) (*Payment, error)
	// FailPendingOlderThan fails PENDING payments of the given method
	// created before the cutoff and returns how many were swept.
	FailPendingOlderThan(ctx context.Context, method Method, cutoff time.Time) (int64, error)
}
