package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/nimbusmart/storefront/internal/domain/order"
)

// OrderStore is the slice of the order ledger the payment adapter reads.
type OrderStore interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
}

// PayPalRedirect is returned from the create phase of the redirect flow.
type PayPalRedirect struct {
	PaymentID   string
	ApprovalURL string
}

// Service is the gateway adapter: a uniform surface over the heterogeneous
// payment backends, producing payment rows and order-status side effects.
type Service struct {
	orders   OrderStore
	payments Repository
	paypal   PayPalClient
	currency string
}

// NewService creates a payment Service.
func NewService(orders OrderStore, payments Repository, paypal PayPalClient, currency string) *Service {
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		orders:   orders,
		payments: payments,
		paypal:   paypal,
		currency: currency,
	}
}

// CreateCardIntent is the card happy path placeholder. The card gateway is
// disabled in this deployment, so it always fails with ErrGatewayDisabled;
// the route stays wired for forward compatibility.
func (s *Service) CreateCardIntent(ctx context.Context, userID, orderID string) error {
	if _, err := s.ownedPayable(ctx, userID, orderID); err != nil {
		return err
	}
	return ErrGatewayDisabled
}

// PayPalCreate builds a redirect payment at the gateway from the order's
// line items and totals, returning the approval URL for the client.
func (s *Service) PayPalCreate(ctx context.Context, userID, orderID string) (*PayPalRedirect, error) {
	o, err := s.ownedPayable(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	items := make([]PayPalItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = PayPalItem{SKU: it.ProductID, Price: it.Price, Quantity: it.Quantity}
	}

	created, err := s.paypal.CreatePayment(ctx, PayPalCreateRequest{
		OrderNumber: o.OrderNumber,
		Items:       items,
		Subtotal:    o.Subtotal,
		Tax:         o.Tax,
		Shipping:    o.Shipping,
		Total:       o.Total,
		Currency:    s.currency,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create paypal payment")
	}

	return &PayPalRedirect{PaymentID: created.PaymentID, ApprovalURL: created.ApprovalURL}, nil
}

// PayPalExecute finalizes an approved redirect payment. On gateway state
// "approved" it records a COMPLETED payment carrying the raw gateway payload
// and confirms the order in one transaction; on any other state nothing is
// persisted and the order is untouched.
func (s *Service) PayPalExecute(ctx context.Context, userID, orderID, paymentID, payerID string) (*Payment, error) {
	o, err := s.ownedPayable(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	executed, err := s.paypal.ExecutePayment(ctx, paymentID, payerID)
	if err != nil {
		return nil, errors.Wrap(err, "execute paypal payment")
	}
	if executed.State != "approved" {
		return nil, ErrNotApproved
	}

	p := &Payment{
		ID:            uuid.New().String(),
		OrderID:       o.ID,
		Amount:        o.Total,
		Method:        MethodPayPal,
		Status:        StatusCompleted,
		Gateway:       "paypal",
		TransactionID: executed.PaymentID,
		GatewayData:   executed.Raw,
	}
	if err := s.payments.CreateCompleted(ctx, p); err != nil {
		return nil, errors.Wrap(err, "record paypal payment")
	}
	return p, nil
}

// MobileMoneyRequest accepts a carrier charge request: it records a PENDING
// payment and returns immediately. Settlement arrives later through the
// carrier callback. Repeating the request for the same order returns the
// already-open payment instead of creating another.
func (s *Service) MobileMoneyRequest(ctx context.Context, userID, orderID, phoneNumber, provider string) (*Payment, error) {
	o, err := s.ownedPayable(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if open, err := s.payments.FindOpenByOrder(ctx, o.ID, MethodMobileMoney); err != nil {
		return nil, errors.Wrap(err, "find open payment")
	} else if open != nil {
		return open, nil
	}

	data, err := json.Marshal(map[string]string{
		"phone_number": phoneNumber,
		"provider":     provider,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal gateway data")
	}

	p := &Payment{
		ID:          uuid.New().String(),
		OrderID:     o.ID,
		Amount:      o.Total,
		Method:      MethodMobileMoney,
		Status:      StatusPending,
		Gateway:     provider,
		GatewayData: data,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "record mobile money payment")
	}
	return p, nil
}

// MobileMoneyConfirm is the carrier-confirmation entry point (webhook). It
// settles the PENDING payment with a generated transaction id and confirms
// the order atomically.
func (s *Service) MobileMoneyConfirm(ctx context.Context, paymentID string) (*Payment, error) {
	txn := "MM-" + uuid.New().String()
	p, err := s.payments.CompletePending(ctx, paymentID, txn)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ExpirePending sweeps PENDING mobile-money payments whose confirmation
// never arrived within maxAge, marking them FAILED.
func (s *Service) ExpirePending(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	return s.payments.FailPendingOlderThan(ctx, MethodMobileMoney, cutoff)
}

// ListByOrder returns the payment rows recorded against an owned order.
func (s *Service) ListByOrder(ctx context.Context, userID, orderID string) ([]Payment, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, order.ErrForbidden
	}
	return s.payments.ListByOrder(ctx, o.ID)
}

// ownedPayable loads the order, enforces ownership, and requires it to still
// be awaiting payment.
func (s *Service) ownedPayable(ctx context.Context, userID, orderID string) (*order.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, order.ErrForbidden
	}
	if o.Status != order.StatusPending {
		return nil, ErrAlreadyPaid
	}
	return o, nil
}
