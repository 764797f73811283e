package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nimbusmart/storefront/internal/domain/cart"
	"github.com/nimbusmart/storefront/internal/domain/coupon"
	"github.com/nimbusmart/storefront/internal/domain/product"
)

// CheckoutItem is one requested order line.
type CheckoutItem struct {
	ProductID string
	VariantID string
	Quantity  int
}

// CheckoutRequest holds the input for creating an order. When Items is empty
// the user's server-side cart is used instead.
type CheckoutRequest struct {
	Items             []CheckoutItem
	ShippingAddressID string
	BillingAddressID  string
	Notes             string
}

// CancelResult is returned from a successful cancellation.
type CancelResult struct {
	OrderID     string
	OrderNumber string
	Refund      RefundInfo
}

// RefundResult describes the refund payment recorded against an order.
type RefundResult struct {
	PaymentID         string
	OrderID           string
	Amount            decimal.Decimal
	Method            string
	EstimatedDelivery string
	OrderStatus       Status
}

// Service is the order ledger: it owns order creation, status transitions,
// and their side effects on stock, carts, and coupon usage.
type Service struct {
	products product.Repository
	carts    cart.Repository
	coupons  coupon.Validator
	orders   Repository
	payments PaymentLedger
	now      func() time.Time
}

// NewService creates an order Service with the required dependencies.
func NewService(
	products product.Repository,
	carts cart.Repository,
	coupons coupon.Validator,
	orders Repository,
	payments PaymentLedger,
) *Service {
	return &Service{
		products: products,
		carts:    carts,
		coupons:  coupons,
		orders:   orders,
		payments: payments,
		now:      time.Now,
	}
}

// Checkout turns a cart into a persisted order: it validates every line,
// snapshots prices, computes the financial breakdown, and hands the whole
// unit (order + items + stock decrements + cart clear) to the repository as
// one transaction. Any stock shortfall aborts with no partial order.
func (s *Service) Checkout(ctx context.Context, userID string, req CheckoutRequest) (*Order, error) {
	items := req.Items
	if len(items) == 0 {
		lines, err := s.carts.List(ctx, userID)
		if err != nil {
			return nil, errors.Wrap(err, "list cart")
		}
		items = make([]CheckoutItem, len(lines))
		for i, l := range lines {
			items[i] = CheckoutItem{ProductID: l.ProductID, VariantID: l.VariantID, Quantity: l.Quantity}
		}
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(items))
	for i, it := range items {
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: it.ProductID}
		}
		ids[i] = it.ProductID
	}

	// Batch fetch all active products in a single query.
	fetched, err := s.products.GetActiveByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	orderItems := make([]Item, len(items))
	for i, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, &ProductUnavailableError{ProductID: it.ProductID}
		}
		// Fast-path stock check. The authoritative check is the guarded
		// decrement inside the creation transaction.
		if p.Stock < it.Quantity {
			return nil, &InsufficientStockError{ProductID: it.ProductID}
		}
		orderItems[i] = Item{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Price:     p.Price,
		}
	}

	pricing := Price(orderItems)

	o := &Order{
		ID:                uuid.New().String(),
		OrderNumber:       generateOrderNumber(s.now()),
		UserID:            userID,
		Status:            StatusPending,
		Subtotal:          pricing.Subtotal,
		Tax:               pricing.Tax,
		Shipping:          pricing.Shipping,
		Discount:          decimal.Zero,
		Total:             pricing.Total,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		Notes:             req.Notes,
		Items:             orderItems,
	}

	if err := s.orders.Create(ctx, o); err != nil {
		var ise *InsufficientStockError
		if errors.As(err, &ise) {
			return nil, ise
		}
		return nil, errors.Wrap(err, "create order")
	}

	return s.orders.GetByID(ctx, o.ID)
}

// Get returns a single order with its items, enforcing ownership.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	return s.getOwned(ctx, userID, orderID)
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ValidateCoupon evaluates a code against a purchase amount without touching
// usage counts.
func (s *Service) ValidateCoupon(ctx context.Context, code string, amount decimal.Decimal) (*coupon.Discount, error) {
	return s.coupons.Validate(ctx, code, amount)
}

// ApplyCoupon validates the code against the order's subtotal, recomputes the
// total, and records discount + usage increment in one transaction. The
// usage increment is not reversed if the order is later cancelled.
func (s *Service) ApplyCoupon(ctx context.Context, userID, orderID, code string) (*Order, *coupon.Discount, error) {
	o, err := s.getOwned(ctx, userID, orderID)
	if err != nil {
		return nil, nil, err
	}

	d, err := s.coupons.Validate(ctx, code, o.Subtotal)
	if err != nil {
		return nil, nil, err
	}

	shipping := o.Shipping
	if d.FreeShipping {
		shipping = decimal.Zero
	}

	total := o.Subtotal.Add(o.Tax).Add(shipping).Sub(d.Amount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	normalized := strings.ToUpper(code)
	if err := s.orders.ApplyCoupon(ctx, o.ID, normalized, d.Amount, shipping, total); err != nil {
		return nil, nil, err
	}

	o.CouponCode = normalized
	o.Discount = d.Amount
	o.Shipping = shipping
	o.Total = total
	return o, d, nil
}

// UpdateStatus is the admin-driven status update. Any known status may be
// set; shipped and delivered stamp their timestamps in the repository.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status, trackingNumber string) (*Order, error) {
	if !status.Valid() {
		return nil, errors.Errorf("unknown order status %q", status)
	}
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, orderID, status, trackingNumber); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	return s.orders.GetByID(ctx, orderID)
}

// Cancel cancels a pending or confirmed order, restores stock for every
// line unconditionally, and reports informational refund eligibility based
// on whether a completed payment exists.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (*CancelResult, error) {
	o, err := s.getOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.Cancellable() {
		return nil, ErrInvalidTransition
	}

	if err := s.orders.Cancel(ctx, o); err != nil {
		return nil, errors.Wrap(err, "cancel order")
	}

	info := RefundInfo{Amount: decimal.Zero}
	cp, err := s.payments.LatestCompleted(ctx, o.ID)
	if err != nil {
		return nil, errors.Wrap(err, "lookup completed payment")
	}
	if cp != nil {
		info = RefundInfo{Eligible: true, Amount: o.Total, Method: cp.Method}
	}

	return &CancelResult{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Refund:      info,
	}, nil
}

// Refund records a refund payment against a cancelled order. A full refund
// (amount >= total) flips the order to refunded; a partial refund leaves it
// cancelled, and several partial refunds may accumulate.
func (s *Service) Refund(ctx context.Context, orderID string, amount decimal.Decimal, method, notes string) (*RefundResult, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusCancelled {
		return nil, ErrNotCancelled
	}
	if amount.GreaterThan(o.Total) {
		return nil, ErrRefundExceedsTotal
	}

	// Refunds to the original payment method settle faster.
	estimated := "5-10 business days"
	cp, err := s.payments.LatestCompleted(ctx, o.ID)
	if err != nil {
		return nil, errors.Wrap(err, "lookup completed payment")
	}
	if cp != nil && cp.Method == method {
		estimated = "3-5 business days"
	}

	full := amount.GreaterThanOrEqual(o.Total)
	rec := RefundRecord{
		PaymentID:         uuid.New().String(),
		OrderID:           o.ID,
		Amount:            amount.Round(2),
		Method:            method,
		Notes:             notes,
		EstimatedDelivery: estimated,
		MarkRefunded:      full,
	}
	if err := s.orders.Refund(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "record refund")
	}

	status := StatusCancelled
	if full {
		status = StatusRefunded
	}
	return &RefundResult{
		PaymentID:         rec.PaymentID,
		OrderID:           o.ID,
		Amount:            rec.Amount,
		Method:            method,
		EstimatedDelivery: estimated,
		OrderStatus:       status,
	}, nil
}

func (s *Service) getOwned(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrForbidden
	}
	return o, nil
}

func generateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d", now.UnixNano())
}
