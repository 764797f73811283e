package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusmart/storefront/internal/domain/cart"
	"github.com/nimbusmart/storefront/internal/domain/coupon"
	"github.com/nimbusmart/storefront/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID map[string]*product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetActiveByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok && p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) AdjustStock(_ context.Context, id string, delta int) error {
	p, ok := m.byID[id]
	if !ok || p.Stock+delta < 0 {
		return product.ErrNotFound
	}
	p.Stock += delta
	return nil
}

type mockCartRepo struct {
	items []cart.Item
}

func (m *mockCartRepo) List(_ context.Context, _ string) ([]cart.Item, error) {
	return m.items, nil
}
func (m *mockCartRepo) Upsert(_ context.Context, _ cart.Item) error          { return nil }
func (m *mockCartRepo) Remove(_ context.Context, _, _, _ string) error       { return nil }
func (m *mockCartRepo) Clear(_ context.Context, _ string) error              { m.items = nil; return nil }

type mockCouponValidator struct {
	discount *coupon.Discount
	err      error
}

func (m *mockCouponValidator) Validate(_ context.Context, _ string, _ decimal.Decimal) (*coupon.Discount, error) {
	return m.discount, m.err
}

// mockOrderRepo stores orders in memory and mimics the transactional side
// effects (stock movement, usage counts) well enough for service tests.
type mockOrderRepo struct {
	products   *mockProductRepo
	byID       map[string]*Order
	createErr  error
	lastRefund *RefundRecord
	usedCounts map[string]int
}

func newMockOrderRepo(products *mockProductRepo) *mockOrderRepo {
	return &mockOrderRepo{
		products:   products,
		byID:       make(map[string]*Order),
		usedCounts: make(map[string]int),
	}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, it := range o.Items {
		p, ok := m.products.byID[it.ProductID]
		if !ok || p.Stock < it.Quantity {
			return &InsufficientStockError{ProductID: it.ProductID}
		}
	}
	for _, it := range o.Items {
		m.products.byID[it.ProductID].Stock -= it.Quantity
	}
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	var out []Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status Status, trackingNumber string) error {
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	if trackingNumber != "" {
		o.TrackingNumber = trackingNumber
	}
	return nil
}

func (m *mockOrderRepo) Cancel(_ context.Context, o *Order) error {
	stored, ok := m.byID[o.ID]
	if !ok {
		return ErrNotFound
	}
	if !stored.Status.Cancellable() {
		return ErrInvalidTransition
	}
	stored.Status = StatusCancelled
	for _, it := range stored.Items {
		m.products.byID[it.ProductID].Stock += it.Quantity
	}
	return nil
}

func (m *mockOrderRepo) ApplyCoupon(_ context.Context, orderID, code string, discount, shipping, total decimal.Decimal) error {
	o, ok := m.byID[orderID]
	if !ok {
		return ErrNotFound
	}
	m.usedCounts[code]++
	o.CouponCode = code
	o.Discount = discount
	o.Shipping = shipping
	o.Total = total
	return nil
}

func (m *mockOrderRepo) Refund(_ context.Context, rec RefundRecord) error {
	o, ok := m.byID[rec.OrderID]
	if !ok {
		return ErrNotFound
	}
	m.lastRefund = &rec
	if rec.MarkRefunded {
		o.Status = StatusRefunded
	}
	return nil
}

type mockLedger struct {
	completed *CompletedPayment
}

func (m *mockLedger) LatestCompleted(_ context.Context, _ string) (*CompletedPayment, error) {
	return m.completed, nil
}

// --- Helpers ---

func newTestProduct(id string, price string, stock int) *product.Product {
	return &product.Product{
		ID:       id,
		Name:     id,
		Category: "test",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Active:   true,
	}
}

type fixture struct {
	products *mockProductRepo
	carts    *mockCartRepo
	coupons  *mockCouponValidator
	orders   *mockOrderRepo
	ledger   *mockLedger
	svc      *Service
}

func newFixture(products ...*product.Product) *fixture {
	byID := make(map[string]*product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	repo := &mockProductRepo{byID: byID}
	f := &fixture{
		products: repo,
		carts:    &mockCartRepo{},
		coupons:  &mockCouponValidator{},
		orders:   newMockOrderRepo(repo),
		ledger:   &mockLedger{},
	}
	f.svc = NewService(f.products, f.carts, f.coupons, f.orders, f.ledger)
	return f
}

func checkout(t *testing.T, f *fixture, items ...CheckoutItem) *Order {
	t.Helper()
	o, err := f.svc.Checkout(context.Background(), "u1", CheckoutRequest{Items: items})
	require.NoError(t, err)
	return o
}

// --- Tests ---

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Checkout(context.Background(), "u1", CheckoutRequest{})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_FallsBackToServerCart(t *testing.T) {
	f := newFixture(newTestProduct("p1", "20.00", 10))
	f.carts.items = []cart.Item{{UserID: "u1", ProductID: "p1", Quantity: 2}}

	o, err := f.svc.Checkout(context.Background(), "u1", CheckoutRequest{})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("40.00").Equal(o.Subtotal))
	assert.Len(t, o.Items, 1)
}

func TestCheckout_InvalidQuantity(t *testing.T) {
	f := newFixture(newTestProduct("p1", "10.00", 10))

	_, err := f.svc.Checkout(context.Background(), "u1", CheckoutRequest{
		Items: []CheckoutItem{{ProductID: "p1", Quantity: 0}},
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
}

func TestCheckout_ProductUnavailable(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Checkout(context.Background(), "u1", CheckoutRequest{
		Items: []CheckoutItem{{ProductID: "missing", Quantity: 1}},
	})

	var puErr *ProductUnavailableError
	require.ErrorAs(t, err, &puErr)
	assert.Equal(t, "missing", puErr.ProductID)
}

func TestCheckout_Pricing(t *testing.T) {
	f := newFixture(
		newTestProduct("p1", "10.00", 100),
		newTestProduct("p2", "20.00", 100),
	)

	o := checkout(t, f,
		CheckoutItem{ProductID: "p1", Quantity: 2},
		CheckoutItem{ProductID: "p2", Quantity: 1},
	)

	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, decimal.RequireFromString("40.00").Equal(o.Subtotal))
	assert.True(t, decimal.RequireFromString("4.00").Equal(o.Tax))
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.Shipping))
	assert.True(t, decimal.RequireFromString("54.00").Equal(o.Total))
	assert.NotEmpty(t, o.OrderNumber)
}

func TestCheckout_InsufficientStockAllOrNothing(t *testing.T) {
	f := newFixture(
		newTestProduct("p1", "10.00", 100),
		newTestProduct("p2", "20.00", 1),
	)

	_, err := f.svc.Checkout(context.Background(), "u1", CheckoutRequest{
		Items: []CheckoutItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 5},
		},
	})

	var isErr *InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, "p2", isErr.ProductID)
	// No stock moved for any line.
	assert.Equal(t, 100, f.products.byID["p1"].Stock)
	assert.Equal(t, 1, f.products.byID["p2"].Stock)
}

func TestCheckout_DecrementsStock(t *testing.T) {
	f := newFixture(newTestProduct("p1", "10.00", 5))

	checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 3})

	assert.Equal(t, 2, f.products.byID["p1"].Stock)
}

func TestCancel_RestoresStock(t *testing.T) {
	f := newFixture(newTestProduct("p1", "10.00", 5))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 3})
	require.Equal(t, 2, f.products.byID["p1"].Stock)

	res, err := f.svc.Cancel(context.Background(), "u1", o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, res.OrderID)
	assert.Equal(t, 5, f.products.byID["p1"].Stock)
	assert.False(t, res.Refund.Eligible)
}

func TestCancel_RefundEligibleWhenPaid(t *testing.T) {
	f := newFixture(newTestProduct("p1", "10.00", 5))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 1})
	f.ledger.completed = &CompletedPayment{Method: "paypal", TransactionID: "PAY-1", Amount: o.Total}

	res, err := f.svc.Cancel(context.Background(), "u1", o.ID)
	require.NoError(t, err)
	assert.True(t, res.Refund.Eligible)
	assert.Equal(t, "paypal", res.Refund.Method)
	assert.True(t, o.Total.Equal(res.Refund.Amount))
}

func TestCancel_ShippedFails(t *testing.T) {
	f := newFixture(newTestProduct("p1", "10.00", 5))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 1})
	require.NoError(t, f.orders.UpdateStatus(context.Background(), o.ID, StatusShipped, ""))

	_, err := f.svc.Cancel(context.Background(), "u1", o.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 4, f.products.byID["p1"].Stock)
}

func TestCancel_OtherUsersOrderMasked(t *testing.T) {
	f := newFixture(newTestProduct("p1", "10.00", 5))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 1})

	_, err := f.svc.Cancel(context.Background(), "u2", o.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestApplyCoupon_RecomputesTotal(t *testing.T) {
	f := newFixture(newTestProduct("p1", "30.00", 10))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 2})
	// subtotal 60, tax 6, shipping 10, total 76
	f.coupons.discount = &coupon.Discount{Amount: decimal.RequireFromString("6.00")}

	updated, _, err := f.svc.ApplyCoupon(context.Background(), "u1", o.ID, "welcome10")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", updated.CouponCode)
	assert.True(t, decimal.RequireFromString("6.00").Equal(updated.Discount))
	assert.True(t, decimal.RequireFromString("70.00").Equal(updated.Total))
	assert.Equal(t, 1, f.orders.usedCounts["WELCOME10"])
}

func TestApplyCoupon_FreeShippingZeroesShipping(t *testing.T) {
	f := newFixture(newTestProduct("p1", "30.00", 10))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 2})
	f.coupons.discount = &coupon.Discount{FreeShipping: true, Amount: decimal.Zero}

	updated, _, err := f.svc.ApplyCoupon(context.Background(), "u1", o.ID, "FREESHIP")
	require.NoError(t, err)
	assert.True(t, updated.Shipping.IsZero())
	assert.True(t, decimal.RequireFromString("66.00").Equal(updated.Total))
}

func TestApplyCoupon_TotalFlooredAtZero(t *testing.T) {
	f := newFixture(newTestProduct("p1", "10.00", 10))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 1})
	f.coupons.discount = &coupon.Discount{Amount: decimal.RequireFromString("999.00")}

	updated, _, err := f.svc.ApplyCoupon(context.Background(), "u1", o.ID, "HUGE")
	require.NoError(t, err)
	assert.True(t, updated.Total.IsZero())
}

func TestApplyCoupon_ValidationErrorPropagates(t *testing.T) {
	f := newFixture(newTestProduct("p1", "10.00", 10))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 1})
	f.coupons.err = coupon.ErrInvalidCoupon

	_, _, err := f.svc.ApplyCoupon(context.Background(), "u1", o.ID, "BOGUS")
	require.ErrorIs(t, err, coupon.ErrInvalidCoupon)
	assert.Empty(t, f.orders.usedCounts)
}

func TestUsedCountNotReversedOnCancel(t *testing.T) {
	f := newFixture(newTestProduct("p1", "30.00", 10))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 2})
	f.coupons.discount = &coupon.Discount{Amount: decimal.NewFromInt(5)}

	_, _, err := f.svc.ApplyCoupon(context.Background(), "u1", o.ID, "WELCOME10")
	require.NoError(t, err)
	require.Equal(t, 1, f.orders.usedCounts["WELCOME10"])

	_, err = f.svc.Cancel(context.Background(), "u1", o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.orders.usedCounts["WELCOME10"])
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	f := newFixture(newTestProduct("p1", "10.00", 10))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 1})

	_, err := f.svc.UpdateStatus(context.Background(), o.ID, Status("teleported"), "")
	require.Error(t, err)
}

func TestUpdateStatus_SetsTracking(t *testing.T) {
	f := newFixture(newTestProduct("p1", "10.00", 10))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 1})

	updated, err := f.svc.UpdateStatus(context.Background(), o.ID, StatusShipped, "TRACK-42")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, updated.Status)
	assert.Equal(t, "TRACK-42", updated.TrackingNumber)
}

func TestRefund_RequiresCancelled(t *testing.T) {
	f := newFixture(newTestProduct("p1", "10.00", 10))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 1})

	_, err := f.svc.Refund(context.Background(), o.ID, decimal.NewFromInt(5), "paypal", "")
	require.ErrorIs(t, err, ErrNotCancelled)
}

func TestRefund_ExceedsTotal(t *testing.T) {
	f := newFixture(newTestProduct("p1", "10.00", 10))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 1})
	_, err := f.svc.Cancel(context.Background(), "u1", o.ID)
	require.NoError(t, err)

	_, err = f.svc.Refund(context.Background(), o.ID, decimal.NewFromInt(1000), "paypal", "")
	require.ErrorIs(t, err, ErrRefundExceedsTotal)
}

func TestRefund_FullFlipsStatus(t *testing.T) {
	f := newFixture(newTestProduct("p1", "10.00", 10))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 1})
	_, err := f.svc.Cancel(context.Background(), "u1", o.ID)
	require.NoError(t, err)
	f.ledger.completed = &CompletedPayment{Method: "paypal", Amount: o.Total}

	res, err := f.svc.Refund(context.Background(), o.ID, o.Total, "paypal", "customer request")
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, res.OrderStatus)
	assert.Equal(t, "3-5 business days", res.EstimatedDelivery)
	require.NotNil(t, f.orders.lastRefund)
	assert.True(t, f.orders.lastRefund.MarkRefunded)

	stored, err := f.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, stored.Status)
}

func TestRefund_PartialLeavesCancelled(t *testing.T) {
	f := newFixture(newTestProduct("p1", "10.00", 10))
	o := checkout(t, f, CheckoutItem{ProductID: "p1", Quantity: 1})
	_, err := f.svc.Cancel(context.Background(), "u1", o.ID)
	require.NoError(t, err)

	res, err := f.svc.Refund(context.Background(), o.ID, decimal.NewFromInt(5), "card", "")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, res.OrderStatus)
	assert.Equal(t, "5-10 business days", res.EstimatedDelivery)
	require.NotNil(t, f.orders.lastRefund)
	assert.False(t, f.orders.lastRefund.MarkRefunded)

	stored, err := f.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
}
