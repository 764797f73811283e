package payment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusmart/storefront/internal/domain/order"
)

// --- Mock implementations ---

type mockOrderStore struct {
	byID map[string]*order.Order
}

func (m *mockOrderStore) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

type mockPaymentRepo struct {
	rows      []*Payment
	confirmed map[string]bool
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{confirmed: make(map[string]bool)}
}

func (m *mockPaymentRepo) Create(_ context.Context, p *Payment) error {
	cp := *p
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *mockPaymentRepo) GetByID(_ context.Context, id string) (*Payment, error) {
	for _, p := range m.rows {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockPaymentRepo) ListByOrder(_ context.Context, orderID string) ([]Payment, error) {
	var out []Payment
	for _, p := range m.rows {
		if p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) FindOpenByOrder(_ context.Context, orderID string, method Method) (*Payment, error) {
	for i := len(m.rows) - 1; i >= 0; i-- {
		p := m.rows[i]
		if p.OrderID == orderID && p.Method == method &&
			(p.Status == StatusPending || p.Status == StatusCompleted) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockPaymentRepo) CreateCompleted(_ context.Context, p *Payment) error {
	cp := *p
	m.rows = append(m.rows, &cp)
	m.confirmed[p.OrderID] = true
	return nil
}

func (m *mockPaymentRepo) CompletePending(_ context.Context, paymentID, transactionID string) (*Payment, error) {
	for _, p := range m.rows {
		if p.ID == paymentID {
			if p.Status != StatusPending {
				return nil, ErrNotPending
			}
			p.Status = StatusCompleted
			p.TransactionID = transactionID
			m.confirmed[p.OrderID] = true
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotPending
}

func (m *mockPaymentRepo) FailPendingOlderThan(_ context.Context, method Method, cutoff time.Time) (int64, error) {
	var n int64
	for _, p := range m.rows {
		if p.Method == method && p.Status == StatusPending && p.CreatedAt.Before(cutoff) {
			p.Status = StatusFailed
			n++
		}
	}
	return n, nil
}

type mockPayPal struct {
	created  *PayPalCreated
	executed *PayPalExecuted
	err      error
}

func (m *mockPayPal) CreatePayment(_ context.Context, _ PayPalCreateRequest) (*PayPalCreated, error) {
	return m.created, m.err
}

func (m *mockPayPal) ExecutePayment(_ context.Context, _, _ string) (*PayPalExecuted, error) {
	return m.executed, m.err
}

// --- Helpers ---

func pendingOrder(id, userID string) *order.Order {
	return &order.Order{
		ID:       id,
		UserID:   userID,
		Status:   order.StatusPending,
		Subtotal: decimal.RequireFromString("40.00"),
		Tax:      decimal.RequireFromString("4.00"),
		Shipping: decimal.RequireFromString("10.00"),
		Total:    decimal.RequireFromString("54.00"),
		Items: []order.Item{
			{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("20.00")},
		},
	}
}

type fixture struct {
	orders   *mockOrderStore
	payments *mockPaymentRepo
	paypal   *mockPayPal
	svc      *Service
}

func newFixture(orders ...*order.Order) *fixture {
	byID := make(map[string]*order.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	f := &fixture{
		orders:   &mockOrderStore{byID: byID},
		payments: newMockPaymentRepo(),
		paypal:   &mockPayPal{},
	}
	f.svc = NewService(f.orders, f.payments, f.paypal, "USD")
	return f
}

// --- Tests ---

func TestCreateCardIntent_AlwaysDisabled(t *testing.T) {
	f := newFixture(pendingOrder("o1", "u1"))

	err := f.svc.CreateCardIntent(context.Background(), "u1", "o1")
	require.ErrorIs(t, err, ErrGatewayDisabled)
	assert.Empty(t, f.payments.rows)
}

func TestCreateCardIntent_OwnershipChecked(t *testing.T) {
	f := newFixture(pendingOrder("o1", "u1"))

	err := f.svc.CreateCardIntent(context.Background(), "u2", "o1")
	require.ErrorIs(t, err, order.ErrForbidden)
}

func TestPayPalCreate_ReturnsApprovalURL(t *testing.T) {
	f := newFixture(pendingOrder("o1", "u1"))
	f.paypal.created = &PayPalCreated{
		PaymentID:   "PAY-123",
		ApprovalURL: "https://paypal.test/approve/PAY-123",
	}

	redirect, err := f.svc.PayPalCreate(context.Background(), "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, "PAY-123", redirect.PaymentID)
	assert.Equal(t, "https://paypal.test/approve/PAY-123", redirect.ApprovalURL)
}

func TestPayPalCreate_AlreadyPaidOrder(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.Status = order.StatusConfirmed
	f := newFixture(o)

	_, err := f.svc.PayPalCreate(context.Background(), "u1", "o1")
	require.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestPayPalExecute_ApprovedRecordsOnePayment(t *testing.T) {
	f := newFixture(pendingOrder("o1", "u1"))
	f.paypal.executed = &PayPalExecuted{
		PaymentID: "PAY-123",
		PayerID:   "PAYER-1",
		State:     "approved",
		Raw:       []byte(`{"state":"approved"}`),
	}

	p, err := f.svc.PayPalExecute(context.Background(), "u1", "o1", "PAY-123", "PAYER-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, MethodPayPal, p.Method)
	assert.Equal(t, "PAY-123", p.TransactionID)
	assert.True(t, decimal.RequireFromString("54.00").Equal(p.Amount))
	assert.Len(t, f.payments.rows, 1)
	assert.True(t, f.payments.confirmed["o1"])
}

func TestPayPalExecute_NotApprovedWritesNothing(t *testing.T) {
	f := newFixture(pendingOrder("o1", "u1"))
	f.paypal.executed = &PayPalExecuted{
		PaymentID: "PAY-123",
		State:     "failed",
	}

	_, err := f.svc.PayPalExecute(context.Background(), "u1", "o1", "PAY-123", "PAYER-1")
	require.ErrorIs(t, err, ErrNotApproved)
	assert.Empty(t, f.payments.rows)
	assert.False(t, f.payments.confirmed["o1"])
}

func TestMobileMoneyRequest_CreatesPending(t *testing.T) {
	f := newFixture(pendingOrder("o1", "u1"))

	p, err := f.svc.MobileMoneyRequest(context.Background(), "u1", "o1", "+256700000001", "mtn")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, MethodMobileMoney, p.Method)
	assert.Equal(t, "mtn", p.Gateway)
	assert.Len(t, f.payments.rows, 1)
}

func TestMobileMoneyRequest_Idempotent(t *testing.T) {
	f := newFixture(pendingOrder("o1", "u1"))

	first, err := f.svc.MobileMoneyRequest(context.Background(), "u1", "o1", "+256700000001", "mtn")
	require.NoError(t, err)
	second, err := f.svc.MobileMoneyRequest(context.Background(), "u1", "o1", "+256700000001", "mtn")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.payments.rows, 1)
}

func TestMobileMoneyConfirm_SettlesPayment(t *testing.T) {
	f := newFixture(pendingOrder("o1", "u1"))
	p, err := f.svc.MobileMoneyRequest(context.Background(), "u1", "o1", "+256700000001", "mtn")
	require.NoError(t, err)

	settled, err := f.svc.MobileMoneyConfirm(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, settled.Status)
	assert.NotEmpty(t, settled.TransactionID)
	assert.True(t, f.payments.confirmed["o1"])
}

func TestMobileMoneyConfirm_AlreadySettled(t *testing.T) {
	f := newFixture(pendingOrder("o1", "u1"))
	p, err := f.svc.MobileMoneyRequest(context.Background(), "u1", "o1", "+256700000001", "mtn")
	require.NoError(t, err)
	_, err = f.svc.MobileMoneyConfirm(context.Background(), p.ID)
	require.NoError(t, err)

	_, err = f.svc.MobileMoneyConfirm(context.Background(), p.ID)
	require.ErrorIs(t, err, ErrNotPending)
}

func TestExpirePending_SweepsStaleMobileMoney(t *testing.T) {
	f := newFixture(pendingOrder("o1", "u1"))
	p, err := f.svc.MobileMoneyRequest(context.Background(), "u1", "o1", "+256700000001", "mtn")
	require.NoError(t, err)

	// Age the row past the timeout.
	for _, row := range f.payments.rows {
		if row.ID == p.ID {
			row.CreatedAt = time.Now().Add(-time.Hour)
		}
	}

	n, err := f.svc.ExpirePending(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := f.payments.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
}

func TestListByOrder_OwnershipChecked(t *testing.T) {
	f := newFixture(pendingOrder("o1", "u1"))

	_, err := f.svc.ListByOrder(context.Background(), "u2", "o1")
	require.ErrorIs(t, err, order.ErrForbidden)
}
