package payment

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// PayPalItem is one order line forwarded to the gateway.
type PayPalItem struct {
	SKU      string
	Price    decimal.Decimal
	Quantity int
}

// PayPalCreateRequest carries the order snapshot for building a redirect
// payment at the gateway.
type PayPalCreateRequest struct {
	OrderNumber string
	Items       []PayPalItem
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	Shipping    decimal.Decimal
	Total       decimal.Decimal
	Currency    string
}

// PayPalCreated is the gateway's answer to a create call.
type PayPalCreated struct {
	PaymentID   string
	ApprovalURL string
	Raw         json.RawMessage
}

// PayPalExecuted is the gateway's answer to an execute call. State is the
// gateway's literal payment state ("approved" on success).
type PayPalExecuted struct {
	PaymentID string
	PayerID   string
	State     string
	Raw       json.RawMessage
}

// PayPalClient is the outbound contract for the PayPal redirect flow.
type PayPalClient interface {
	CreatePayment(ctx context.Context, req PayPalCreateRequest) (*PayPalCreated, error)
	ExecutePayment(ctx context.Context, paymentID, payerID string) (*PayPalExecuted, error)
}
