package handler

import (
	"net/http"
	"time"

	"github.com/nimbusmart/storefront/internal/domain/order"
)

type orderItemResponse struct {
	ProductID string  `json:"productId"`
	VariantID string  `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type orderResponse struct {
	ID             string              `json:"id"`
	OrderNumber    string              `json:"orderNumber"`
	Status         string              `json:"status"`
	Subtotal       float64             `json:"subtotal"`
	Tax            float64             `json:"tax"`
	Shipping       float64             `json:"shipping"`
	Discount       float64             `json:"discount"`
	Total          float64             `json:"total"`
	CouponCode     string              `json:"couponCode,omitempty"`
	Notes          string              `json:"notes,omitempty"`
	TrackingNumber string              `json:"trackingNumber,omitempty"`
	Items          []orderItemResponse `json:"items"`
	CreatedAt      time.Time           `json:"createdAt"`
	ShippedAt      *time.Time          `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time          `json:"deliveredAt,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Price:     it.Price.InexactFloat64(),
		}
	}
	return orderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		Status:         string(o.Status),
		Subtotal:       o.Subtotal.InexactFloat64(),
		Tax:            o.Tax.InexactFloat64(),
		Shipping:       o.Shipping.InexactFloat64(),
		Discount:       o.Discount.InexactFloat64(),
		Total:          o.Total.InexactFloat64(),
		CouponCode:     o.CouponCode,
		Notes:          o.Notes,
		TrackingNumber: o.TrackingNumber,
		Items:          items,
		CreatedAt:      o.CreatedAt,
		ShippedAt:      o.ShippedAt,
		DeliveredAt:    o.DeliveredAt,
	}
}

type placeOrderRequest struct {
	Items             []placeOrderItem `json:"items"`
	ShippingAddressID string           `json:"shippingAddressId"`
	BillingAddressID  string           `json:"billingAddressId"`
	Notes             string           `json:"notes"`
}

type placeOrderItem struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// PlaceOrder creates an order from the request body's items, falling back to
// the caller's server-side cart when the body carries none.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	items := make([]order.CheckoutItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.CheckoutItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		}
	}

	info := identityFrom(r.Context())
	o, err := h.orders.Checkout(r.Context(), info.UserID, order.CheckoutRequest{
		Items:             items,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		Notes:             req.Notes,
	})
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, toOrderResponse(o))
}

// ListOrders returns the caller's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	info := identityFrom(r.Context())
	list, err := h.orders.List(r.Context(), info.UserID)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	resp := make([]orderResponse, len(list))
	for i := range list {
		resp[i] = toOrderResponse(&list[i])
	}
	respond(w, http.StatusOK, resp)
}

// GetOrder returns one of the caller's orders with its items.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	info := identityFrom(r.Context())
	o, err := h.orders.Get(r.Context(), info.UserID, r.PathValue("id"))
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderResponse(o))
}

type cancelOrderResponse struct {
	OrderID     string             `json:"orderId"`
	OrderNumber string             `json:"orderNumber"`
	RefundInfo  refundInfoResponse `json:"refundInfo"`
}

type refundInfoResponse struct {
	Eligible bool    `json:"eligible"`
	Amount   float64 `json:"amount"`
	Method   string  `json:"method,omitempty"`
}

// CancelOrder cancels a pending or confirmed order, restoring stock and
// reporting refund eligibility.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	info := identityFrom(r.Context())
	res, err := h.orders.Cancel(r.Context(), info.UserID, r.PathValue("id"))
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusOK, cancelOrderResponse{
		OrderID:     res.OrderID,
		OrderNumber: res.OrderNumber,
		RefundInfo: refundInfoResponse{
			Eligible: res.Refund.Eligible,
			Amount:   res.Refund.Amount.InexactFloat64(),
			Method:   res.Refund.Method,
		},
	})
}

type updateStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber"`
}

// UpdateOrderStatus is the admin status update.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	status := order.Status(req.Status)
	if !status.Valid() {
		respondError(w, http.StatusUnprocessableEntity, "ValidationError", "unknown order status")
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), status, req.TrackingNumber)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderResponse(o))
}

type refundOrderRequest struct {
	RefundAmount float64 `json:"refundAmount"`
	RefundMethod string  `json:"refundMethod"`
	Notes        string  `json:"notes"`
}

type refundOrderResponse struct {
	PaymentID         string  `json:"paymentId"`
	OrderID           string  `json:"orderId"`
	Amount            float64 `json:"amount"`
	Method            string  `json:"method"`
	EstimatedDelivery string  `json:"estimatedDelivery"`
	OrderStatus       string  `json:"orderStatus"`
	Message           string  `json:"message"`
}

// RefundOrder records an admin refund against a cancelled order.
func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	var req refundOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RefundAmount <= 0 || req.RefundMethod == "" {
		respondError(w, http.StatusUnprocessableEntity, "ValidationError", "refundAmount and refundMethod are required")
		return
	}

	res, err := h.orders.Refund(r.Context(), r.PathValue("id"),
		decimalFromFloat(req.RefundAmount), req.RefundMethod, req.Notes)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusOK, refundOrderResponse{
		PaymentID:         res.PaymentID,
		OrderID:           res.OrderID,
		Amount:            res.Amount.InexactFloat64(),
		Method:            res.Method,
		EstimatedDelivery: res.EstimatedDelivery,
		OrderStatus:       string(res.OrderStatus),
		Message:           "refund initiated, estimated delivery " + res.EstimatedDelivery,
	})
}
