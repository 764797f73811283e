package handler

import (
	"net/http"
	"time"

	"github.com/nimbusmart/storefront/internal/domain/payment"
)

type paymentResponse struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"orderId"`
	Amount        float64   `json:"amount"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	Gateway       string    `json:"gateway,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toPaymentResponse(p *payment.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Amount:        p.Amount.InexactFloat64(),
		Method:        string(p.Method),
		Status:        string(p.Status),
		Gateway:       p.Gateway,
		TransactionID: p.TransactionID,
		CreatedAt:     p.CreatedAt,
	}
}

type orderIDRequest struct {
	OrderID string `json:"orderId"`
}

// CreateIntent is the card charge entry point. The card gateway is disabled
// in this deployment, so the route always answers 503.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req orderIDRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusUnprocessableEntity, "ValidationError", "orderId is required")
		return
	}

	info := identityFrom(r.Context())
	err := h.payments.CreateCardIntent(r.Context(), info.UserID, req.OrderID)
	if err == nil {
		err = payment.ErrGatewayDisabled
	}
	respondMappedError(w, r, err)
}

type paypalCreateResponse struct {
	PaymentID   string `json:"paymentId"`
	ApprovalURL string `json:"approvalUrl"`
}

// PayPalCreate starts the redirect flow for one of the caller's orders.
func (h *Handler) PayPalCreate(w http.ResponseWriter, r *http.Request) {
	var req orderIDRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusUnprocessableEntity, "ValidationError", "orderId is required")
		return
	}

	info := identityFrom(r.Context())
	redirect, err := h.payments.PayPalCreate(r.Context(), info.UserID, req.OrderID)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusOK, paypalCreateResponse{
		PaymentID:   redirect.PaymentID,
		ApprovalURL: redirect.ApprovalURL,
	})
}

type paypalExecuteRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	PayerID   string `json:"payerId"`
}

// PayPalExecute finalizes an approved redirect payment.
func (h *Handler) PayPalExecute(w http.ResponseWriter, r *http.Request) {
	var req paypalExecuteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.PayerID == "" {
		respondError(w, http.StatusUnprocessableEntity, "ValidationError", "orderId, paymentId and payerId are required")
		return
	}

	info := identityFrom(r.Context())
	p, err := h.payments.PayPalExecute(r.Context(), info.UserID, req.OrderID, req.PaymentID, req.PayerID)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toPaymentResponse(p))
}

type mobileMoneyRequest struct {
	OrderID     string `json:"orderId"`
	PhoneNumber string `json:"phoneNumber"`
	Provider    string `json:"provider"`
}

// MobileMoneyRequest accepts a carrier charge request and answers 202 with
// the PENDING payment. Settlement arrives through the callback.
func (h *Handler) MobileMoneyRequest(w http.ResponseWriter, r *http.Request) {
	var req mobileMoneyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.PhoneNumber == "" || req.Provider == "" {
		respondError(w, http.StatusUnprocessableEntity, "ValidationError", "orderId, phoneNumber and provider are required")
		return
	}

	info := identityFrom(r.Context())
	p, err := h.payments.MobileMoneyRequest(r.Context(), info.UserID, req.OrderID, req.PhoneNumber, req.Provider)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusAccepted, toPaymentResponse(p))
}

type mobileMoneyCallbackRequest struct {
	PaymentID string `json:"paymentId"`
}

// MobileMoneyCallback is the carrier confirmation webhook. It settles the
// PENDING payment and confirms the order.
func (h *Handler) MobileMoneyCallback(w http.ResponseWriter, r *http.Request) {
	var req mobileMoneyCallbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PaymentID == "" {
		respondError(w, http.StatusUnprocessableEntity, "ValidationError", "paymentId is required")
		return
	}

	p, err := h.payments.MobileMoneyConfirm(r.Context(), req.PaymentID)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toPaymentResponse(p))
}

// ListOrderPayments returns the payment rows recorded against one of the
// caller's orders.
func (h *Handler) ListOrderPayments(w http.ResponseWriter, r *http.Request) {
	info := identityFrom(r.Context())
	list, err := h.payments.ListByOrder(r.Context(), info.UserID, r.PathValue("id"))
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	resp := make([]paymentResponse, len(list))
	for i := range list {
		resp[i] = toPaymentResponse(&list[i])
	}
	respond(w, http.StatusOK, resp)
}
