package handler

import (
	"net/http"

	"github.com/nimbusmart/storefront/internal/domain/coupon"
)

type validateCouponRequest struct {
	Code   string  `json:"code"`
	Amount float64 `json:"amount"`
}

type discountResponse struct {
	Amount       float64 `json:"amount"`
	FreeShipping bool    `json:"freeShipping"`
	Description  string  `json:"description,omitempty"`
}

func toDiscountResponse(d *coupon.Discount) discountResponse {
	return discountResponse{
		Amount:       d.Amount.InexactFloat64(),
		FreeShipping: d.FreeShipping,
		Description:  d.Description,
	}
}

// ValidateCoupon evaluates a code against a purchase amount without touching
// usage counts.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" || req.Amount <= 0 {
		respondError(w, http.StatusUnprocessableEntity, "ValidationError", "code and a positive amount are required")
		return
	}

	d, err := h.orders.ValidateCoupon(r.Context(), req.Code, decimalFromFloat(req.Amount))
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toDiscountResponse(d))
}

type applyCouponRequest struct {
	OrderID    string `json:"orderId"`
	CouponCode string `json:"couponCode"`
}

type applyCouponResponse struct {
	Order    orderResponse    `json:"order"`
	Coupon   string           `json:"coupon"`
	Discount discountResponse `json:"discount"`
}

// ApplyCoupon attaches a coupon to one of the caller's orders, recomputing
// the total and consuming one use.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.CouponCode == "" {
		respondError(w, http.StatusUnprocessableEntity, "ValidationError", "orderId and couponCode are required")
		return
	}

	info := identityFrom(r.Context())
	o, d, err := h.orders.ApplyCoupon(r.Context(), info.UserID, req.OrderID, req.CouponCode)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusOK, applyCouponResponse{
		Order:    toOrderResponse(o),
		Coupon:   o.CouponCode,
		Discount: toDiscountResponse(d),
	})
}
