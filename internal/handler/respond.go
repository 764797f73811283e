package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nimbusmart/storefront/internal/domain/coupon"
	"github.com/nimbusmart/storefront/internal/domain/order"
	"github.com/nimbusmart/storefront/internal/domain/payment"
	"github.com/nimbusmart/storefront/internal/domain/product"
)

// envelope is the uniform response shape for every route.
type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *errorMsg `json:"error,omitempty"`
}

type errorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &errorMsg{Code: code, Message: message},
	})
}

// respondMappedError converts a domain error to its HTTP status and error
// code. Ownership failures are masked as not-found so order ids cannot be
// probed across accounts.
func respondMappedError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		iqErr  *order.InvalidQuantityError
		puErr  *order.ProductUnavailableError
		isErr  *order.InsufficientStockError
		minErr *coupon.MinAmountError
	)

	switch {
	case errors.Is(err, order.ErrForbidden):
		respondError(w, http.StatusNotFound, "NotFound", order.ErrNotFound.Error())
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrCouponExpired):
		respondError(w, http.StatusNotFound, "NotFound", err.Error())
	case errors.Is(err, order.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "EmptyCart", err.Error())
	case errors.As(err, &isErr):
		respondError(w, http.StatusBadRequest, "InsufficientStock", isErr.Error())
	case errors.Is(err, product.ErrInsufficientStock):
		respondError(w, http.StatusBadRequest, "InsufficientStock", err.Error())
	case errors.As(err, &iqErr):
		respondError(w, http.StatusUnprocessableEntity, "ValidationError", iqErr.Error())
	case errors.As(err, &puErr):
		respondError(w, http.StatusUnprocessableEntity, "ValidationError", puErr.Error())
	case errors.As(err, &minErr):
		respondError(w, http.StatusBadRequest, "MinAmountNotMet", minErr.Error())
	case errors.Is(err, coupon.ErrUsageLimitReached):
		respondError(w, http.StatusBadRequest, "UsageLimitReached", err.Error())
	case errors.Is(err, order.ErrInvalidTransition):
		respondError(w, http.StatusBadRequest, "InvalidTransition", err.Error())
	case errors.Is(err, order.ErrNotCancelled):
		respondError(w, http.StatusBadRequest, "OrderNotCancelled", err.Error())
	case errors.Is(err, order.ErrRefundExceedsTotal):
		respondError(w, http.StatusBadRequest, "RefundExceedsTotal", err.Error())
	case errors.Is(err, payment.ErrAlreadyPaid),
		errors.Is(err, payment.ErrNotPending),
		errors.Is(err, payment.ErrNotApproved):
		respondError(w, http.StatusBadRequest, "PaymentConflict", err.Error())
	case errors.Is(err, payment.ErrGatewayDisabled):
		respondError(w, http.StatusServiceUnavailable, "GatewayDisabled", err.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal", "internal server error")
	}
}

// decimalFromFloat converts a JSON number to money rounded to cents.
func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// decodeBody parses the JSON request body into dst; a false return means a
// 422 was already written.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "ValidationError", "malformed request body")
		return false
	}
	return true
}
