// Package handler exposes the REST surface: JSON envelope responses, API-key
// authentication, and the route-to-service glue.
package handler

import (
	"net/http"

	"github.com/nimbusmart/storefront/internal/domain/cart"
	"github.com/nimbusmart/storefront/internal/domain/order"
	"github.com/nimbusmart/storefront/internal/domain/payment"
	"github.com/nimbusmart/storefront/internal/domain/product"
)

// Handler carries the domain dependencies behind the REST routes.
type Handler struct {
	products product.Repository
	carts    cart.Repository
	orders   *order.Service
	payments *payment.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	carts cart.Repository,
	orders *order.Service,
	payments *payment.Service,
) *Handler {
	return &Handler{
		products: products,
		carts:    carts,
		orders:   orders,
		payments: payments,
	}
}

// Routes builds the /api route table. Every route except the mobile-money
// callback goes through API-key authentication; admin routes additionally
// require the admin scope.
func (h *Handler) Routes(sec *SecurityHandler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /products", sec.Authenticate(http.HandlerFunc(h.ListProducts)))
	mux.Handle("GET /products/{id}", sec.Authenticate(http.HandlerFunc(h.GetProduct)))
	mux.Handle("PUT /products/{id}/stock", sec.RequireScope(http.HandlerFunc(h.AdjustStock)))

	mux.Handle("GET /cart", sec.Authenticate(http.HandlerFunc(h.GetCart)))
	mux.Handle("POST /cart/items", sec.Authenticate(http.HandlerFunc(h.AddCartItem)))
	mux.Handle("DELETE /cart/items/{productID}", sec.Authenticate(http.HandlerFunc(h.RemoveCartItem)))

	mux.Handle("POST /orders", sec.Authenticate(http.HandlerFunc(h.PlaceOrder)))
	mux.Handle("GET /orders", sec.Authenticate(http.HandlerFunc(h.ListOrders)))
	mux.Handle("GET /orders/{id}", sec.Authenticate(http.HandlerFunc(h.GetOrder)))
	mux.Handle("PUT /orders/{id}/cancel", sec.Authenticate(http.HandlerFunc(h.CancelOrder)))
	mux.Handle("PUT /orders/{id}/status", sec.RequireScope(http.HandlerFunc(h.UpdateOrderStatus)))
	mux.Handle("POST /orders/{id}/refund", sec.RequireScope(http.HandlerFunc(h.RefundOrder)))

	mux.Handle("POST /coupons/validate", sec.Authenticate(http.HandlerFunc(h.ValidateCoupon)))
	mux.Handle("POST /coupons/apply", sec.Authenticate(http.HandlerFunc(h.ApplyCoupon)))

	mux.Handle("POST /payments/paypal/create", sec.Authenticate(http.HandlerFunc(h.PayPalCreate)))
	mux.Handle("POST /payments/paypal/execute", sec.Authenticate(http.HandlerFunc(h.PayPalExecute)))
	mux.Handle("POST /payments/mobile-money", sec.Authenticate(http.HandlerFunc(h.MobileMoneyRequest)))
	mux.Handle("POST /payments/create-intent", sec.Authenticate(http.HandlerFunc(h.CreateIntent)))
	mux.Handle("POST /payments/stripe", sec.Authenticate(http.HandlerFunc(h.CreateIntent)))
	mux.Handle("GET /orders/{id}/payments", sec.Authenticate(http.HandlerFunc(h.ListOrderPayments)))

	// Carrier callback authenticates with its own shared secret, not a
	// customer API key.
	mux.Handle("POST /payments/mobile-money/callback", sec.AuthenticateCallback(http.HandlerFunc(h.MobileMoneyCallback)))

	return mux
}
