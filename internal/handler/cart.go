package handler

import (
	"net/http"

	"github.com/nimbusmart/storefront/internal/domain/cart"
)

type cartItemResponse struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

func toCartResponse(items []cart.Item) []cartItemResponse {
	resp := make([]cartItemResponse, len(items))
	for i, it := range items {
		resp[i] = cartItemResponse{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		}
	}
	return resp
}

// GetCart returns the caller's server-side cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	info := identityFrom(r.Context())
	items, err := h.carts.List(r.Context(), info.UserID)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toCartResponse(items))
}

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// AddCartItem inserts a cart line or bumps the quantity of an existing one.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductID == "" || req.Quantity < 1 {
		respondError(w, http.StatusUnprocessableEntity, "ValidationError", "productId and a positive quantity are required")
		return
	}

	info := identityFrom(r.Context())
	item := cart.Item{
		UserID:    info.UserID,
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	}
	if err := h.carts.Upsert(r.Context(), item); err != nil {
		respondMappedError(w, r, err)
		return
	}

	items, err := h.carts.List(r.Context(), info.UserID)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toCartResponse(items))
}

// RemoveCartItem deletes one cart line. The variant is selected with the
// optional ?variantId= query parameter.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	info := identityFrom(r.Context())
	productID := r.PathValue("productID")
	variantID := r.URL.Query().Get("variantId")

	if err := h.carts.Remove(r.Context(), info.UserID, productID, variantID); err != nil {
		respondMappedError(w, r, err)
		return
	}

	items, err := h.carts.List(r.Context(), info.UserID)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toCartResponse(items))
}
