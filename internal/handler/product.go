package handler

import (
	"net/http"

	"github.com/nimbusmart/storefront/internal/domain/product"
)

type productResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	OldPrice float64 `json:"oldPrice,omitempty"`
	Stock    int     `json:"stock"`
}

func toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Price:    p.Price.InexactFloat64(),
		OldPrice: p.OldPrice.InexactFloat64(),
		Stock:    p.Stock,
	}
}

// ListProducts returns the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.products.List(r.Context())
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	resp := make([]productResponse, len(list))
	for i, p := range list {
		resp[i] = toProductResponse(p)
	}
	respond(w, http.StatusOK, resp)
}

// GetProduct returns a single catalog item.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toProductResponse(*p))
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

// AdjustStock applies an admin stock adjustment. The guarded update rejects
// changes that would drive stock negative.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Delta == 0 {
		respondError(w, http.StatusUnprocessableEntity, "ValidationError", "delta must be non-zero")
		return
	}

	id := r.PathValue("id")
	if err := h.products.AdjustStock(r.Context(), id, req.Delta); err != nil {
		respondMappedError(w, r, err)
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toProductResponse(*p))
}
