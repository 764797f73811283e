//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/products", customerKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}
	env := decodeJSON[[]productResponse](t, resp)
	if !env.Success {
		t.Fatalf("list failed: %+v", env.Error)
	}
	if len(env.Data) < 3 {
		t.Errorf("got %d products, want at least the 3 seeded", len(env.Data))
	}
}

func TestGetProduct(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/products/it-coffee", customerKey, nil)
	env := decodeJSON[productResponse](t, resp)
	if env.Data.Name != "Coffee Beans 1kg" {
		t.Errorf("name = %q", env.Data.Name)
	}
	if !approxEqual(env.Data.Price, 20.00) {
		t.Errorf("price = %.2f, want 20.00", env.Data.Price)
	}
}

func TestGetProductNotFound(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/products/no-such-product", customerKey, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("got status %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAuthRequired(t *testing.T) {
	resp := doRequest(t, http.MethodGet, "/api/products", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing key: got status %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doRequest(t, http.MethodGet, "/api/products", "not-a-key", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad key: got status %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdjustStockAdminOnly(t *testing.T) {
	resp := doRequest(t, http.MethodPut, "/api/products/it-grinder/stock", customerKey, map[string]int{"delta": 5})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("customer adjust: got status %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()

	before := getStock(t, "it-grinder")
	resp = doRequest(t, http.MethodPut, "/api/products/it-grinder/stock", adminKey, map[string]int{"delta": 5})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin adjust: got status %d", resp.StatusCode)
	}
	env := decodeJSON[productResponse](t, resp)
	if env.Data.Stock != before+5 {
		t.Errorf("stock = %d, want %d", env.Data.Stock, before+5)
	}
}

func TestAdjustStockBelowZero(t *testing.T) {
	before := getStock(t, "it-grinder")

	resp := doRequest(t, http.MethodPut, "/api/products/it-grinder/stock", adminKey,
		map[string]int{"delta": -(before + 100)})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", resp.StatusCode)
	}
	env := decodeJSON[struct{}](t, resp)
	if env.Error == nil || env.Error.Code != "InsufficientStock" {
		t.Fatalf("error = %+v, want InsufficientStock", env.Error)
	}

	if got := getStock(t, "it-grinder"); got != before {
		t.Errorf("stock = %d, want %d unchanged", got, before)
	}
}
