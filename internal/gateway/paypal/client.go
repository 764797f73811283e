// Package paypal implements the outbound REST client for the PayPal
// redirect payment flow (v1 payments API).
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/nimbusmart/storefront/internal/domain/payment"
)

// Config carries the gateway credentials and redirect endpoints.
type Config struct {
	BaseURL   string
	ClientID  string
	Secret    string
	ReturnURL string
	CancelURL string
}

var _ payment.PayPalClient = (*Client)(nil)

// Client talks to the PayPal REST API. OAuth tokens are cached until shortly
// before expiry and refreshed on demand.
type Client struct {
	cfg  Config
	http *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient returns a Client for the given gateway configuration.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "build token request")
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "request token")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", errors.Errorf("token request failed: %s: %s", resp.Status, body)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", errors.Wrap(err, "decode token response")
	}

	c.accessToken = tok.AccessToken
	// Refresh a minute early so in-flight calls never race expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

type wireAmount struct {
	Total    string             `json:"total"`
	Currency string             `json:"currency"`
	Details  *wireAmountDetails `json:"details,omitempty"`
}

type wireAmountDetails struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Shipping string `json:"shipping"`
}

type wireItem struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Quantity int    `json:"quantity"`
}

type wirePaymentResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Payer struct {
		PayerInfo struct {
			PayerID string `json:"payer_id"`
		} `json:"payer_info"`
	} `json:"payer"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// CreatePayment builds a redirect payment at the gateway and returns its id
// with the buyer approval URL.
func (c *Client) CreatePayment(ctx context.Context, req payment.PayPalCreateRequest) (*payment.PayPalCreated, error) {
	items := make([]wireItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, wireItem{
			SKU:      it.SKU,
			Name:     it.SKU,
			Price:    it.Price.StringFixed(2),
			Currency: req.Currency,
			Quantity: it.Quantity,
		})
	}

	body := map[string]any{
		"intent": "sale",
		"payer":  map[string]string{"payment_method": "paypal"},
		"transactions": []map[string]any{{
			"amount": wireAmount{
				Total:    req.Total.StringFixed(2),
				Currency: req.Currency,
				Details: &wireAmountDetails{
					Subtotal: req.Subtotal.StringFixed(2),
					Tax:      req.Tax.StringFixed(2),
					Shipping: req.Shipping.StringFixed(2),
				},
			},
			"description": "Order " + req.OrderNumber,
			"item_list":   map[string]any{"items": items},
		}},
		"redirect_urls": map[string]string{
			"return_url": c.cfg.ReturnURL,
			"cancel_url": c.cfg.CancelURL,
		},
	}

	raw, err := c.post(ctx, "/v1/payments/payment", body)
	if err != nil {
		return nil, err
	}

	var wp wirePaymentResponse
	if err := json.Unmarshal(raw, &wp); err != nil {
		return nil, errors.Wrap(err, "decode create response")
	}

	created := &payment.PayPalCreated{PaymentID: wp.ID, Raw: raw}
	for _, l := range wp.Links {
		if l.Rel == "approval_url" {
			created.ApprovalURL = l.Href
			break
		}
	}
	if created.ApprovalURL == "" {
		return nil, errors.New("create response carries no approval_url")
	}
	return created, nil
}

// ExecutePayment executes an approved redirect payment and returns the
// gateway's final state.
func (c *Client) ExecutePayment(ctx context.Context, paymentID, payerID string) (*payment.PayPalExecuted, error) {
	raw, err := c.post(ctx, "/v1/payments/payment/"+url.PathEscape(paymentID)+"/execute",
		map[string]string{"payer_id": payerID})
	if err != nil {
		return nil, err
	}

	var wp wirePaymentResponse
	if err := json.Unmarshal(raw, &wp); err != nil {
		return nil, errors.Wrap(err, "decode execute response")
	}

	return &payment.PayPalExecuted{
		PaymentID: wp.ID,
		PayerID:   wp.Payer.PayerInfo.PayerID,
		State:     wp.State,
		Raw:       raw,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request %s", path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.Errorf("gateway returned %s: %s", resp.Status, raw)
	}
	return raw, nil
}
