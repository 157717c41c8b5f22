package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StripeProvider creates Stripe Checkout sessions for card deposits. Amounts
// go out in cents; our payment reference rides along as client_reference_id
// and comes back on the checkout.session.completed webhook.
type StripeProvider struct {
	BaseURL   string
	SecretKey string
	client    *http.Client
}

func NewStripeProvider(secretKey string) *StripeProvider {
	return &StripeProvider{
		BaseURL:   "https://api.stripe.com",
		SecretKey: secretKey,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *StripeProvider) Configured() bool {
	return p.SecretKey != ""
}

type stripeSessionResp struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}

// CreateCheckout creates a payment-mode Checkout session. The returned
// reference is our own id, not the session id, so webhook reconciliation
// matches the pending transaction directly.
func (p *StripeProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", req.Reference)
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(int64(math.Round(req.AmountUSD*100)), 10))
	form.Set("line_items[0][price_data][product_data][name]", "Wallet Deposit")
	if req.Description != "" {
		form.Set("line_items[0][price_data][product_data][description]", req.Description)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(p.SecretKey, "")
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stripe checkout session: %d %s", resp.StatusCode, string(respBody))
	}
	var out stripeSessionResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	if out.URL == "" {
		return nil, fmt.Errorf("stripe: no checkout url in response")
	}
	res := &CheckoutResponse{
		Reference:   req.Reference,
		Status:      "pending",
		CheckoutURL: out.URL,
	}
	if out.ExpiresAt > 0 {
		res.ExpiresAt = time.Unix(out.ExpiresAt, 0)
	}
	return res, nil
}
