package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CoinbaseProvider creates Coinbase Commerce hosted charges.
type CoinbaseProvider struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

func NewCoinbaseProvider(apiKey string) *CoinbaseProvider {
	return &CoinbaseProvider{
		BaseURL: "https://api.commerce.coinbase.com",
		APIKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *CoinbaseProvider) Configured() bool {
	return p.APIKey != ""
}

type coinbaseChargeReq struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	PricingType string                 `json:"pricing_type"`
	LocalPrice  coinbasePrice          `json:"local_price"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	RedirectURL string                 `json:"redirect_url,omitempty"`
	CancelURL   string                 `json:"cancel_url,omitempty"`
}

type coinbasePrice struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type coinbaseChargeResp struct {
	Data struct {
		ID        string `json:"id"`
		HostedURL string `json:"hosted_url"`
		ExpiresAt string `json:"expires_at"`
	} `json:"data"`
}

// CreateCheckout creates a fixed-price USD charge. The charge id becomes the
// transaction's paymentId; the confirmation webhook carries it back.
func (p *CoinbaseProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	payload := coinbaseChargeReq{
		Name:        "Wallet Deposit",
		Description: req.Description,
		PricingType: "fixed_price",
		LocalPrice:  coinbasePrice{Amount: fmt.Sprintf("%.2f", req.AmountUSD), Currency: "USD"},
		Metadata:    req.Metadata,
		RedirectURL: req.SuccessURL,
		CancelURL:   req.CancelURL,
	}
	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-CC-Api-Key", p.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("coinbase charge: %d %s", resp.StatusCode, string(respBody))
	}
	var out coinbaseChargeResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	res := &CheckoutResponse{
		Reference:   out.Data.ID,
		Status:      "pending",
		CheckoutURL: out.Data.HostedURL,
	}
	if t, err := time.Parse(time.RFC3339, out.Data.ExpiresAt); err == nil {
		res.ExpiresAt = t
	}
	return res, nil
}
