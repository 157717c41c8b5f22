package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PayPalProvider creates and captures PayPal checkout orders via the v2 REST
// API. Each call fetches a fresh client-credentials token.
type PayPalProvider struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	client       *http.Client
}

func NewPayPalProvider(clientID, clientSecret, mode string) *PayPalProvider {
	base := "https://api-m.sandbox.paypal.com"
	if mode == "live" {
		base = "https://api-m.paypal.com"
	}
	return &PayPalProvider{
		BaseURL:      base,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *PayPalProvider) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

func (p *PayPalProvider) getToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString([]byte(p.ClientID + ":" + p.ClientSecret))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal token: %d %s", resp.StatusCode, string(body))
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("paypal: empty access token")
	}
	return out.AccessToken, nil
}

type paypalOrderReq struct {
	Intent             string               `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit `json:"purchase_units"`
	ApplicationContext paypalAppContext     `json:"application_context"`
}

type paypalPurchaseUnit struct {
	Amount      paypalAmount `json:"amount"`
	Description string       `json:"description,omitempty"`
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalAppContext struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type paypalOrderResp struct {
	ID    string `json:"id"`
	Links []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

// CreateCheckout creates a CAPTURE-intent order. The returned reference is
// PayPal's order id, which becomes the transaction's paymentId.
func (p *PayPalProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	token, err := p.getToken(ctx)
	if err != nil {
		return nil, err
	}
	payload := paypalOrderReq{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			Amount:      paypalAmount{CurrencyCode: "USD", Value: fmt.Sprintf("%.2f", req.AmountUSD)},
			Description: req.Description,
		}},
		ApplicationContext: paypalAppContext{ReturnURL: req.SuccessURL, CancelURL: req.CancelURL},
	}
	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v2/checkout/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("paypal create order: %d %s", resp.StatusCode, string(respBody))
	}
	var out paypalOrderResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	approvalURL := ""
	for _, l := range out.Links {
		if l.Rel == "approve" {
			approvalURL = l.Href
			break
		}
	}
	if approvalURL == "" {
		return nil, fmt.Errorf("paypal: no approval url in response")
	}
	return &CheckoutResponse{
		Reference:   out.ID,
		Status:      "pending",
		CheckoutURL: approvalURL,
	}, nil
}

// CaptureOrder captures an approved order after the payer returns.
func (p *PayPalProvider) CaptureOrder(ctx context.Context, orderID string) error {
	token, err := p.getToken(ctx)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/v2/checkout/orders/%s/capture", p.BaseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("paypal capture: %d %s", resp.StatusCode, string(body))
	}
	return nil
}
