package payment

import (
	"context"
	"time"
)

// CheckoutRequest describes a hosted-checkout deposit to initiate with a
// provider. Reference is our payment id; the provider echoes it back (or we
// store the provider's id as the reference) so webhooks can reconcile.
type CheckoutRequest struct {
	Reference   string
	AmountUSD   float64
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]interface{}
}

// CheckoutResponse is what the client needs to complete payment.
type CheckoutResponse struct {
	Reference   string
	Status      string
	CheckoutURL string
	ExpiresAt   time.Time
}

// Provider is a hosted-checkout payment provider.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error)
}
