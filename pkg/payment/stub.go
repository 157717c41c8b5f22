package payment

import (
	"context"
	"fmt"
	"time"
)

// StubProvider is a no-op provider for development. The checkout URL points
// nowhere; settle the pending transaction through the generic webhook.
type StubProvider struct{}

func (s *StubProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	ref := req.Reference
	if ref == "" {
		ref = fmt.Sprintf("stub_%d", time.Now().UnixNano())
	}
	return &CheckoutResponse{
		Reference:   ref,
		Status:      "pending",
		CheckoutURL: "",
		ExpiresAt:   time.Now().Add(30 * time.Minute),
	}, nil
}
