package domain

import "errors"

// Ledger error taxonomy. Handlers translate these to HTTP responses; nothing
// below ever carries a raw driver fault to the client.
var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidTradeSide       = errors.New("invalid trade side")
	ErrInvalidCurrency        = errors.New("unsupported currency")
	ErrInsufficientFunds      = errors.New("insufficient balance")
	ErrAssetNotFound          = errors.New("asset not found")
	ErrPriceUnavailable       = errors.New("price service temporarily unavailable")
	ErrTradeNotFound          = errors.New("trade not found")
	ErrTradeAlreadyProcessed  = errors.New("trade already processed")
	ErrDuplicatePayment       = errors.New("payment already settled")
	ErrPendingPaymentNotFound = errors.New("pending payment not found")
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrUnauthorizedEvent      = errors.New("event signature verification failed")
)
