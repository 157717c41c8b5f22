package domain

import "github.com/shopspring/decimal"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	CurrencyUSD  = "usd"
	CurrencyBTC  = "btc"
	CurrencyETH  = "eth"
	CurrencyUSDT = "usdt"
)

// SupportedCurrencies is the wallet balance allow-list. Balances only ever
// exist for these codes; anything else is rejected at the boundary.
var SupportedCurrencies = []string{CurrencyUSD, CurrencyBTC, CurrencyETH, CurrencyUSDT}

// CryptoCurrencies are the currencies tradable against USD.
var CryptoCurrencies = []string{CurrencyBTC, CurrencyETH, CurrencyUSDT}

func IsSupportedCurrency(code string) bool {
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

func IsCryptoCurrency(code string) bool {
	for _, c := range CryptoCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

const (
	AssetClassCrypto   = "crypto"
	AssetClassGiftCard = "giftcard"
)

const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
	TradeSideP2P  = "trade"
)

const (
	TradeStatusPending  = "pending"
	TradeStatusApproved = "approved"
	TradeStatusRejected = "rejected"
	// Reserved by the status enum; no flow currently transitions into these.
	TradeStatusCompleted = "completed"
	TradeStatusCancelled = "cancelled"
)

const (
	TxTypeDeposit    = "deposit"
	TxTypeWithdrawal = "withdrawal"
	TxTypeTrade      = "trade"
	TxTypeTransfer   = "transfer"
)

const (
	TxCategoryCrypto   = "crypto"
	TxCategoryGiftCard = "giftcard"
	TxCategoryWallet   = "wallet"
)

const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
	TxStatusCancelled = "cancelled"
)

// Order minimums. Crypto amounts below MinCryptoAmount and gift card face
// values below MinGiftCardFaceValue are rejected before any price lookup.
var (
	MinCryptoAmount      = decimal.RequireFromString("0.0001")
	MinGiftCardFaceValue = decimal.NewFromInt(1)
	MinPeerTradeRate     = decimal.RequireFromString("0.01")
	MinDepositAmount     = decimal.RequireFromString("0.01")
)
