package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"vexchange/internal/domain"
)

// Wallet holds one user's balances. The currency set is fixed at the schema
// level; arbitrary codes cannot appear as balances. Only the settlement
// service mutates these columns.
type Wallet struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	BalanceUSD  decimal.Decimal `gorm:"type:decimal(30,10);not null;default:0" json:"-"`
	BalanceBTC  decimal.Decimal `gorm:"type:decimal(30,10);not null;default:0" json:"-"`
	BalanceETH  decimal.Decimal `gorm:"type:decimal(30,10);not null;default:0" json:"-"`
	BalanceUSDT decimal.Decimal `gorm:"type:decimal(30,10);not null;default:0" json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// balanceColumns maps currency codes to their physical columns. Used both for
// reads and for the atomic increment updates in the wallet repository.
var balanceColumns = map[string]string{
	domain.CurrencyUSD:  "balance_usd",
	domain.CurrencyBTC:  "balance_btc",
	domain.CurrencyETH:  "balance_eth",
	domain.CurrencyUSDT: "balance_usdt",
}

// BalanceColumn returns the column name for a supported currency code.
func BalanceColumn(currency string) (string, bool) {
	col, ok := balanceColumns[currency]
	return col, ok
}

func (w *Wallet) Balance(currency string) decimal.Decimal {
	switch currency {
	case domain.CurrencyUSD:
		return w.BalanceUSD
	case domain.CurrencyBTC:
		return w.BalanceBTC
	case domain.CurrencyETH:
		return w.BalanceETH
	case domain.CurrencyUSDT:
		return w.BalanceUSDT
	}
	return decimal.Zero
}

// Balances returns the balance map shape the API exposes.
func (w *Wallet) Balances() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		domain.CurrencyUSD:  w.BalanceUSD,
		domain.CurrencyBTC:  w.BalanceBTC,
		domain.CurrencyETH:  w.BalanceETH,
		domain.CurrencyUSDT: w.BalanceUSDT,
	}
}
