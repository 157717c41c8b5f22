package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CryptoAsset is an admin-maintained price row, used as the oracle fallback
// when the live market feed is unavailable.
type CryptoAsset struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Symbol    string          `gorm:"size:20;uniqueIndex;not null" json:"symbol"`
	Name      string          `gorm:"size:60;not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(30,10);not null;default:0" json:"price"`
	Change24h decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0" json:"change24h"`
	Volume24h decimal.Decimal `gorm:"type:decimal(30,4);not null;default:0" json:"volume24h"`
	IsActive  bool            `gorm:"not null;default:true" json:"is_active"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (CryptoAsset) TableName() string {
	return "crypto_assets"
}
