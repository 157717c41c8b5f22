package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GiftCard is a catalog entry. BuyRate/SellRate are percentages of face value.
type GiftCard struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Brand     string          `gorm:"size:60;uniqueIndex;not null" json:"brand"`
	Type      string          `gorm:"size:40;not null" json:"type"`
	FaceValue decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"face_value"`
	BuyRate   decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"buy_rate"`
	SellRate  decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"sell_rate"`
	IsActive  bool            `gorm:"not null;default:true" json:"is_active"`
	Image     string          `gorm:"size:255" json:"image,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	DeletedAt gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (GiftCard) TableName() string {
	return "gift_cards"
}
