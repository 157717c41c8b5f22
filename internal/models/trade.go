package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Trade is a buy/sell/peer order. Price is locked in at creation; settlement
// applies the stored amount/total and never re-fetches a live price.
type Trade struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	UserID     uint            `gorm:"not null;index" json:"user_id"`
	AssetClass string          `gorm:"size:20;not null;index" json:"type"`       // crypto, giftcard
	Side       string          `gorm:"size:10;not null" json:"trade_type"`       // buy, sell, trade
	Asset      string          `gorm:"size:40;not null" json:"asset"`            // symbol or gift card brand
	Amount     decimal.Decimal `gorm:"type:decimal(30,10);not null" json:"amount"`
	Price      decimal.Decimal `gorm:"type:decimal(30,10);not null" json:"price"`
	Total      decimal.Decimal `gorm:"type:decimal(30,10);not null" json:"total"`
	Status     string          `gorm:"size:20;not null;index;default:'pending'" json:"status"`

	// Gift card flows
	GiftCardCode  string `gorm:"size:191" json:"gift_card_code,omitempty"`
	DeliveredCode string `gorm:"size:191" json:"delivered_code,omitempty"` // sent to buyer after approval
	GiftCardImage string `gorm:"size:255" json:"gift_card_image,omitempty"`

	// Peer trading
	PeerTrade  bool  `gorm:"not null;default:false" json:"peer_trade"`
	PeerUserID *uint `gorm:"index" json:"peer_user_id,omitempty"`

	AdminNotes string         `gorm:"size:500" json:"admin_notes,omitempty"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	User     User  `gorm:"foreignKey:UserID" json:"-"`
	PeerUser *User `gorm:"foreignKey:PeerUserID" json:"-"`
}

func (Trade) TableName() string {
	return "trades"
}
