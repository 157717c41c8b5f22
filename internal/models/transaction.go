package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is an immutable audit record. PaymentID carries the provider
// session/order/charge id and is the idempotency anchor: the unique index plus
// the guarded status flip in settlement keep any paymentId from completing
// twice.
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Type        string          `gorm:"size:20;not null;index" json:"type"`     // deposit, withdrawal, trade, transfer
	Category    string          `gorm:"size:20;not null;index" json:"category"` // crypto, giftcard, wallet
	Amount      decimal.Decimal `gorm:"type:decimal(30,10);not null" json:"amount"`
	Currency    string          `gorm:"size:10;not null" json:"currency"`
	Status      string          `gorm:"size:20;not null;index;default:'pending'" json:"status"`
	Description string          `gorm:"size:255" json:"description"`
	TradeID     *uint           `gorm:"index" json:"trade_id,omitempty"`
	PaymentID   *string         `gorm:"size:191;uniqueIndex" json:"payment_id,omitempty"`
	Metadata    string          `gorm:"type:text" json:"metadata,omitempty"` // JSON: provider name, correlation ids
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`

	User  User   `gorm:"foreignKey:UserID" json:"-"`
	Trade *Trade `gorm:"foreignKey:TradeID" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}
