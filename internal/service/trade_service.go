package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"vexchange/internal/domain"
	"vexchange/internal/models"
	"vexchange/internal/repository"
)

// TradeService validates and records new orders. It never touches balances:
// funds move only when an admin approval reaches the settlement service.
type TradeService struct {
	trades    *repository.TradeRepository
	wallets   *repository.WalletRepository
	giftCards *repository.GiftCardRepository
	prices    *PriceService
}

func NewTradeService(
	trades *repository.TradeRepository,
	wallets *repository.WalletRepository,
	giftCards *repository.GiftCardRepository,
	prices *PriceService,
) *TradeService {
	return &TradeService{trades: trades, wallets: wallets, giftCards: giftCards, prices: prices}
}

var oneHundred = decimal.NewFromInt(100)

// CreateCryptoTrade creates a pending buy or sell order at the oracle's
// current price. Client-supplied prices are never accepted on this path.
//
// The buy-side USD check is a reservation check only: nothing is debited
// until approval, so the balance can still move before settlement.
func (s *TradeService) CreateCryptoTrade(ctx context.Context, userID uint, side, symbol string, amount decimal.Decimal) (*models.Trade, error) {
	if side != domain.TradeSideBuy && side != domain.TradeSideSell {
		return nil, domain.ErrInvalidTradeSide
	}
	if amount.LessThan(domain.MinCryptoAmount) {
		return nil, domain.ErrInvalidAmount
	}
	code := strings.ToLower(strings.TrimSpace(symbol))
	if !domain.IsCryptoCurrency(code) {
		return nil, domain.ErrInvalidCurrency
	}

	price, err := s.prices.GetPrice(ctx, code)
	if err != nil {
		return nil, err
	}
	total := amount.Mul(price)

	if side == domain.TradeSideBuy {
		wallet, err := s.wallets.GetOrCreate(userID)
		if err != nil {
			return nil, err
		}
		if wallet.BalanceUSD.LessThan(total) {
			return nil, domain.ErrInsufficientFunds
		}
	} else {
		wallet, err := s.wallets.GetByUserID(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.ErrWalletNotFound
			}
			return nil, err
		}
		if wallet.Balance(code).LessThan(amount) {
			return nil, domain.ErrInsufficientFunds
		}
	}

	trade := &models.Trade{
		UserID:     userID,
		AssetClass: domain.AssetClassCrypto,
		Side:       side,
		Asset:      strings.ToUpper(code),
		Amount:     amount,
		Price:      price,
		Total:      total,
		Status:     domain.TradeStatusPending,
	}
	if err := s.trades.Create(trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// CreatePeerTrade records a P2P order. The rate is the parties' own agreement
// and is accepted verbatim; no oracle lookup and no funds check happen here.
func (s *TradeService) CreatePeerTrade(userID uint, side, symbol string, amount, rate decimal.Decimal) (*models.Trade, error) {
	if side != domain.TradeSideBuy && side != domain.TradeSideSell {
		return nil, domain.ErrInvalidTradeSide
	}
	if amount.LessThan(domain.MinCryptoAmount) {
		return nil, domain.ErrInvalidAmount
	}
	if rate.LessThan(domain.MinPeerTradeRate) {
		return nil, domain.ErrInvalidAmount
	}
	code := strings.ToLower(strings.TrimSpace(symbol))
	if !domain.IsCryptoCurrency(code) {
		return nil, domain.ErrInvalidCurrency
	}
	trade := &models.Trade{
		UserID:     userID,
		AssetClass: domain.AssetClassCrypto,
		Side:       side,
		Asset:      strings.ToUpper(code),
		Amount:     amount,
		Price:      rate,
		Total:      amount.Mul(rate),
		Status:     domain.TradeStatusPending,
		PeerTrade:  true,
	}
	if err := s.trades.Create(trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// GiftCardOrder is the input for a gift card buy or sell.
type GiftCardOrder struct {
	UserID     uint
	Side       string
	GiftCardID uint
	FaceValue  decimal.Decimal
	Code       string // seller-submitted card code (sell only)
	ImageRef   string // proof image reference (sell only)
}

// CreateGiftCardTrade creates a pending gift card order. The total is the
// face value scaled by the card's buy or sell rate, locked in at creation.
func (s *TradeService) CreateGiftCardTrade(o GiftCardOrder) (*models.Trade, error) {
	if o.Side != domain.TradeSideBuy && o.Side != domain.TradeSideSell {
		return nil, domain.ErrInvalidTradeSide
	}
	if o.FaceValue.LessThan(domain.MinGiftCardFaceValue) {
		return nil, domain.ErrInvalidAmount
	}
	card, err := s.giftCards.GetByID(o.GiftCardID)
	if err != nil || !card.IsActive {
		return nil, domain.ErrAssetNotFound
	}

	var rate decimal.Decimal
	if o.Side == domain.TradeSideBuy {
		rate = card.BuyRate
	} else {
		rate = card.SellRate
	}
	total := o.FaceValue.Mul(rate).Div(oneHundred)

	if o.Side == domain.TradeSideBuy {
		wallet, err := s.wallets.GetOrCreate(o.UserID)
		if err != nil {
			return nil, err
		}
		if wallet.BalanceUSD.LessThan(total) {
			return nil, domain.ErrInsufficientFunds
		}
	}

	trade := &models.Trade{
		UserID:        o.UserID,
		AssetClass:    domain.AssetClassGiftCard,
		Side:          o.Side,
		Asset:         card.Brand,
		Amount:        o.FaceValue,
		Price:         rate,
		Total:         total,
		Status:        domain.TradeStatusPending,
		GiftCardCode:  o.Code,
		GiftCardImage: o.ImageRef,
	}
	if err := s.trades.Create(trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// ListUserTrades returns the user's order history, newest first.
func (s *TradeService) ListUserTrades(userID uint, assetClass string) ([]models.Trade, error) {
	return s.trades.ListByUser(userID, assetClass)
}

// Describe builds the audit line used on settlement transactions.
func Describe(t *models.Trade) string {
	return fmt.Sprintf("%s %s %s", strings.ToUpper(t.Side), t.Amount.String(), t.Asset)
}
