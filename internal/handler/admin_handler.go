package handler

import (
	"errors"
	"net/http"
	"strconv"

	"vexchange/internal/domain"
	"vexchange/internal/models"
	"vexchange/internal/repository"
	"vexchange/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type AdminHandler struct {
	users        *repository.UserRepository
	wallets      *repository.WalletRepository
	trades       *repository.TradeRepository
	transactions *repository.TransactionRepository
	giftCards    *repository.GiftCardRepository
	assets       *repository.CryptoAssetRepository
	settlement   *service.SettlementService
	log          *logrus.Logger
}

func NewAdminHandler(
	users *repository.UserRepository,
	wallets *repository.WalletRepository,
	trades *repository.TradeRepository,
	transactions *repository.TransactionRepository,
	giftCards *repository.GiftCardRepository,
	assets *repository.CryptoAssetRepository,
	settlement *service.SettlementService,
	log *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		users:        users,
		wallets:      wallets,
		trades:       trades,
		transactions: transactions,
		giftCards:    giftCards,
		assets:       assets,
		settlement:   settlement,
		log:          log,
	}
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

func (h *AdminHandler) SetUserBlocked(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Blocked *bool `json:"blocked" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.users.SetBlocked(id, *req.Blocked); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AdminHandler) ListTrades(c *gin.Context) {
	trades, err := h.trades.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

type ApproveTradeRequest struct {
	DeliveredCode string `json:"delivered_code"`
}

// ApproveTrade settles a pending trade. Gift card buys should carry the code
// being delivered to the buyer.
func (h *AdminHandler) ApproveTrade(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req ApproveTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade, err := h.settlement.SettleTradeApproval(id, req.DeliveredCode)
	if err != nil {
		h.settlementError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trade": trade})
}

type RejectTradeRequest struct {
	Notes string `json:"notes"`
}

func (h *AdminHandler) RejectTrade(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req RejectTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade, err := h.settlement.RejectTrade(id, req.Notes)
	if err != nil {
		h.settlementError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trade": trade})
}

func (h *AdminHandler) settlementError(c *gin.Context, tradeID uint, err error) {
	switch {
	case errors.Is(err, domain.ErrTradeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrTradeAlreadyProcessed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.WithError(err).WithField("trade_id", tradeID).Error("trade settlement failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement failed"})
	}
}

func (h *AdminHandler) ListTransactions(c *gin.Context) {
	f := repository.Filter{
		Type:     c.Query("type"),
		Category: c.Query("category"),
		Status:   c.Query("status"),
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	list, err := h.transactions.List(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list, "count": len(list)})
}

func (h *AdminHandler) ListWallets(c *gin.Context) {
	wallets, err := h.wallets.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	out := make([]gin.H, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, gin.H{"wallet_id": w.ID, "user_id": w.UserID, "balances": w.Balances()})
	}
	c.JSON(http.StatusOK, gin.H{"wallets": out, "count": len(out)})
}

type FundWalletRequest struct {
	UserID   uint            `json:"user_id" binding:"required"`
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
}

// FundWallet credits a user directly, bypassing the payment providers.
func (h *AdminHandler) FundWallet(c *gin.Context) {
	var req FundWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.settlement.Deposit(req.UserID, req.Currency, req.Amount, "Admin wallet funding")
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCurrency), errors.Is(err, domain.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.log.WithError(err).WithField("user_id", req.UserID).Error("wallet funding failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "funding failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": w.Balances()})
}

type CreateGiftCardRequest struct {
	Brand     string          `json:"brand" binding:"required"`
	Type      string          `json:"type"`
	FaceValue decimal.Decimal `json:"face_value" binding:"required"`
	BuyRate   decimal.Decimal `json:"buy_rate" binding:"required"`
	SellRate  decimal.Decimal `json:"sell_rate" binding:"required"`
	Image     string          `json:"image"`
}

func (h *AdminHandler) CreateGiftCard(c *gin.Context) {
	var req CreateGiftCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	card := &models.GiftCard{
		Brand:     req.Brand,
		Type:      req.Type,
		FaceValue: req.FaceValue,
		BuyRate:   req.BuyRate,
		SellRate:  req.SellRate,
		IsActive:  true,
		Image:     req.Image,
	}
	if err := h.giftCards.Create(card); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "gift card could not be created"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"gift_card": card})
}

func (h *AdminHandler) ListGiftCards(c *gin.Context) {
	cards, err := h.giftCards.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"gift_cards": cards, "count": len(cards)})
}

type SetRatesRequest struct {
	BuyRate  decimal.Decimal `json:"buy_rate" binding:"required"`
	SellRate decimal.Decimal `json:"sell_rate" binding:"required"`
}

func (h *AdminHandler) SetGiftCardRates(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req SetRatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.BuyRate.IsPositive() || !req.SellRate.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rates must be positive"})
		return
	}
	card, err := h.giftCards.UpdateRates(id, req.BuyRate, req.SellRate)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "gift card not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"gift_card": card})
}

type SetAssetPriceRequest struct {
	Price decimal.Decimal `json:"price" binding:"required"`
}

// SetAssetPrice maintains the fallback price used when the live feed is down.
func (h *AdminHandler) SetAssetPrice(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req SetAssetPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Price.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be positive"})
		return
	}
	asset, err := h.assets.UpdatePrice(id, req.Price)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset})
}

// PendingDeposits lists manual crypto deposits awaiting on-chain confirmation.
func (h *AdminHandler) PendingDeposits(c *gin.Context) {
	list, err := h.transactions.ListPendingDeposits(DepositSourceManual)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deposits": list, "count": len(list)})
}

// ConfirmDeposit settles a manual deposit after the admin has verified the
// transfer on-chain. Confirming twice answers 409 without double crediting.
func (h *AdminHandler) ConfirmDeposit(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	t, err := h.transactions.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		return
	}
	if t.PaymentID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction has no payment reference"})
		return
	}
	settled, err := h.settlement.SettleExternalPayment(*t.PaymentID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicatePayment):
			c.JSON(http.StatusConflict, gin.H{"error": "deposit already confirmed"})
		case errors.Is(err, domain.ErrPendingPaymentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			h.log.WithError(err).WithField("transaction_id", id).Error("deposit confirmation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "confirmation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": settled})
}
