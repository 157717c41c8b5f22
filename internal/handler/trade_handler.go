package handler

import (
	"errors"
	"net/http"

	"vexchange/internal/domain"
	"vexchange/internal/middleware"
	"vexchange/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type TradeHandler struct {
	svc *service.TradeService
	log *logrus.Logger
}

func NewTradeHandler(svc *service.TradeService, log *logrus.Logger) *TradeHandler {
	return &TradeHandler{svc: svc, log: log}
}

type CryptoTradeRequest struct {
	TradeType string          `json:"trade_type" binding:"required,oneof=buy sell"`
	Symbol    string          `json:"symbol" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

// CreateCrypto places a pending buy or sell order at the current oracle price.
func (h *TradeHandler) CreateCrypto(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req CryptoTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade, err := h.svc.CreateCryptoTrade(c.Request.Context(), userID, req.TradeType, req.Symbol, req.Amount)
	if err != nil {
		h.tradeError(c, userID, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"trade": trade})
}

type PeerTradeRequest struct {
	TradeType string          `json:"trade_type" binding:"required,oneof=buy sell"`
	Symbol    string          `json:"symbol" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Rate      decimal.Decimal `json:"rate" binding:"required"`
}

// CreatePeer places a P2P order at the rate the parties agreed on.
func (h *TradeHandler) CreatePeer(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req PeerTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade, err := h.svc.CreatePeerTrade(userID, req.TradeType, req.Symbol, req.Amount, req.Rate)
	if err != nil {
		h.tradeError(c, userID, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"trade": trade})
}

// List returns the user's order history, optionally filtered by asset class
// via ?type=crypto|giftcard.
func (h *TradeHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	trades, err := h.svc.ListUserTrades(userID, c.Query("type"))
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("trade listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (h *TradeHandler) tradeError(c *gin.Context, userID uint, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidTradeSide),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrWalletNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAssetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPriceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.log.WithError(err).WithField("user_id", userID).Error("trade creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trade failed"})
	}
}
