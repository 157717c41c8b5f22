package handler

import (
	"net/http"

	"vexchange/internal/domain"
	"vexchange/internal/middleware"
	"vexchange/internal/repository"
	"vexchange/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type GiftCardHandler struct {
	cards  *repository.GiftCardRepository
	trades *TradeHandler
	svc    *service.TradeService
	log    *logrus.Logger
}

func NewGiftCardHandler(cards *repository.GiftCardRepository, svc *service.TradeService, trades *TradeHandler, log *logrus.Logger) *GiftCardHandler {
	return &GiftCardHandler{cards: cards, svc: svc, trades: trades, log: log}
}

// List returns the active catalog with current buy and sell rates.
func (h *GiftCardHandler) List(c *gin.Context) {
	cards, err := h.cards.ListActive()
	if err != nil {
		h.log.WithError(err).Error("gift card listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"gift_cards": cards, "count": len(cards)})
}

type GiftCardBuyRequest struct {
	GiftCardID uint            `json:"gift_card_id" binding:"required"`
	FaceValue  decimal.Decimal `json:"face_value" binding:"required"`
}

// Buy places a pending order for a card from the catalog. The code is
// delivered at admin approval, not here.
func (h *GiftCardHandler) Buy(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req GiftCardBuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade, err := h.svc.CreateGiftCardTrade(service.GiftCardOrder{
		UserID:     userID,
		Side:       domain.TradeSideBuy,
		GiftCardID: req.GiftCardID,
		FaceValue:  req.FaceValue,
	})
	if err != nil {
		h.trades.tradeError(c, userID, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"trade": trade})
}

type GiftCardSellRequest struct {
	GiftCardID uint            `json:"gift_card_id" binding:"required"`
	FaceValue  decimal.Decimal `json:"face_value" binding:"required"`
	Code       string          `json:"code" binding:"required"`
	Image      string          `json:"image"`
}

// Sell submits a card the user owns for review. Payout happens at approval.
func (h *GiftCardHandler) Sell(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req GiftCardSellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade, err := h.svc.CreateGiftCardTrade(service.GiftCardOrder{
		UserID:     userID,
		Side:       domain.TradeSideSell,
		GiftCardID: req.GiftCardID,
		FaceValue:  req.FaceValue,
		Code:       req.Code,
		ImageRef:   req.Image,
	})
	if err != nil {
		h.trades.tradeError(c, userID, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"trade": trade})
}
