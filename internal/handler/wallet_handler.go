package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vexchange/internal/domain"
	"vexchange/internal/middleware"
	"vexchange/internal/repository"
	"vexchange/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type WalletHandler struct {
	wallets      *repository.WalletRepository
	transactions *repository.TransactionRepository
	settlement   *service.SettlementService
	log          *logrus.Logger
}

func NewWalletHandler(
	wallets *repository.WalletRepository,
	transactions *repository.TransactionRepository,
	settlement *service.SettlementService,
	log *logrus.Logger,
) *WalletHandler {
	return &WalletHandler{wallets: wallets, transactions: transactions, settlement: settlement, log: log}
}

// GetWallet returns the current user's balances, creating the wallet on first
// access.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID := middleware.GetUserID(c)
	w, err := h.wallets.GetOrCreate(userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("wallet lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wallet error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"wallet_id": w.ID,
		"balances":  w.Balances(),
	})
}

type WithdrawRequest struct {
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
}

func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.settlement.Withdraw(userID, strings.ToLower(req.Currency), req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCurrency), errors.Is(err, domain.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrWalletNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInsufficientFunds.Error()})
		default:
			h.log.WithError(err).WithField("user_id", userID).Error("withdrawal failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "withdrawal failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": w.Balances()})
}

// Transactions lists the user's history, optionally filtered by type,
// category, status, date range and limit.
func (h *WalletHandler) Transactions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	f := repository.Filter{
		Type:     c.Query("type"),
		Category: c.Query("category"),
		Status:   c.Query("status"),
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			f.From = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			f.To = t.Add(24*time.Hour - time.Second)
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	list, err := h.transactions.ListByUser(userID, f)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("transaction listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list, "count": len(list)})
}
