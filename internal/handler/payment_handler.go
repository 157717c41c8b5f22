package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"vexchange/config"
	"vexchange/internal/domain"
	"vexchange/internal/middleware"
	"vexchange/internal/models"
	"vexchange/internal/repository"
	"vexchange/internal/service"
	"vexchange/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DepositSourceManual marks transactions awaiting an admin's on-chain check.
const DepositSourceManual = "manual"

type PaymentHandler struct {
	cfg          *config.Config
	transactions *repository.TransactionRepository
	settlement   *service.SettlementService
	paypal       *payment.PayPalProvider
	stripe       *payment.StripeProvider
	coinbase     *payment.CoinbaseProvider
	stub         *payment.StubProvider
	log          *logrus.Logger
}

func NewPaymentHandler(
	cfg *config.Config,
	transactions *repository.TransactionRepository,
	settlement *service.SettlementService,
	log *logrus.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		cfg:          cfg,
		transactions: transactions,
		settlement:   settlement,
		paypal:       payment.NewPayPalProvider(cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, cfg.PayPal.Mode),
		stripe:       payment.NewStripeProvider(cfg.Stripe.SecretKey),
		coinbase:     payment.NewCoinbaseProvider(cfg.Coinbase.APIKey),
		stub:         &payment.StubProvider{},
		log:          log,
	}
}

type CheckoutRequest struct {
	Provider  string  `json:"provider" binding:"required,oneof=paypal stripe coinbase stub"`
	AmountUSD float64 `json:"amount_usd" binding:"required,gt=0"`
}

// CreateCheckout starts a USD deposit through a hosted provider page. The
// wallet is credited only when the provider confirms, via webhook or capture.
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var provider payment.Provider
	switch req.Provider {
	case "paypal":
		if !h.paypal.Configured() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "paypal is not configured"})
			return
		}
		provider = h.paypal
	case "stripe":
		if !h.stripe.Configured() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stripe is not configured"})
			return
		}
		provider = h.stripe
	case "coinbase":
		if !h.coinbase.Configured() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "coinbase is not configured"})
			return
		}
		provider = h.coinbase
	default:
		provider = h.stub
	}

	resp, err := provider.CreateCheckout(c.Request.Context(), payment.CheckoutRequest{
		Reference:   "pay-" + uuid.NewString(),
		AmountUSD:   req.AmountUSD,
		Description: fmt.Sprintf("Wallet deposit %.2f USD", req.AmountUSD),
		SuccessURL:  h.cfg.Server.FrontendURL + "/wallet/deposit/success",
		CancelURL:   h.cfg.Server.FrontendURL + "/wallet/deposit/cancel",
		Metadata:    map[string]interface{}{"user_id": userID},
	})
	if err != nil {
		h.log.WithError(err).WithField("provider", req.Provider).Error("checkout creation failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "checkout creation failed"})
		return
	}

	meta, _ := json.Marshal(map[string]string{"provider": req.Provider, "source": "checkout"})
	ref := resp.Reference
	tx := &models.Transaction{
		UserID:      userID,
		Type:        domain.TxTypeDeposit,
		Category:    domain.TxCategoryWallet,
		Amount:      decimal.NewFromFloat(req.AmountUSD),
		Currency:    domain.CurrencyUSD,
		Status:      domain.TxStatusPending,
		Description: fmt.Sprintf("Deposit %.2f USD via %s", req.AmountUSD, req.Provider),
		PaymentID:   &ref,
		Metadata:    string(meta),
	}
	if err := h.transactions.Create(tx); err != nil {
		h.log.WithError(err).WithField("payment_id", ref).Error("pending deposit record failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deposit could not be recorded"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"reference":    ref,
		"checkout_url": resp.CheckoutURL,
		"status":       resp.Status,
	})
}

type CapturePayPalRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// CapturePayPal captures the order after the payer returns from PayPal and
// settles the pending deposit. A repeat capture of an already-settled order
// answers 200 without crediting again.
func (h *PaymentHandler) CapturePayPal(c *gin.Context) {
	var req CapturePayPalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.paypal.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "paypal is not configured"})
		return
	}
	if err := h.paypal.CaptureOrder(c.Request.Context(), req.OrderID); err != nil {
		h.log.WithError(err).WithField("order_id", req.OrderID).Error("paypal capture failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "capture failed"})
		return
	}
	t, err := h.settlement.SettleExternalPayment(req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicatePayment):
			c.JSON(http.StatusOK, gin.H{"status": "already_settled", "transaction": t})
		case errors.Is(err, domain.ErrPendingPaymentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			h.log.WithError(err).WithField("order_id", req.OrderID).Error("paypal settlement failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "settled", "transaction": t})
}

type CryptoDepositRequest struct {
	Currency string          `json:"currency" binding:"required,oneof=btc eth usdt"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
}

// RequestCryptoDeposit records an announced on-chain transfer and returns the
// house address for the currency. An admin confirms the transfer later, which
// settles the pending row.
func (h *PaymentHandler) RequestCryptoDeposit(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req CryptoDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Amount.LessThan(domain.MinDepositAmount) {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidAmount.Error()})
		return
	}
	address := h.depositAddress(req.Currency)
	if address == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "deposits for this currency are not available"})
		return
	}

	ref := "dep-" + uuid.NewString()
	meta, _ := json.Marshal(map[string]string{"source": DepositSourceManual, "address": address})
	tx := &models.Transaction{
		UserID:      userID,
		Type:        domain.TxTypeDeposit,
		Category:    domain.TxCategoryWallet,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Status:      domain.TxStatusPending,
		Description: fmt.Sprintf("Crypto deposit %s %s", req.Amount.String(), strings.ToUpper(req.Currency)),
		PaymentID:   &ref,
		Metadata:    string(meta),
	}
	if err := h.transactions.Create(tx); err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("deposit request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deposit could not be recorded"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"reference": ref,
		"currency":  req.Currency,
		"address":   address,
		"status":    domain.TxStatusPending,
	})
}

// CryptoOptions lists the currencies accepted for manual deposits and their
// house addresses.
func (h *PaymentHandler) CryptoOptions(c *gin.Context) {
	options := make([]gin.H, 0, len(domain.CryptoCurrencies))
	for _, cur := range domain.CryptoCurrencies {
		addr := h.depositAddress(cur)
		if addr == "" {
			continue
		}
		options = append(options, gin.H{"currency": cur, "address": addr})
	}
	c.JSON(http.StatusOK, gin.H{"options": options})
}

func (h *PaymentHandler) depositAddress(currency string) string {
	switch currency {
	case domain.CurrencyBTC:
		return h.cfg.Payment.DepositBTCAddress
	case domain.CurrencyETH:
		return h.cfg.Payment.DepositETHAddress
	case domain.CurrencyUSDT:
		return h.cfg.Payment.DepositUSDTAddress
	}
	return ""
}
