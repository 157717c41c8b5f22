package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"vexchange/config"
	"vexchange/internal/domain"
	"vexchange/internal/models"
	"vexchange/internal/repository"
	"vexchange/internal/service"
)

const (
	testWebhookSecret  = "generic-secret"
	testStripeSecret   = "stripe-secret"
	testCoinbaseSecret = "coinbase-secret"
)

func setupWebhookTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Payment.WebhookSecret = testWebhookSecret
	cfg.Stripe.WebhookSecret = testStripeSecret
	cfg.Coinbase.WebhookSecret = testCoinbaseSecret
	return setupWebhookTestWithConfig(t, cfg)
}

func setupWebhookTestWithConfig(t *testing.T, cfg *config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:webhook_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Wallet{}, &models.Trade{}, &models.Transaction{}))

	log := logrus.New()
	log.SetOutput(io.Discard)
	settlement := service.NewSettlementService(
		db,
		repository.NewWalletRepository(db),
		repository.NewTradeRepository(db),
		repository.NewTransactionRepository(db),
		log,
	)
	h := NewPaymentWebhookHandler(cfg, settlement, log)

	r := gin.New()
	r.POST("/webhooks/payments", h.Handle)
	r.POST("/webhooks/stripe", h.HandleStripe)
	r.POST("/webhooks/coinbase", h.HandleCoinbase)
	return r, db
}

func seedPendingDeposit(t *testing.T, db *gorm.DB, userID uint, ref, currency, amount string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Transaction{
		UserID:    userID,
		Type:      domain.TxTypeDeposit,
		Category:  domain.TxCategoryWallet,
		Amount:    decimal.RequireFromString(amount),
		Currency:  currency,
		Status:    domain.TxStatusPending,
		PaymentID: &ref,
	}).Error)
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func signStripe(secret string, body []byte) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(body)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(r *gin.Engine, path, sigHeader, sig string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set(sigHeader, sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func usdBalance(t *testing.T, db *gorm.DB, userID uint) decimal.Decimal {
	t.Helper()
	var w models.Wallet
	err := db.Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero
	}
	require.NoError(t, err)
	return w.BalanceUSD
}

func TestWebhookSettlesPendingPayment(t *testing.T) {
	r, db := setupWebhookTest(t)
	seedPendingDeposit(t, db, 1, "pay-1", domain.CurrencyUSD, "150")

	body := []byte(`{"reference":"pay-1","status":"completed"}`)
	w := postWebhook(r, "/webhooks/payments", "X-Webhook-Signature", sign(testWebhookSecret, body), body)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, usdBalance(t, db, 1).Equal(decimal.NewFromInt(150)))

	var tx models.Transaction
	require.NoError(t, db.Where("payment_id = ?", "pay-1").First(&tx).Error)
	require.Equal(t, domain.TxStatusCompleted, tx.Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	r, db := setupWebhookTest(t)
	seedPendingDeposit(t, db, 1, "pay-2", domain.CurrencyUSD, "150")

	body := []byte(`{"reference":"pay-2","status":"completed"}`)
	w := postWebhook(r, "/webhooks/payments", "X-Webhook-Signature", "deadbeef", body)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.True(t, usdBalance(t, db, 1).IsZero())

	var tx models.Transaction
	require.NoError(t, db.Where("payment_id = ?", "pay-2").First(&tx).Error)
	require.Equal(t, domain.TxStatusPending, tx.Status)
}

func TestWebhookMissingSignature(t *testing.T) {
	r, db := setupWebhookTest(t)
	seedPendingDeposit(t, db, 1, "pay-3", domain.CurrencyUSD, "10")

	body := []byte(`{"reference":"pay-3","status":"completed"}`)
	w := postWebhook(r, "/webhooks/payments", "X-Webhook-Signature", "", body)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.True(t, usdBalance(t, db, 1).IsZero())
}

func TestWebhookRedeliveryCreditsOnce(t *testing.T) {
	r, db := setupWebhookTest(t)
	seedPendingDeposit(t, db, 1, "pay-4", domain.CurrencyUSD, "75")

	body := []byte(`{"reference":"pay-4","status":"completed"}`)
	sig := sign(testWebhookSecret, body)

	first := postWebhook(r, "/webhooks/payments", "X-Webhook-Signature", sig, body)
	require.Equal(t, http.StatusOK, first.Code)
	second := postWebhook(r, "/webhooks/payments", "X-Webhook-Signature", sig, body)
	require.Equal(t, http.StatusOK, second.Code)

	require.True(t, usdBalance(t, db, 1).Equal(decimal.NewFromInt(75)))
}

func TestWebhookUnknownReferenceAcked(t *testing.T) {
	r, _ := setupWebhookTest(t)

	body := []byte(`{"reference":"pay-unknown","status":"completed"}`)
	w := postWebhook(r, "/webhooks/payments", "X-Webhook-Signature", sign(testWebhookSecret, body), body)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookIgnoresNonCompletedStatus(t *testing.T) {
	r, db := setupWebhookTest(t)
	seedPendingDeposit(t, db, 1, "pay-5", domain.CurrencyUSD, "20")

	body := []byte(`{"reference":"pay-5","status":"failed"}`)
	w := postWebhook(r, "/webhooks/payments", "X-Webhook-Signature", sign(testWebhookSecret, body), body)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, usdBalance(t, db, 1).IsZero())
}

// With no secret configured, nothing settles: verification fails closed
// instead of waving unsigned events through.
func TestWebhookRejectedWithoutConfiguredSecret(t *testing.T) {
	cfg := &config.Config{}
	r, db := setupWebhookTestWithConfig(t, cfg)
	seedPendingDeposit(t, db, 1, "pay-nosecret", domain.CurrencyUSD, "50")

	body := []byte(`{"reference":"pay-nosecret","status":"completed"}`)
	w := postWebhook(r, "/webhooks/payments", "X-Webhook-Signature", "", body)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.True(t, usdBalance(t, db, 1).IsZero())
}

func TestCoinbaseWebhookRejectedWithoutConfiguredSecret(t *testing.T) {
	cfg := &config.Config{}
	r, db := setupWebhookTestWithConfig(t, cfg)
	seedPendingDeposit(t, db, 1, "charge-nosecret", domain.CurrencyUSD, "50")

	body := []byte(`{"event":{"type":"charge:confirmed","data":{"id":"charge-nosecret"}}}`)
	w := postWebhook(r, "/webhooks/coinbase", "X-CC-Webhook-Signature", "", body)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.True(t, usdBalance(t, db, 1).IsZero())
}

func TestStripeWebhookSettlesPaidSession(t *testing.T) {
	r, db := setupWebhookTest(t)
	seedPendingDeposit(t, db, 3, "pay-stripe-1", domain.CurrencyUSD, "120")

	body := []byte(`{"type":"checkout.session.completed","data":{"object":{"client_reference_id":"pay-stripe-1","payment_status":"paid"}}}`)
	w := postWebhook(r, "/webhooks/stripe", "Stripe-Signature", signStripe(testStripeSecret, body), body)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, usdBalance(t, db, 3).Equal(decimal.NewFromInt(120)))

	var tx models.Transaction
	require.NoError(t, db.Where("payment_id = ?", "pay-stripe-1").First(&tx).Error)
	require.Equal(t, domain.TxStatusCompleted, tx.Status)
}

func TestStripeWebhookIgnoresUnpaidSession(t *testing.T) {
	r, db := setupWebhookTest(t)
	seedPendingDeposit(t, db, 3, "pay-stripe-2", domain.CurrencyUSD, "120")

	body := []byte(`{"type":"checkout.session.completed","data":{"object":{"client_reference_id":"pay-stripe-2","payment_status":"unpaid"}}}`)
	w := postWebhook(r, "/webhooks/stripe", "Stripe-Signature", signStripe(testStripeSecret, body), body)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, usdBalance(t, db, 3).IsZero())
}

func TestStripeWebhookBadSignature(t *testing.T) {
	r, db := setupWebhookTest(t)
	seedPendingDeposit(t, db, 3, "pay-stripe-3", domain.CurrencyUSD, "120")

	body := []byte(`{"type":"checkout.session.completed","data":{"object":{"client_reference_id":"pay-stripe-3","payment_status":"paid"}}}`)
	w := postWebhook(r, "/webhooks/stripe", "Stripe-Signature", signStripe("wrong", body), body)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.True(t, usdBalance(t, db, 3).IsZero())
}

func TestCoinbaseWebhookChargeConfirmed(t *testing.T) {
	r, db := setupWebhookTest(t)
	seedPendingDeposit(t, db, 2, "charge-1", domain.CurrencyUSD, "300")

	body := []byte(`{"event":{"type":"charge:confirmed","data":{"id":"charge-1"}}}`)
	w := postWebhook(r, "/webhooks/coinbase", "X-CC-Webhook-Signature", sign(testCoinbaseSecret, body), body)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, usdBalance(t, db, 2).Equal(decimal.NewFromInt(300)))
}

func TestCoinbaseWebhookIgnoresOtherEvents(t *testing.T) {
	r, db := setupWebhookTest(t)
	seedPendingDeposit(t, db, 2, "charge-2", domain.CurrencyUSD, "300")

	body := []byte(`{"event":{"type":"charge:created","data":{"id":"charge-2"}}}`)
	w := postWebhook(r, "/webhooks/coinbase", "X-CC-Webhook-Signature", sign(testCoinbaseSecret, body), body)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, usdBalance(t, db, 2).IsZero())
}

func TestCoinbaseWebhookBadSignature(t *testing.T) {
	r, db := setupWebhookTest(t)
	seedPendingDeposit(t, db, 2, "charge-3", domain.CurrencyUSD, "300")

	body := []byte(`{"event":{"type":"charge:confirmed","data":{"id":"charge-3"}}}`)
	w := postWebhook(r, "/webhooks/coinbase", "X-CC-Webhook-Signature", sign("wrong", body), body)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.True(t, usdBalance(t, db, 2).IsZero())
}
