package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"vexchange/config"
	"vexchange/internal/domain"
	"vexchange/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type PaymentWebhookHandler struct {
	cfg        *config.Config
	settlement *service.SettlementService
	log        *logrus.Logger
}

func NewPaymentWebhookHandler(cfg *config.Config, settlement *service.SettlementService, log *logrus.Logger) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{cfg: cfg, settlement: settlement, log: log}
}

// Handle is the generic provider webhook. The signature is HMAC-SHA256 over
// the raw body, hex encoded in X-Webhook-Signature. A bad signature gets 401
// and no side effects; deliveries for unknown or already-settled references
// are acknowledged with 200 so providers stop retrying. Verification fails
// closed: with no secret configured, every event is rejected.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if h.cfg.Payment.WebhookSecret == "" {
		h.log.Error("payment webhook secret not configured, rejecting event")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "webhook not configured"})
		return
	}
	if !verifyHMAC(h.cfg.Payment.WebhookSecret, body, c.GetHeader("X-Webhook-Signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var payload struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if payload.Reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference required"})
		return
	}
	if !strings.EqualFold(payload.Status, "completed") {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	h.settle(c, payload.Reference)
}

// HandleCoinbase verifies Coinbase Commerce's X-CC-Webhook-Signature and
// settles on charge:confirmed events. Other event types are acknowledged and
// ignored.
func (h *PaymentWebhookHandler) HandleCoinbase(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if h.cfg.Coinbase.WebhookSecret == "" {
		h.log.Error("coinbase webhook secret not configured, rejecting event")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "webhook not configured"})
		return
	}
	if !verifyHMAC(h.cfg.Coinbase.WebhookSecret, body, c.GetHeader("X-CC-Webhook-Signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var payload struct {
		Event struct {
			Type string `json:"type"`
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"event"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if payload.Event.Type != "charge:confirmed" || payload.Event.Data.ID == "" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	h.settle(c, payload.Event.Data.ID)
}

// HandleStripe verifies the Stripe-Signature header (v1 is HMAC-SHA256 over
// "<t>.<body>") and settles on paid checkout.session.completed events. The
// session's client_reference_id carries our payment reference back.
func (h *PaymentWebhookHandler) HandleStripe(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if h.cfg.Stripe.WebhookSecret == "" {
		h.log.Error("stripe webhook secret not configured, rejecting event")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "webhook not configured"})
		return
	}
	if !verifyStripeSignature(h.cfg.Stripe.WebhookSecret, body, c.GetHeader("Stripe-Signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var payload struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ClientReferenceID string `json:"client_reference_id"`
				PaymentStatus     string `json:"payment_status"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if payload.Type != "checkout.session.completed" ||
		payload.Data.Object.ClientReferenceID == "" ||
		payload.Data.Object.PaymentStatus != "paid" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	h.settle(c, payload.Data.Object.ClientReferenceID)
}

func (h *PaymentWebhookHandler) settle(c *gin.Context, reference string) {
	_, err := h.settlement.SettleExternalPayment(reference)
	switch {
	case err == nil, errors.Is(err, domain.ErrDuplicatePayment):
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, domain.ErrPendingPaymentNotFound):
		// Not our payment; ack so the provider stops retrying.
		c.JSON(http.StatusOK, gin.H{"received": true})
	default:
		h.log.WithError(err).WithField("reference", reference).Error("webhook settlement failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement failed"})
	}
}

func verifyHMAC(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// verifyStripeSignature checks a "t=<ts>,v1=<sig>[,v1=<sig>...]" header. Any
// matching v1 candidate accepts the event.
func verifyStripeSignature(secret string, body []byte, header string) bool {
	var timestamp string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if secret == "" || timestamp == "" || len(candidates) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, sig := range candidates {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}
