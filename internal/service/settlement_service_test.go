package service

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"vexchange/internal/domain"
	"vexchange/internal/models"
	"vexchange/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:settlement_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Trade{},
		&models.Transaction{},
		&models.CryptoAsset{},
		&models.GiftCard{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newSettlement(db *gorm.DB) *SettlementService {
	return NewSettlementService(
		db,
		repository.NewWalletRepository(db),
		repository.NewTradeRepository(db),
		repository.NewTransactionRepository(db),
		testLogger(),
	)
}

func seedWallet(t *testing.T, db *gorm.DB, userID uint, usd, btc string) *models.Wallet {
	t.Helper()
	w := &models.Wallet{
		UserID:     userID,
		BalanceUSD: decimal.RequireFromString(usd),
		BalanceBTC: decimal.RequireFromString(btc),
	}
	if err := db.Create(w).Error; err != nil {
		t.Fatalf("seed wallet failed: %v", err)
	}
	return w
}

func seedTrade(t *testing.T, db *gorm.DB, trade *models.Trade) *models.Trade {
	t.Helper()
	if trade.Status == "" {
		trade.Status = domain.TradeStatusPending
	}
	if err := db.Create(trade).Error; err != nil {
		t.Fatalf("seed trade failed: %v", err)
	}
	return trade
}

func walletOf(t *testing.T, db *gorm.DB, userID uint) *models.Wallet {
	t.Helper()
	var w models.Wallet
	if err := db.Where("user_id = ?", userID).First(&w).Error; err != nil {
		t.Fatalf("wallet lookup failed: %v", err)
	}
	return &w
}

func mustEqual(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: got %s, want %s", label, got.String(), want)
	}
}

func TestSettleCryptoBuyMovesFunds(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	seedWallet(t, db, 1, "1000", "0")
	trade := seedTrade(t, db, &models.Trade{
		UserID:     1,
		AssetClass: domain.AssetClassCrypto,
		Side:       domain.TradeSideBuy,
		Asset:      "BTC",
		Amount:     decimal.RequireFromString("0.01"),
		Price:      decimal.NewFromInt(50000),
		Total:      decimal.NewFromInt(500),
	})

	settled, err := svc.SettleTradeApproval(trade.ID, "")
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if settled.Status != domain.TradeStatusApproved {
		t.Fatalf("status: got %s, want approved", settled.Status)
	}

	w := walletOf(t, db, 1)
	mustEqual(t, w.BalanceUSD, "500", "usd balance")
	mustEqual(t, w.BalanceBTC, "0.01", "btc balance")

	var audit models.Transaction
	if err := db.Where("trade_id = ?", trade.ID).First(&audit).Error; err != nil {
		t.Fatalf("audit transaction missing: %v", err)
	}
	if audit.Status != domain.TxStatusCompleted || audit.Type != domain.TxTypeTrade {
		t.Fatalf("audit row: got status=%s type=%s", audit.Status, audit.Type)
	}
	if audit.Currency != "btc" {
		t.Fatalf("audit currency: got %s, want btc", audit.Currency)
	}
}

func TestSettleCryptoSellMovesFunds(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	seedWallet(t, db, 1, "0", "0.5")
	trade := seedTrade(t, db, &models.Trade{
		UserID:     1,
		AssetClass: domain.AssetClassCrypto,
		Side:       domain.TradeSideSell,
		Asset:      "BTC",
		Amount:     decimal.RequireFromString("0.2"),
		Price:      decimal.NewFromInt(40000),
		Total:      decimal.NewFromInt(8000),
	})

	if _, err := svc.SettleTradeApproval(trade.ID, ""); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	w := walletOf(t, db, 1)
	mustEqual(t, w.BalanceBTC, "0.3", "btc balance")
	mustEqual(t, w.BalanceUSD, "8000", "usd balance")
}

func TestSettleGiftCardBuyDebitsAndDeliversCode(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	seedWallet(t, db, 1, "200", "0")
	trade := seedTrade(t, db, &models.Trade{
		UserID:     1,
		AssetClass: domain.AssetClassGiftCard,
		Side:       domain.TradeSideBuy,
		Asset:      "Amazon",
		Amount:     decimal.NewFromInt(100),
		Price:      decimal.NewFromInt(98),
		Total:      decimal.NewFromInt(98),
	})

	settled, err := svc.SettleTradeApproval(trade.ID, "AMZN-1234-5678")
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if settled.DeliveredCode != "AMZN-1234-5678" {
		t.Fatalf("delivered code: got %q", settled.DeliveredCode)
	}
	w := walletOf(t, db, 1)
	mustEqual(t, w.BalanceUSD, "102", "usd balance")
	mustEqual(t, w.BalanceBTC, "0", "btc balance")

	var stored models.Trade
	if err := db.First(&stored, trade.ID).Error; err != nil {
		t.Fatalf("trade reload failed: %v", err)
	}
	if stored.DeliveredCode != "AMZN-1234-5678" {
		t.Fatalf("stored delivered code: got %q", stored.DeliveredCode)
	}
}

func TestSettleGiftCardSellCreditsPayout(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	seedWallet(t, db, 1, "10", "0")
	trade := seedTrade(t, db, &models.Trade{
		UserID:       1,
		AssetClass:   domain.AssetClassGiftCard,
		Side:         domain.TradeSideSell,
		Asset:        "Steam",
		Amount:       decimal.NewFromInt(50),
		Price:        decimal.NewFromInt(89),
		Total:        decimal.RequireFromString("44.5"),
		GiftCardCode: "STEAM-0001",
	})

	if _, err := svc.SettleTradeApproval(trade.ID, ""); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	w := walletOf(t, db, 1)
	mustEqual(t, w.BalanceUSD, "54.5", "usd balance")
}

func TestSettleTradeAtMostOnce(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	seedWallet(t, db, 1, "1000", "0")
	trade := seedTrade(t, db, &models.Trade{
		UserID:     1,
		AssetClass: domain.AssetClassCrypto,
		Side:       domain.TradeSideBuy,
		Asset:      "ETH",
		Amount:     decimal.NewFromInt(1),
		Price:      decimal.NewFromInt(300),
		Total:      decimal.NewFromInt(300),
	})

	if _, err := svc.SettleTradeApproval(trade.ID, ""); err != nil {
		t.Fatalf("first settle failed: %v", err)
	}
	if _, err := svc.SettleTradeApproval(trade.ID, ""); !errors.Is(err, domain.ErrTradeAlreadyProcessed) {
		t.Fatalf("second settle: got %v, want ErrTradeAlreadyProcessed", err)
	}
	if _, err := svc.RejectTrade(trade.ID, "late"); !errors.Is(err, domain.ErrTradeAlreadyProcessed) {
		t.Fatalf("reject after settle: got %v, want ErrTradeAlreadyProcessed", err)
	}

	w := walletOf(t, db, 1)
	mustEqual(t, w.BalanceUSD, "700", "usd balance")
	mustEqual(t, w.BalanceETH, "1", "eth balance")

	var audits int64
	db.Model(&models.Transaction{}).Where("trade_id = ?", trade.ID).Count(&audits)
	if audits != 1 {
		t.Fatalf("audit rows: got %d, want 1", audits)
	}
}

func TestSettleUnknownTrade(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	if _, err := svc.SettleTradeApproval(9999, ""); !errors.Is(err, domain.ErrTradeNotFound) {
		t.Fatalf("got %v, want ErrTradeNotFound", err)
	}
}

func TestRejectTradeLeavesBalancesAlone(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	seedWallet(t, db, 1, "100", "0")
	trade := seedTrade(t, db, &models.Trade{
		UserID:     1,
		AssetClass: domain.AssetClassCrypto,
		Side:       domain.TradeSideBuy,
		Asset:      "BTC",
		Amount:     decimal.RequireFromString("0.001"),
		Price:      decimal.NewFromInt(50000),
		Total:      decimal.NewFromInt(50),
	})

	rejected, err := svc.RejectTrade(trade.ID, "suspicious volume")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != domain.TradeStatusRejected || rejected.AdminNotes != "suspicious volume" {
		t.Fatalf("rejected row: status=%s notes=%q", rejected.Status, rejected.AdminNotes)
	}
	w := walletOf(t, db, 1)
	mustEqual(t, w.BalanceUSD, "100", "usd balance")

	var audits int64
	db.Model(&models.Transaction{}).Where("trade_id = ?", trade.ID).Count(&audits)
	if audits != 0 {
		t.Fatalf("audit rows after reject: got %d, want 0", audits)
	}
}

// Settlement trusts the amounts frozen on the pending trade and does not
// re-check funds, so a balance that moved between order and approval can go
// negative.
func TestSettleSellWithoutBackingGoesNegative(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	seedWallet(t, db, 1, "0", "0.1")
	trade := seedTrade(t, db, &models.Trade{
		UserID:     1,
		AssetClass: domain.AssetClassCrypto,
		Side:       domain.TradeSideSell,
		Asset:      "BTC",
		Amount:     decimal.RequireFromString("0.5"),
		Price:      decimal.NewFromInt(10000),
		Total:      decimal.NewFromInt(5000),
	})

	if _, err := svc.SettleTradeApproval(trade.ID, ""); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	w := walletOf(t, db, 1)
	mustEqual(t, w.BalanceBTC, "-0.4", "btc balance")
	mustEqual(t, w.BalanceUSD, "5000", "usd balance")
}

// A settled buy leaves exactly the proceeds available: withdrawing more than
// the remainder fails and changes nothing.
func TestBuySettlementThenOverdraw(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	seedWallet(t, db, 1, "1000", "0")
	trade := seedTrade(t, db, &models.Trade{
		UserID:     1,
		AssetClass: domain.AssetClassCrypto,
		Side:       domain.TradeSideBuy,
		Asset:      "BTC",
		Amount:     decimal.RequireFromString("0.01"),
		Price:      decimal.NewFromInt(50000),
		Total:      decimal.NewFromInt(500),
	})
	if _, err := svc.SettleTradeApproval(trade.ID, ""); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	if _, err := svc.Withdraw(1, domain.CurrencyUSD, decimal.NewFromInt(600)); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("overdraw: got %v, want ErrInsufficientFunds", err)
	}
	w := walletOf(t, db, 1)
	mustEqual(t, w.BalanceUSD, "500", "usd balance")
	mustEqual(t, w.BalanceBTC, "0.01", "btc balance")
}

// The buy-side funds check happens at order time only. If the USD balance
// drops before approval, settlement still applies the stored total.
func TestSettleBuyAfterBalanceMovedGoesNegative(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	seedWallet(t, db, 1, "500", "0")
	trade := seedTrade(t, db, &models.Trade{
		UserID:     1,
		AssetClass: domain.AssetClassCrypto,
		Side:       domain.TradeSideBuy,
		Asset:      "BTC",
		Amount:     decimal.RequireFromString("0.01"),
		Price:      decimal.NewFromInt(50000),
		Total:      decimal.NewFromInt(500),
	})

	// Balance moves between order and approval.
	if _, err := svc.Withdraw(1, domain.CurrencyUSD, decimal.NewFromInt(400)); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if _, err := svc.SettleTradeApproval(trade.ID, ""); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	w := walletOf(t, db, 1)
	mustEqual(t, w.BalanceUSD, "-400", "usd balance")
	mustEqual(t, w.BalanceBTC, "0.01", "btc balance")
}

// sqlite allows one writer at a time. A single pooled connection makes the
// racing goroutines queue at the pool instead of surfacing busy errors, while
// leaving their ordering unconstrained.
func limitToSingleConn(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
}

// Two approvals and a withdrawal hit the same wallet from separate goroutines.
// Whatever the interleaving, the final balances must equal the sequential
// result and every operation must leave exactly one audit row.
func TestConcurrentSettlementsKeepBalancesConsistent(t *testing.T) {
	db := setupTestDB(t)
	limitToSingleConn(t, db)
	svc := newSettlement(db)
	seedWallet(t, db, 1, "1000", "0")
	first := seedTrade(t, db, &models.Trade{
		UserID:     1,
		AssetClass: domain.AssetClassCrypto,
		Side:       domain.TradeSideBuy,
		Asset:      "BTC",
		Amount:     decimal.RequireFromString("0.006"),
		Price:      decimal.NewFromInt(50000),
		Total:      decimal.NewFromInt(300),
	})
	second := seedTrade(t, db, &models.Trade{
		UserID:     1,
		AssetClass: domain.AssetClassCrypto,
		Side:       domain.TradeSideBuy,
		Asset:      "BTC",
		Amount:     decimal.RequireFromString("0.004"),
		Price:      decimal.NewFromInt(50000),
		Total:      decimal.NewFromInt(200),
	})

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	wg.Add(3)
	go func() {
		defer wg.Done()
		_, err := svc.SettleTradeApproval(first.ID, "")
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := svc.SettleTradeApproval(second.ID, "")
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := svc.Withdraw(1, domain.CurrencyUSD, decimal.NewFromInt(100))
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent operation failed: %v", err)
		}
	}

	w := walletOf(t, db, 1)
	mustEqual(t, w.BalanceUSD, "400", "usd balance")
	mustEqual(t, w.BalanceBTC, "0.01", "btc balance")

	var tradeAudits int64
	db.Model(&models.Transaction{}).Where("type = ?", domain.TxTypeTrade).Count(&tradeAudits)
	if tradeAudits != 2 {
		t.Fatalf("trade audit rows: got %d, want 2", tradeAudits)
	}
	var withdrawals int64
	db.Model(&models.Transaction{}).Where("type = ?", domain.TxTypeWithdrawal).Count(&withdrawals)
	if withdrawals != 1 {
		t.Fatalf("withdrawal audit rows: got %d, want 1", withdrawals)
	}
}

// Two goroutines race to settle the same trade. The status flip admits exactly
// one of them; the loser backs out before touching the wallet.
func TestConcurrentDoubleSettleAppliesOnce(t *testing.T) {
	db := setupTestDB(t)
	limitToSingleConn(t, db)
	svc := newSettlement(db)
	seedWallet(t, db, 1, "1000", "0")
	trade := seedTrade(t, db, &models.Trade{
		UserID:     1,
		AssetClass: domain.AssetClassCrypto,
		Side:       domain.TradeSideBuy,
		Asset:      "BTC",
		Amount:     decimal.RequireFromString("0.01"),
		Price:      decimal.NewFromInt(50000),
		Total:      decimal.NewFromInt(500),
	})

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SettleTradeApproval(trade.ID, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	won, lost := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, domain.ErrTradeAlreadyProcessed):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Fatalf("outcomes: won=%d lost=%d, want 1/1", won, lost)
	}

	w := walletOf(t, db, 1)
	mustEqual(t, w.BalanceUSD, "500", "usd balance")
	mustEqual(t, w.BalanceBTC, "0.01", "btc balance")
	var audits int64
	db.Model(&models.Transaction{}).Where("trade_id = ?", trade.ID).Count(&audits)
	if audits != 1 {
		t.Fatalf("audit rows: got %d, want 1", audits)
	}
}

func TestSettleExternalPaymentCreditsOnce(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	seedWallet(t, db, 1, "0", "0")
	ref := "pay-abc123"
	pending := &models.Transaction{
		UserID:    1,
		Type:      domain.TxTypeDeposit,
		Category:  domain.TxCategoryWallet,
		Amount:    decimal.NewFromInt(250),
		Currency:  domain.CurrencyUSD,
		Status:    domain.TxStatusPending,
		PaymentID: &ref,
	}
	if err := db.Create(pending).Error; err != nil {
		t.Fatalf("seed transaction failed: %v", err)
	}

	settled, err := svc.SettleExternalPayment(ref)
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if settled.Status != domain.TxStatusCompleted {
		t.Fatalf("status: got %s", settled.Status)
	}
	mustEqual(t, walletOf(t, db, 1).BalanceUSD, "250", "usd after settle")

	// Redelivery must be success-shaped and must not credit again.
	again, err := svc.SettleExternalPayment(ref)
	if !errors.Is(err, domain.ErrDuplicatePayment) {
		t.Fatalf("redelivery: got %v, want ErrDuplicatePayment", err)
	}
	if again == nil || again.ID != settled.ID {
		t.Fatalf("redelivery should return the settled row")
	}
	mustEqual(t, walletOf(t, db, 1).BalanceUSD, "250", "usd after redelivery")
}

func TestSettleExternalPaymentUnknownReference(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	if _, err := svc.SettleExternalPayment("pay-missing"); !errors.Is(err, domain.ErrPendingPaymentNotFound) {
		t.Fatalf("got %v, want ErrPendingPaymentNotFound", err)
	}
}

func TestSettleExternalPaymentCreatesWalletOnDemand(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	ref := "dep-first"
	pending := &models.Transaction{
		UserID:    7,
		Type:      domain.TxTypeDeposit,
		Category:  domain.TxCategoryWallet,
		Amount:    decimal.RequireFromString("0.25"),
		Currency:  domain.CurrencyBTC,
		Status:    domain.TxStatusPending,
		PaymentID: &ref,
	}
	if err := db.Create(pending).Error; err != nil {
		t.Fatalf("seed transaction failed: %v", err)
	}
	if _, err := svc.SettleExternalPayment(ref); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	mustEqual(t, walletOf(t, db, 7).BalanceBTC, "0.25", "btc balance")
}

func TestWithdraw(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	seedWallet(t, db, 1, "100", "0")

	w, err := svc.Withdraw(1, domain.CurrencyUSD, decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	mustEqual(t, w.BalanceUSD, "60", "usd balance")

	var audit models.Transaction
	if err := db.Where("user_id = ? AND type = ?", 1, domain.TxTypeWithdrawal).First(&audit).Error; err != nil {
		t.Fatalf("withdrawal audit missing: %v", err)
	}
	if audit.Status != domain.TxStatusCompleted {
		t.Fatalf("audit status: got %s", audit.Status)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	seedWallet(t, db, 1, "10", "0")

	if _, err := svc.Withdraw(1, domain.CurrencyUSD, decimal.NewFromInt(40)); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	mustEqual(t, walletOf(t, db, 1).BalanceUSD, "10", "usd balance unchanged")

	var audits int64
	db.Model(&models.Transaction{}).Where("user_id = ?", 1).Count(&audits)
	if audits != 0 {
		t.Fatalf("audit rows after failed withdrawal: got %d, want 0", audits)
	}
}

func TestWithdrawValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)
	if _, err := svc.Withdraw(1, "doge", decimal.NewFromInt(1)); !errors.Is(err, domain.ErrInvalidCurrency) {
		t.Fatalf("currency: got %v, want ErrInvalidCurrency", err)
	}
	if _, err := svc.Withdraw(1, domain.CurrencyUSD, decimal.RequireFromString("0.001")); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("amount: got %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.Withdraw(1, domain.CurrencyUSD, decimal.NewFromInt(5)); !errors.Is(err, domain.ErrWalletNotFound) {
		t.Fatalf("missing wallet: got %v, want ErrWalletNotFound", err)
	}
}

func TestDepositRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	svc := newSettlement(db)

	w, err := svc.Deposit(3, domain.CurrencyETH, decimal.NewFromInt(2), "")
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	mustEqual(t, w.BalanceETH, "2", "eth after deposit")

	w, err = svc.Withdraw(3, domain.CurrencyETH, decimal.NewFromInt(2))
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	mustEqual(t, w.BalanceETH, "0", "eth after withdraw")
}
