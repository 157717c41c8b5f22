package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"vexchange/internal/domain"
	"vexchange/internal/models"
	"vexchange/internal/repository"
)

// SettlementService is the only component that mutates wallet balances or
// completes transactions. Every operation runs inside a single database
// transaction: the status flip, the balance increments and the audit insert
// commit together or not at all.
//
// At-most-once is enforced by compare-and-set status flips (pending guards in
// the UPDATE), not by read-then-write: a concurrent duplicate settles zero
// rows and backs out before touching any balance.
type SettlementService struct {
	db           *gorm.DB
	wallets      *repository.WalletRepository
	trades       *repository.TradeRepository
	transactions *repository.TransactionRepository
	log          *logrus.Logger
}

func NewSettlementService(
	db *gorm.DB,
	wallets *repository.WalletRepository,
	trades *repository.TradeRepository,
	transactions *repository.TransactionRepository,
	log *logrus.Logger,
) *SettlementService {
	return &SettlementService{db: db, wallets: wallets, trades: trades, transactions: transactions, log: log}
}

// SettleTradeApproval applies an approved trade to the owner's wallet using
// only the amounts stored on the trade at order time. Funds are not
// re-validated here: a sell whose backing balance moved after order creation
// is still applied, which can drive the balance negative. Reviewers who do not
// want that outcome reject the trade instead.
func (s *SettlementService) SettleTradeApproval(tradeID uint, deliveredCode string) (*models.Trade, error) {
	var settled models.Trade
	err := s.db.Transaction(func(tx *gorm.DB) error {
		trade, err := s.trades.GetByIDTx(tx, tradeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrTradeNotFound
			}
			return err
		}
		if trade.Status != domain.TradeStatusPending {
			return domain.ErrTradeAlreadyProcessed
		}

		code := ""
		if trade.AssetClass == domain.AssetClassGiftCard && trade.Side == domain.TradeSideBuy {
			code = strings.TrimSpace(deliveredCode)
		}

		// Claim the trade first. A racing approval loses the CAS and aborts
		// before any balance is touched.
		ok, err := s.trades.MarkApproved(tx, trade.ID, code)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrTradeAlreadyProcessed
		}

		wallet, err := s.wallets.GetOrCreateTx(tx, trade.UserID)
		if err != nil {
			return err
		}
		if err := s.applyTrade(tx, wallet, trade); err != nil {
			return err
		}

		txCurrency := domain.CurrencyUSD
		if trade.AssetClass == domain.AssetClassCrypto {
			txCurrency = strings.ToLower(trade.Asset)
		}
		audit := &models.Transaction{
			UserID:      trade.UserID,
			Type:        domain.TxTypeTrade,
			Category:    trade.AssetClass,
			Amount:      trade.Amount,
			Currency:    txCurrency,
			Status:      domain.TxStatusCompleted,
			TradeID:     &trade.ID,
			Description: Describe(trade),
		}
		if err := s.transactions.CreateTx(tx, audit); err != nil {
			return err
		}

		settled = *trade
		settled.Status = domain.TradeStatusApproved
		settled.DeliveredCode = code
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"trade_id": settled.ID,
		"user_id":  settled.UserID,
		"side":     settled.Side,
		"asset":    settled.Asset,
		"total":    settled.Total.String(),
	}).Info("trade settled")
	return &settled, nil
}

func (s *SettlementService) applyTrade(tx *gorm.DB, wallet *models.Wallet, trade *models.Trade) error {
	switch trade.AssetClass {
	case domain.AssetClassCrypto:
		asset := strings.ToLower(trade.Asset)
		if trade.Side == domain.TradeSideBuy {
			if err := s.wallets.Debit(tx, wallet.ID, domain.CurrencyUSD, trade.Total); err != nil {
				return err
			}
			return s.wallets.Credit(tx, wallet.ID, asset, trade.Amount)
		}
		if err := s.wallets.Debit(tx, wallet.ID, asset, trade.Amount); err != nil {
			return err
		}
		return s.wallets.Credit(tx, wallet.ID, domain.CurrencyUSD, trade.Total)
	case domain.AssetClassGiftCard:
		if trade.Side == domain.TradeSideBuy {
			return s.wallets.Debit(tx, wallet.ID, domain.CurrencyUSD, trade.Total)
		}
		return s.wallets.Credit(tx, wallet.ID, domain.CurrencyUSD, trade.Total)
	}
	return fmt.Errorf("unknown asset class %q on trade %d", trade.AssetClass, trade.ID)
}

// RejectTrade flips a pending trade to rejected with the reviewer's notes.
// No wallet or transaction writes: order creation never debited anything, so
// rejection has nothing to refund.
func (s *SettlementService) RejectTrade(tradeID uint, notes string) (*models.Trade, error) {
	var rejected models.Trade
	err := s.db.Transaction(func(tx *gorm.DB) error {
		trade, err := s.trades.GetByIDTx(tx, tradeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrTradeNotFound
			}
			return err
		}
		if trade.Status != domain.TradeStatusPending {
			return domain.ErrTradeAlreadyProcessed
		}
		ok, err := s.trades.MarkRejected(tx, trade.ID, notes)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrTradeAlreadyProcessed
		}
		rejected = *trade
		rejected.Status = domain.TradeStatusRejected
		rejected.AdminNotes = notes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rejected, nil
}

// SettleExternalPayment credits the wallet for a confirmed provider payment,
// exactly once per paymentID. Redelivered webhooks and double confirms return
// the already-settled transaction together with ErrDuplicatePayment, which
// callers treat as success.
func (s *SettlementService) SettleExternalPayment(paymentID string) (*models.Transaction, error) {
	var settled models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		t, err := s.transactions.GetByPaymentID(tx, paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrPendingPaymentNotFound
			}
			return err
		}
		if t.Status == domain.TxStatusCompleted {
			settled = *t
			return domain.ErrDuplicatePayment
		}
		if t.Status != domain.TxStatusPending {
			return domain.ErrPendingPaymentNotFound
		}
		if !domain.IsSupportedCurrency(t.Currency) {
			return domain.ErrInvalidCurrency
		}

		desc := fmt.Sprintf("Deposit %s %s", t.Amount.String(), strings.ToUpper(t.Currency))
		ok, err := s.transactions.MarkCompleted(tx, t.ID, desc)
		if err != nil {
			return err
		}
		if !ok {
			settled = *t
			return domain.ErrDuplicatePayment
		}

		wallet, err := s.wallets.GetOrCreateTx(tx, t.UserID)
		if err != nil {
			return err
		}
		if err := s.wallets.Credit(tx, wallet.ID, t.Currency, t.Amount); err != nil {
			return err
		}

		settled = *t
		settled.Status = domain.TxStatusCompleted
		settled.Description = desc
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicatePayment) {
			s.log.WithField("payment_id", paymentID).Info("duplicate payment delivery ignored")
			return &settled, domain.ErrDuplicatePayment
		}
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"user_id":    settled.UserID,
		"currency":   settled.Currency,
		"amount":     settled.Amount.String(),
	}).Info("external payment settled")
	return &settled, nil
}

// Withdraw debits the wallet after an atomic sufficiency check and records a
// completed withdrawal transaction.
func (s *SettlementService) Withdraw(userID uint, currency string, amount decimal.Decimal) (*models.Wallet, error) {
	if !domain.IsSupportedCurrency(currency) {
		return nil, domain.ErrInvalidCurrency
	}
	if amount.LessThan(domain.MinDepositAmount) {
		return nil, domain.ErrInvalidAmount
	}
	var wallet models.Wallet
	err := s.db.Transaction(func(tx *gorm.DB) error {
		w, err := s.wallets.GetByUserIDTx(tx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrWalletNotFound
			}
			return err
		}
		if err := s.wallets.DebitIfSufficient(tx, w.ID, currency, amount); err != nil {
			return err
		}
		audit := &models.Transaction{
			UserID:      userID,
			Type:        domain.TxTypeWithdrawal,
			Category:    domain.TxCategoryWallet,
			Amount:      amount,
			Currency:    currency,
			Status:      domain.TxStatusCompleted,
			Description: fmt.Sprintf("Withdrawal %s %s", amount.String(), strings.ToUpper(currency)),
		}
		if err := s.transactions.CreateTx(tx, audit); err != nil {
			return err
		}
		fresh, err := s.wallets.GetByUserIDTx(tx, userID)
		if err != nil {
			return err
		}
		wallet = *fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Deposit credits the wallet unconditionally and records a completed deposit
// transaction. This is the direct path (admin funding, dev deposits);
// provider-confirmed money goes through SettleExternalPayment instead.
func (s *SettlementService) Deposit(userID uint, currency string, amount decimal.Decimal, description string) (*models.Wallet, error) {
	if !domain.IsSupportedCurrency(currency) {
		return nil, domain.ErrInvalidCurrency
	}
	if amount.LessThan(domain.MinDepositAmount) {
		return nil, domain.ErrInvalidAmount
	}
	if description == "" {
		description = fmt.Sprintf("Deposit %s %s", amount.String(), strings.ToUpper(currency))
	}
	var wallet models.Wallet
	err := s.db.Transaction(func(tx *gorm.DB) error {
		w, err := s.wallets.GetOrCreateTx(tx, userID)
		if err != nil {
			return err
		}
		if err := s.wallets.Credit(tx, w.ID, currency, amount); err != nil {
			return err
		}
		audit := &models.Transaction{
			UserID:      userID,
			Type:        domain.TxTypeDeposit,
			Category:    domain.TxCategoryWallet,
			Amount:      amount,
			Currency:    currency,
			Status:      domain.TxStatusCompleted,
			Description: description,
		}
		if err := s.transactions.CreateTx(tx, audit); err != nil {
			return err
		}
		fresh, err := s.wallets.GetByUserIDTx(tx, userID)
		if err != nil {
			return err
		}
		wallet = *fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}
