package repository

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"vexchange/internal/domain"
	"vexchange/internal/models"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUserID(userID uint) (*models.Wallet, error) {
	return getWallet(r.db, userID)
}

// GetOrCreate lazily creates the wallet on first reference. The unique index
// on user_id makes the create race-safe: if a concurrent request wins the
// insert, ours fails and we re-read the winner's row.
func (r *WalletRepository) GetOrCreate(userID uint) (*models.Wallet, error) {
	return getOrCreateWallet(r.db, userID)
}

// GetOrCreateTx is GetOrCreate on an open transaction handle.
func (r *WalletRepository) GetOrCreateTx(tx *gorm.DB, userID uint) (*models.Wallet, error) {
	return getOrCreateWallet(tx, userID)
}

// GetByUserIDTx is GetByUserID on an open transaction handle.
func (r *WalletRepository) GetByUserIDTx(tx *gorm.DB, userID uint) (*models.Wallet, error) {
	return getWallet(tx, userID)
}

func getWallet(db *gorm.DB, userID uint) (*models.Wallet, error) {
	var w models.Wallet
	if err := db.Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func getOrCreateWallet(db *gorm.DB, userID uint) (*models.Wallet, error) {
	w, err := getWallet(db, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w = &models.Wallet{UserID: userID}
	if createErr := db.Create(w).Error; createErr != nil {
		// Lost the insert race; the row exists now.
		return getWallet(db, userID)
	}
	return w, nil
}

// Credit applies an unconditional atomic increment to one balance column.
// Callers outside a settlement transaction must not use this directly.
func (r *WalletRepository) Credit(tx *gorm.DB, walletID uint, currency string, amount decimal.Decimal) error {
	col, ok := models.BalanceColumn(currency)
	if !ok {
		return domain.ErrInvalidCurrency
	}
	return tx.Model(&models.Wallet{}).Where("id = ?", walletID).
		UpdateColumn(col, gorm.Expr(col+" + ?", amount)).Error
}

// Debit decrements a balance column without a sufficiency guard. Settlement
// uses it for trade approvals, which do not re-check funds.
func (r *WalletRepository) Debit(tx *gorm.DB, walletID uint, currency string, amount decimal.Decimal) error {
	col, ok := models.BalanceColumn(currency)
	if !ok {
		return domain.ErrInvalidCurrency
	}
	return tx.Model(&models.Wallet{}).Where("id = ?", walletID).
		UpdateColumn(col, gorm.Expr(col+" - ?", amount)).Error
}

// DebitIfSufficient decrements a balance column only while it covers the
// amount. The WHERE guard makes the check-and-debit a single atomic statement,
// so a racing settlement cannot slip the balance below zero here.
func (r *WalletRepository) DebitIfSufficient(tx *gorm.DB, walletID uint, currency string, amount decimal.Decimal) error {
	col, ok := models.BalanceColumn(currency)
	if !ok {
		return domain.ErrInvalidCurrency
	}
	res := tx.Model(&models.Wallet{}).
		Where("id = ? AND "+col+" >= ?", walletID, amount).
		UpdateColumn(col, gorm.Expr(col+" - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}

func (r *WalletRepository) List() ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := r.db.Order("updated_at DESC").Find(&wallets).Error
	return wallets, err
}
