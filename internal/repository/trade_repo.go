package repository

import (
	"gorm.io/gorm"

	"vexchange/internal/domain"
	"vexchange/internal/models"
)

type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

func (r *TradeRepository) Create(t *models.Trade) error {
	return r.db.Create(t).Error
}

func (r *TradeRepository) GetByID(id uint) (*models.Trade, error) {
	var t models.Trade
	if err := r.db.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TradeRepository) GetByIDTx(tx *gorm.DB, id uint) (*models.Trade, error) {
	var t models.Trade
	if err := tx.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkApproved flips pending → approved as a compare-and-set. Zero rows
// affected means another settlement already processed the trade.
func (r *TradeRepository) MarkApproved(tx *gorm.DB, id uint, deliveredCode string) (bool, error) {
	updates := map[string]interface{}{"status": domain.TradeStatusApproved}
	if deliveredCode != "" {
		updates["delivered_code"] = deliveredCode
	}
	res := tx.Model(&models.Trade{}).
		Where("id = ? AND status = ?", id, domain.TradeStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkRejected flips pending → rejected with admin notes, same CAS guard.
func (r *TradeRepository) MarkRejected(tx *gorm.DB, id uint, notes string) (bool, error) {
	res := tx.Model(&models.Trade{}).
		Where("id = ? AND status = ?", id, domain.TradeStatusPending).
		Updates(map[string]interface{}{"status": domain.TradeStatusRejected, "admin_notes": notes})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListByUser returns a user's trades, optionally filtered by asset class,
// newest first.
func (r *TradeRepository) ListByUser(userID uint, assetClass string) ([]models.Trade, error) {
	q := r.db.Where("user_id = ?", userID)
	if assetClass != "" {
		q = q.Where("asset_class = ?", assetClass)
	}
	var trades []models.Trade
	err := q.Order("created_at DESC").Find(&trades).Error
	return trades, err
}

func (r *TradeRepository) List() ([]models.Trade, error) {
	var trades []models.Trade
	err := r.db.Order("created_at DESC").Find(&trades).Error
	return trades, err
}
