package repository

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"vexchange/internal/models"
)

type GiftCardRepository struct {
	db *gorm.DB
}

func NewGiftCardRepository(db *gorm.DB) *GiftCardRepository {
	return &GiftCardRepository{db: db}
}

func (r *GiftCardRepository) Create(g *models.GiftCard) error {
	return r.db.Create(g).Error
}

func (r *GiftCardRepository) GetByID(id uint) (*models.GiftCard, error) {
	var g models.GiftCard
	if err := r.db.First(&g, id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GiftCardRepository) GetByBrand(brand string) (*models.GiftCard, error) {
	var g models.GiftCard
	if err := r.db.Where("brand = ?", brand).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GiftCardRepository) ListActive() ([]models.GiftCard, error) {
	var cards []models.GiftCard
	err := r.db.Where("is_active = ?", true).Order("brand ASC").Find(&cards).Error
	return cards, err
}

func (r *GiftCardRepository) List() ([]models.GiftCard, error) {
	var cards []models.GiftCard
	err := r.db.Order("brand ASC").Find(&cards).Error
	return cards, err
}

func (r *GiftCardRepository) UpdateRates(id uint, buyRate, sellRate decimal.Decimal) (*models.GiftCard, error) {
	if err := r.db.Model(&models.GiftCard{}).Where("id = ?", id).
		Updates(map[string]interface{}{"buy_rate": buyRate, "sell_rate": sellRate}).Error; err != nil {
		return nil, err
	}
	return r.GetByID(id)
}
