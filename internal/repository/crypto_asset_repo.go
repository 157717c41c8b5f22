package repository

import (
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"vexchange/internal/models"
)

type CryptoAssetRepository struct {
	db *gorm.DB
}

func NewCryptoAssetRepository(db *gorm.DB) *CryptoAssetRepository {
	return &CryptoAssetRepository{db: db}
}

func (r *CryptoAssetRepository) GetBySymbol(symbol string) (*models.CryptoAsset, error) {
	var a models.CryptoAsset
	if err := r.db.Where("symbol = ? AND is_active = ?", strings.ToUpper(symbol), true).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *CryptoAssetRepository) GetByID(id uint) (*models.CryptoAsset, error) {
	var a models.CryptoAsset
	if err := r.db.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *CryptoAssetRepository) ListActive() ([]models.CryptoAsset, error) {
	var assets []models.CryptoAsset
	err := r.db.Where("is_active = ?", true).Order("symbol ASC").Find(&assets).Error
	return assets, err
}

func (r *CryptoAssetRepository) UpdatePrice(id uint, price decimal.Decimal) (*models.CryptoAsset, error) {
	if err := r.db.Model(&models.CryptoAsset{}).Where("id = ?", id).
		Update("price", price).Error; err != nil {
		return nil, err
	}
	return r.GetByID(id)
}
