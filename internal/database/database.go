package database

import (
	"vexchange/config"
	"vexchange/internal/domain"
	"vexchange/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Trade{},
		&models.Transaction{},
		&models.CryptoAsset{},
		&models.GiftCard{},
	)
}

// SeedAdmin creates the default admin account if none exists.
func SeedAdmin(db *gorm.DB) {
	var count int64
	db.Model(&models.User{}).Where("role = ?", domain.RoleAdmin).Count(&count)
	if count > 0 {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return
	}
	db.Create(&models.User{
		Name:     "Admin",
		Email:    "admin@vexchange.local",
		Password: string(hash),
		Role:     domain.RoleAdmin,
	})
}

var defaultGiftCards = []models.GiftCard{
	{Brand: "Amazon", Type: "E-Gift Card", FaceValue: decimal.NewFromInt(100), BuyRate: decimal.NewFromInt(98), SellRate: decimal.NewFromInt(92), IsActive: true},
	{Brand: "iTunes", Type: "E-Gift Card", FaceValue: decimal.NewFromInt(100), BuyRate: decimal.NewFromInt(97), SellRate: decimal.NewFromInt(90), IsActive: true},
	{Brand: "Google Play", Type: "E-Gift Card", FaceValue: decimal.NewFromInt(100), BuyRate: decimal.NewFromInt(97), SellRate: decimal.NewFromInt(91), IsActive: true},
	{Brand: "Steam", Type: "E-Gift Card", FaceValue: decimal.NewFromInt(100), BuyRate: decimal.NewFromInt(96), SellRate: decimal.NewFromInt(89), IsActive: true},
	{Brand: "Walmart", Type: "E-Gift Card", FaceValue: decimal.NewFromInt(100), BuyRate: decimal.NewFromInt(97), SellRate: decimal.NewFromInt(90), IsActive: true},
	{Brand: "Target", Type: "E-Gift Card", FaceValue: decimal.NewFromInt(100), BuyRate: decimal.NewFromInt(96), SellRate: decimal.NewFromInt(89), IsActive: true},
}

// SeedGiftCards inserts the default catalog when the table is empty.
func SeedGiftCards(db *gorm.DB) {
	var count int64
	db.Model(&models.GiftCard{}).Count(&count)
	if count > 0 {
		return
	}
	db.Create(&defaultGiftCards)
}

var defaultCryptoAssets = []models.CryptoAsset{
	{Symbol: "BTC", Name: "Bitcoin", IsActive: true},
	{Symbol: "ETH", Name: "Ethereum", IsActive: true},
	{Symbol: "USDT", Name: "Tether", IsActive: true},
}

// SeedCryptoAssets inserts the static asset rows used as the oracle fallback.
// Prices start at zero and are maintained by admins via set-rates.
func SeedCryptoAssets(db *gorm.DB) {
	var count int64
	db.Model(&models.CryptoAsset{}).Count(&count)
	if count > 0 {
		return
	}
	db.Create(&defaultCryptoAssets)
}
