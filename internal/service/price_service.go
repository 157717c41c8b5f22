package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"vexchange/internal/domain"
	"vexchange/internal/repository"
	"vexchange/pkg/pricing"
)

// LiveMarket is the live side of the price oracle.
type LiveMarket interface {
	Markets(ctx context.Context, perPage int, sparkline bool) ([]pricing.Coin, error)
	Price(ctx context.Context, symbol string) (float64, bool, error)
}

// PriceService resolves unit prices for the trade engine: live market first,
// admin-maintained asset rows as fallback. It never invents a price.
type PriceService struct {
	live   LiveMarket
	assets *repository.CryptoAssetRepository
	log    *logrus.Logger
}

func NewPriceService(live LiveMarket, assets *repository.CryptoAssetRepository, log *logrus.Logger) *PriceService {
	return &PriceService{live: live, assets: assets, log: log}
}

// GetPrice returns the current USD unit price for a symbol.
//
// Resolution order: live feed, then the seeded asset row. A symbol unknown to
// both yields ErrAssetNotFound; a live-feed outage with no seeded price yields
// ErrPriceUnavailable.
func (s *PriceService) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	live, found, liveErr := s.live.Price(ctx, symbol)
	if liveErr == nil && found && live > 0 {
		return decimal.NewFromFloat(live), nil
	}
	if liveErr != nil {
		s.log.WithError(liveErr).WithField("symbol", symbol).Warn("live price lookup failed, trying seeded assets")
	}

	asset, dbErr := s.assets.GetBySymbol(symbol)
	if dbErr == nil && asset.Price.IsPositive() {
		return asset.Price, nil
	}
	if dbErr != nil && !errors.Is(dbErr, gorm.ErrRecordNotFound) {
		return decimal.Zero, dbErr
	}

	if liveErr != nil {
		return decimal.Zero, domain.ErrPriceUnavailable
	}
	return decimal.Zero, domain.ErrAssetNotFound
}

// Markets returns the live market list, falling back to seeded assets when
// the feed is down. The bool reports whether the data is live.
func (s *PriceService) Markets(ctx context.Context, perPage int, sparkline bool) ([]pricing.Coin, bool, error) {
	coins, err := s.live.Markets(ctx, perPage, sparkline)
	if err == nil {
		return coins, true, nil
	}
	s.log.WithError(err).Warn("live market fetch failed, serving seeded assets")

	assets, dbErr := s.assets.ListActive()
	if dbErr != nil {
		return nil, false, domain.ErrPriceUnavailable
	}
	coins = make([]pricing.Coin, 0, len(assets))
	for _, a := range assets {
		price, _ := a.Price.Float64()
		change, _ := a.Change24h.Float64()
		volume, _ := a.Volume24h.Float64()
		coins = append(coins, pricing.Coin{
			Symbol:    strings.ToUpper(a.Symbol),
			Name:      a.Name,
			Price:     price,
			Change24h: change,
			Volume24h: volume,
		})
	}
	return coins, false, nil
}
