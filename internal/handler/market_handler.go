package handler

import (
	"errors"
	"net/http"
	"strconv"

	"vexchange/internal/domain"
	"vexchange/internal/service"
	"vexchange/pkg/pricing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type MarketHandler struct {
	prices *service.PriceService
	gecko  *pricing.CoinGeckoClient
	log    *logrus.Logger
}

func NewMarketHandler(prices *service.PriceService, gecko *pricing.CoinGeckoClient, log *logrus.Logger) *MarketHandler {
	return &MarketHandler{prices: prices, gecko: gecko, log: log}
}

// Markets returns the coin list. "live" tells clients whether the data came
// from the feed or the seeded fallback.
func (h *MarketHandler) Markets(c *gin.Context) {
	perPage := 30
	if v := c.Query("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			perPage = n
		}
	}
	sparkline := c.Query("sparkline") == "true"
	coins, live, err := h.prices.Markets(c.Request.Context(), perPage, sparkline)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market data unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"live": live, "coins": coins, "count": len(coins)})
}

// Price returns the current USD unit price for one symbol.
func (h *MarketHandler) Price(c *gin.Context) {
	symbol := c.Param("symbol")
	price, err := h.prices.GetPrice(c.Request.Context(), symbol)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAssetNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrPriceUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			h.log.WithError(err).WithField("symbol", symbol).Error("price lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "price lookup failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": price})
}

// OHLC proxies candlestick data for the chart by CoinGecko coin id.
func (h *MarketHandler) OHLC(c *gin.Context) {
	id := c.Param("id")
	days := 7
	if v := c.Query("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			days = n
		}
	}
	points, err := h.gecko.OHLC(c.Request.Context(), id, days)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chart data unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "days": days, "ohlc": points})
}
