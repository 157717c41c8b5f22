package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CoinGeckoClient fetches live market data from the CoinGecko REST API.
type CoinGeckoClient struct {
	BaseURL string
	client  *http.Client
}

func NewCoinGeckoClient(baseURL string, timeout time.Duration) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CoinGeckoClient{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Coin is one market row, trimmed to what the exchange serves.
type Coin struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change24h"`
	MarketCap float64   `json:"market_cap"`
	Volume24h float64   `json:"volume24h"`
	Image     string    `json:"image"`
	Sparkline []float64 `json:"sparkline,omitempty"`
}

type marketRow struct {
	ID           string   `json:"id"`
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	CurrentPrice float64  `json:"current_price"`
	Change24h    *float64 `json:"price_change_percentage_24h"`
	MarketCap    float64  `json:"market_cap"`
	TotalVolume  float64  `json:"total_volume"`
	Image        string   `json:"image"`
	Sparkline    *struct {
		Price []float64 `json:"price"`
	} `json:"sparkline_in_7d"`
}

// Markets returns the top coins by market cap, priced in USD.
func (c *CoinGeckoClient) Markets(ctx context.Context, perPage int, sparkline bool) ([]Coin, error) {
	if perPage <= 0 || perPage > 100 {
		perPage = 30
	}
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", "1")
	q.Set("sparkline", strconv.FormatBool(sparkline))
	q.Set("price_change_percentage", "24h")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/coins/markets?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko markets: %d %s", resp.StatusCode, string(body))
	}
	var rows []marketRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	coins := make([]Coin, 0, len(rows))
	for _, r := range rows {
		coin := Coin{
			ID:        r.ID,
			Symbol:    strings.ToUpper(r.Symbol),
			Name:      r.Name,
			Price:     r.CurrentPrice,
			MarketCap: r.MarketCap,
			Volume24h: r.TotalVolume,
			Image:     r.Image,
		}
		if r.Change24h != nil {
			coin.Change24h = *r.Change24h
		}
		if r.Sparkline != nil {
			coin.Sparkline = r.Sparkline.Price
		}
		coins = append(coins, coin)
	}
	return coins, nil
}

// Price returns the live USD price for a symbol, or 0 with ok=false when the
// symbol is not in the market list.
func (c *CoinGeckoClient) Price(ctx context.Context, symbol string) (float64, bool, error) {
	coins, err := c.Markets(ctx, 100, false)
	if err != nil {
		return 0, false, err
	}
	want := strings.ToUpper(strings.TrimSpace(symbol))
	for _, coin := range coins {
		if coin.Symbol == want {
			return coin.Price, true, nil
		}
	}
	return 0, false, nil
}

// OHLCPoint is one candlestick for the chart endpoint.
type OHLCPoint struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// OHLC returns candlestick data for a CoinGecko coin id.
func (c *CoinGeckoClient) OHLC(ctx context.Context, id string, days int) ([]OHLCPoint, error) {
	if days <= 0 || days > 90 {
		days = 7
	}
	endpoint := fmt.Sprintf("%s/coins/%s/ohlc?vs_currency=usd&days=%d", c.BaseURL, url.PathEscape(id), days)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko ohlc: %d %s", resp.StatusCode, string(body))
	}
	var raw [][]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	points := make([]OHLCPoint, 0, len(raw))
	for _, row := range raw {
		if len(row) < 5 {
			continue
		}
		points = append(points, OHLCPoint{
			Time:  int64(row[0]) / 1000,
			Open:  row[1],
			High:  row[2],
			Low:   row[3],
			Close: row[4],
		})
	}
	return points, nil
}
