package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"vexchange/pkg/pricing"
)

// Client is a single price-stream connection.
type Client struct {
	Send   chan []byte
	hub    *PriceHub
	mu     sync.Mutex
	closed bool
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
	if c.hub != nil {
		c.hub.unregister(c)
	}
}

// trySend queues a frame unless the client already closed or its buffer is
// full. The closed check and the send happen under the client's lock, so a
// concurrent Close can never turn this into a send on a closed channel.
func (c *Client) trySend(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// PriceTick is one market row pushed to subscribers.
type PriceTick struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Volume24h float64 `json:"volume_24h"`
}

type tickFrame struct {
	Type string      `json:"type"`
	Live bool        `json:"live"`
	At   int64       `json:"at"`
	Data []PriceTick `json:"data"`
}

// MarketSource supplies the periodic snapshot the hub broadcasts. The bool
// reports whether the snapshot came from the live feed or a fallback.
type MarketSource interface {
	Markets(ctx context.Context, perPage int, sparkline bool) ([]pricing.Coin, bool, error)
}

// PriceHub broadcasts market ticks to every connected client. New clients get
// the most recent frame immediately so they never wait a full interval.
type PriceHub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	last    []byte
}

func NewPriceHub() *PriceHub {
	return &PriceHub{clients: make(map[*Client]struct{})}
}

func (h *PriceHub) Register(c *Client) {
	h.mu.Lock()
	c.hub = h
	h.clients[c] = struct{}{}
	last := h.last
	h.mu.Unlock()
	if last != nil {
		c.trySend(last)
	}
}

func (h *PriceHub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *PriceHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *PriceHub) broadcast(frame tickFrame) {
	data, _ := json.Marshal(frame)
	h.mu.Lock()
	h.last = data
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.trySend(data)
	}
}

// Run polls the market source and pushes a frame every interval until the
// context is cancelled. Feed errors are logged and skipped; the previous frame
// stays current.
func (h *PriceHub) Run(ctx context.Context, source MarketSource, interval time.Duration, log *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	h.push(ctx, source, log)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.push(ctx, source, log)
		}
	}
}

func (h *PriceHub) push(ctx context.Context, source MarketSource, log *logrus.Logger) {
	coins, live, err := source.Markets(ctx, 50, false)
	if err != nil {
		log.WithError(err).Warn("price tick skipped")
		return
	}
	ticks := make([]PriceTick, 0, len(coins))
	for _, c := range coins {
		ticks = append(ticks, PriceTick{
			Symbol:    strings.ToUpper(c.Symbol),
			Name:      c.Name,
			Price:     c.Price,
			Change24h: c.Change24h,
			Volume24h: c.Volume24h,
		})
	}
	h.broadcast(tickFrame{Type: "prices", Live: live, At: time.Now().Unix(), Data: ticks})
}
