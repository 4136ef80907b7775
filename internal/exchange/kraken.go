package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"cyclescan/internal/model"
)

const defaultKrakenURL = "wss://ws.kraken.com/v2"

// KrakenClient implements the ExchangeClient interface for Kraken.
type KrakenClient struct {
	logger *slog.Logger
	url    string
	now    func() time.Time
}

// NewKrakenClient creates a new KrakenClient.
func NewKrakenClient(logger *slog.Logger, url string) *KrakenClient {
	if url == "" {
		url = defaultKrakenURL
	}
	return &KrakenClient{logger: logger, url: url, now: time.Now}
}

func (k *KrakenClient) GetName() string {
	return "kraken"
}

type krakenSubscription struct {
	Method string       `json:"method"`
	Params krakenParams `json:"params"`
}

type krakenParams struct {
	Channel string   `json:"channel"`
	Symbol  []string `json:"symbol"`
}

type krakenMessage struct {
	Channel string         `json:"channel"`
	Type    string         `json:"type"`
	Data    []krakenTicker `json:"data"`
}

type krakenTicker struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// StartStream subscribes to the v2 ticker channel for every symbol and
// forwards best bid/ask updates.
func (k *KrakenClient) StartStream(ctx context.Context, priceChan chan<- model.PriceTick, symbols []model.Symbol) error {
	if len(symbols) == 0 {
		return fmt.Errorf("kraken: no symbols to stream")
	}

	index := make(map[string]model.Symbol, len(symbols))
	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		index[s.String()] = s
		names = append(names, s.String())
	}

	st := &stream{
		name:   "KrakenClient",
		url:    k.url,
		logger: k.logger,
		subscribe: func(c *websocket.Conn) error {
			return c.WriteJSON(krakenSubscription{
				Method: "subscribe",
				Params: krakenParams{Channel: "ticker", Symbol: names},
			})
		},
		decode: func(message []byte) ([]model.PriceTick, error) {
			return k.decode(message, index)
		},
	}
	return st.run(ctx, priceChan)
}

func (k *KrakenClient) decode(message []byte, index map[string]model.Symbol) ([]model.PriceTick, error) {
	var msg krakenMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return nil, err
	}
	// heartbeats, status and subscription acks carry no prices
	if msg.Channel != "ticker" {
		return nil, nil
	}

	ticks := make([]model.PriceTick, 0, len(msg.Data))
	for _, d := range msg.Data {
		sym, ok := index[d.Symbol]
		if !ok {
			k.logger.Warn("KrakenClient: ticker for unrequested symbol", "symbol", d.Symbol)
			continue
		}
		ticks = append(ticks, model.PriceTick{
			Exchange:  "kraken",
			Symbol:    sym,
			Bid:       d.Bid,
			Ask:       d.Ask,
			Timestamp: k.now(),
		})
	}
	return ticks, nil
}
