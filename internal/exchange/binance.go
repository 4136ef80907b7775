package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"cyclescan/internal/model"
)

const defaultBinanceURL = "wss://stream.binance.com:9443/stream"

// BinanceClient implements the ExchangeClient interface for Binance.
type BinanceClient struct {
	logger  *slog.Logger
	baseURL string
	now     func() time.Time
}

// NewBinanceClient creates a new BinanceClient. An empty baseURL selects the
// public combined-stream endpoint.
func NewBinanceClient(logger *slog.Logger, baseURL string) *BinanceClient {
	if baseURL == "" {
		baseURL = defaultBinanceURL
	}
	return &BinanceClient{logger: logger, baseURL: baseURL, now: time.Now}
}

func (b *BinanceClient) GetName() string {
	return "binance"
}

// StartStream subscribes to the book ticker of every symbol through one
// combined stream and forwards best bid/ask updates.
func (b *BinanceClient) StartStream(ctx context.Context, priceChan chan<- model.PriceTick, symbols []model.Symbol) error {
	if len(symbols) == 0 {
		return fmt.Errorf("binance: no symbols to stream")
	}

	index := make(map[string]model.Symbol, len(symbols))
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		id := binanceSymbol(s)
		index[id] = s
		streams = append(streams, strings.ToLower(id)+"@bookTicker")
	}

	st := &stream{
		name:   "BinanceClient",
		url:    b.baseURL + "?streams=" + strings.Join(streams, "/"),
		logger: b.logger,
		decode: func(message []byte) ([]model.PriceTick, error) {
			return b.decode(message, index)
		},
	}
	return st.run(ctx, priceChan)
}

type binanceEnvelope struct {
	Stream string            `json:"stream"`
	Data   binanceBookTicker `json:"data"`
}

// BidQty and AskQty bind "B" and "A" exactly; encoding/json matches keys
// case-insensitively and would otherwise let them overwrite the prices.
type binanceBookTicker struct {
	Symbol string `json:"s"`
	Bid    string `json:"b"`
	BidQty string `json:"B"`
	Ask    string `json:"a"`
	AskQty string `json:"A"`
}

func (b *BinanceClient) decode(message []byte, index map[string]model.Symbol) ([]model.PriceTick, error) {
	var env binanceEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return nil, err
	}
	sym, ok := index[env.Data.Symbol]
	if !ok {
		return nil, fmt.Errorf("unexpected symbol %q on stream %q", env.Data.Symbol, env.Stream)
	}
	bid, err := strconv.ParseFloat(env.Data.Bid, 64)
	if err != nil {
		return nil, fmt.Errorf("bid price: %w", err)
	}
	ask, err := strconv.ParseFloat(env.Data.Ask, 64)
	if err != nil {
		return nil, fmt.Errorf("ask price: %w", err)
	}
	return []model.PriceTick{{
		Exchange:  "binance",
		Symbol:    sym,
		Bid:       bid,
		Ask:       ask,
		Timestamp: b.now(),
	}}, nil
}

// binanceSymbol renders BTC/USDT as BTCUSDT.
func binanceSymbol(s model.Symbol) string {
	return strings.ToUpper(string(s.Base) + string(s.Quote))
}
