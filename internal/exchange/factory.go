package exchange

import (
	"fmt"
	"log/slog"

	"cyclescan/internal/config"
)

// NewClient creates a new exchange client based on the given name and configuration.
func NewClient(name string, logger *slog.Logger, cfg *config.Config) (ExchangeClient, error) {
	ex := cfg.Exchanges[name]
	switch name {
	case "kraken":
		return NewKrakenClient(logger, ex.URL), nil
	case "binance":
		return NewBinanceClient(logger, ex.URL), nil
	case "simulator":
		return NewSimulator(logger, cfg.Feed.Simulator, cfg.Catalog.StableAssets)
	default:
		return nil, fmt.Errorf("unknown exchange: %s", name)
	}
}
