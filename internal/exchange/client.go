package exchange

import (
	"context"

	"cyclescan/internal/model"
)

// ExchangeClient defines the standard interface for all quote sources.
type ExchangeClient interface {
	GetName() string
	StartStream(ctx context.Context, priceChan chan<- model.PriceTick, symbols []model.Symbol) error
}
