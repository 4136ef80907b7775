package arbitrage

import (
	"math"
	"testing"

	"cyclescan/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLeg(t *testing.T) {
	btcUSDT := model.MustParseSymbol("BTC/USDT")
	quote := model.Quote{Bid: 68000, Ask: 68001}
	stables := NewStableSet("USDT", "USDC")

	tests := []struct {
		name      string
		from, to  model.Asset
		wantSide  Side
		wantPrice float64
	}{
		{name: "quote to base buys at ask", from: "USDT", to: "BTC", wantSide: Buy, wantPrice: 68001},
		{name: "base to quote sells at bid", from: "BTC", to: "USDT", wantSide: Sell, wantPrice: 68000},
		{name: "base to unrelated asset falls back to sell", from: "BTC", to: "ETH", wantSide: Sell, wantPrice: 68000},
		{name: "quote to unrelated asset falls back to buy", from: "USDT", to: "ETH", wantSide: Buy, wantPrice: 68001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, err := ResolveLeg(tt.from, tt.to, btcUSDT, quote, stables)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSide, conv.Side)
			assert.Equal(t, tt.wantPrice, conv.Price)
		})
	}

	t.Run("buy divides and sell multiplies", func(t *testing.T) {
		buy, err := ResolveLeg("USDT", "BTC", btcUSDT, quote, stables)
		require.NoError(t, err)
		assert.Equal(t, 1000/68001.0, buy.Apply(1000))

		sell, err := ResolveLeg("BTC", "USDT", btcUSDT, quote, stables)
		require.NoError(t, err)
		assert.Equal(t, 2*68000.0, sell.Apply(2))
	})

	t.Run("inverted orientation", func(t *testing.T) {
		ethBTC := model.MustParseSymbol("ETH/BTC")
		q := model.Quote{Bid: 0.051, Ask: 0.0511}

		conv, err := ResolveLeg("BTC", "ETH", ethBTC, q, stables)
		require.NoError(t, err)
		assert.Equal(t, Buy, conv.Side)
		assert.Equal(t, 1/0.0511, conv.Rate())

		conv, err = ResolveLeg("ETH", "BTC", ethBTC, q, stables)
		require.NoError(t, err)
		assert.Equal(t, Sell, conv.Side)
		assert.Equal(t, 0.051, conv.Rate())
	})

	t.Run("stable pair converts at par without reading the quote", func(t *testing.T) {
		usdcUSDT := model.MustParseSymbol("USDC/USDT")
		for _, q := range []model.Quote{{Bid: 0.98, Ask: 1.02}, {}} {
			conv, err := ResolveLeg("USDT", "USDC", usdcUSDT, q, stables)
			require.NoError(t, err)
			assert.Equal(t, Par, conv.Side)
			assert.Equal(t, 1.0, conv.Rate())
			assert.Equal(t, 250.0, conv.Apply(250))
		}
	})

	t.Run("only one stable side uses market prices", func(t *testing.T) {
		conv, err := ResolveLeg("USDT", "BTC", btcUSDT, quote, stables)
		require.NoError(t, err)
		assert.NotEqual(t, Par, conv.Side)
	})

	t.Run("asset not on symbol is an invalid leg", func(t *testing.T) {
		_, err := ResolveLeg("ETH", "BTC", btcUSDT, quote, stables)
		assert.ErrorIs(t, err, ErrInvalidLeg)

		_, err = ResolveLeg("FDUSD", "USDT", model.MustParseSymbol("USDC/USDT"), quote, stables)
		assert.ErrorIs(t, err, ErrInvalidLeg)
	})

	t.Run("crossed book prices each side independently", func(t *testing.T) {
		crossed := model.Quote{Bid: 68010, Ask: 68000}

		buy, err := ResolveLeg("USDT", "BTC", btcUSDT, crossed, nil)
		require.NoError(t, err)
		assert.Equal(t, 68000.0, buy.Price)

		sell, err := ResolveLeg("BTC", "USDT", btcUSDT, crossed, nil)
		require.NoError(t, err)
		assert.Equal(t, 68010.0, sell.Price)

		locked := model.Quote{Bid: 68000, Ask: 68000}
		buy, err = ResolveLeg("USDT", "BTC", btcUSDT, locked, nil)
		require.NoError(t, err)
		assert.False(t, math.IsInf(buy.Apply(1000), 0))
	})

	t.Run("unusable price side is rejected", func(t *testing.T) {
		_, err := ResolveLeg("USDT", "BTC", btcUSDT, model.Quote{Bid: 68000, Ask: 0}, nil)
		assert.ErrorIs(t, err, ErrInvalidQuote)

		_, err = ResolveLeg("BTC", "USDT", btcUSDT, model.Quote{Bid: math.NaN(), Ask: 68001}, nil)
		assert.ErrorIs(t, err, ErrInvalidQuote)

		_, err = ResolveLeg("BTC", "USDT", btcUSDT, model.Quote{Bid: -1, Ask: 68001}, nil)
		assert.ErrorIs(t, err, ErrInvalidQuote)

		// the unused side does not matter
		_, err = ResolveLeg("BTC", "USDT", btcUSDT, model.Quote{Bid: 68000, Ask: 0}, nil)
		assert.NoError(t, err)
	})
}
