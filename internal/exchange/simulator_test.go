package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyclescan/internal/arbitrage"
	"cyclescan/internal/config"
	"cyclescan/internal/model"
)

var stableAssets = []string{"USDT", "USDC", "FDUSD", "TUSD"}

func allSymbols() []model.Symbol {
	var out []model.Symbol
	for s := range DefaultPrices() {
		out = append(out, s)
	}
	return out
}

// forceOpportunity lifts the BTC/USDC bid far enough above the BTC/USDT ask
// that USDT→BTC→USDC→USDT clears three legs of fees.
func forceOpportunity(s *Simulator, fee float64) {
	btcUSDC := model.MustParseSymbol("BTC/USDC")
	q := s.prices[btcUSDC]
	q.Bid = s.prices[btcUSDT].Ask * (1 + fee*3 + 0.005)
	if q.Ask <= q.Bid {
		q.Ask = q.Bid * 1.0001
	}
	s.prices[btcUSDC] = q
}

func TestSimulator_Step(t *testing.T) {
	cfg := config.SimulatorConfig{Volatility: 0.0005, Seed: 42}

	t.Run("deterministic for a seed", func(t *testing.T) {
		a, err := NewSimulator(testLogger, cfg, stableAssets)
		require.NoError(t, err)
		b, err := NewSimulator(testLogger, cfg, stableAssets)
		require.NoError(t, err)
		a.now = func() time.Time { return time.Time{} }
		b.now = a.now

		syms := []model.Symbol{btcUSDT, ethBTC}
		for i := 0; i < 5; i++ {
			assert.Equal(t, a.Step(syms), b.Step(syms))
		}
	})

	t.Run("stable pairs never move and books stay uncrossed", func(t *testing.T) {
		sim, err := NewSimulator(testLogger, config.SimulatorConfig{Volatility: 0.05, Seed: 7}, stableAssets)
		require.NoError(t, err)
		stable := make(map[model.Asset]bool, len(stableAssets))
		for _, a := range stableAssets {
			stable[model.Asset(a)] = true
		}
		for i := 0; i < 200; i++ {
			for _, tick := range sim.Step(allSymbols()) {
				if stable[tick.Symbol.Base] && stable[tick.Symbol.Quote] {
					assert.Equal(t, 1.0, tick.Bid)
					assert.Equal(t, 1.0, tick.Ask)
					continue
				}
				assert.Less(t, tick.Bid, tick.Ask, tick.Symbol.String())
			}
		}
	})

	t.Run("unknown symbols are not quoted", func(t *testing.T) {
		sim, err := NewSimulator(testLogger, cfg, stableAssets)
		require.NoError(t, err)
		ticks := sim.Step([]model.Symbol{model.MustParseSymbol("PEPE/USDT"), btcUSDT})
		require.Len(t, ticks, 1)
		assert.Equal(t, btcUSDT, ticks[0].Symbol)
	})
}

func TestSimulator_ForcedOpportunityClearsFees(t *testing.T) {
	const fee = 0.001
	sim, err := NewSimulator(testLogger, config.SimulatorConfig{Seed: 3}, stableAssets)
	require.NoError(t, err)
	forceOpportunity(sim, fee)

	stables := arbitrage.NewStableSet("USDT", "USDC", "FDUSD", "TUSD")
	engine := arbitrage.NewEngine(1000, stables)
	snap := model.NewSnapshot(sim.prices, time.Now())
	cycle := model.Cycle{
		ID:      "1",
		Assets:  []model.Asset{"USDT", "BTC", "USDC", "USDT"},
		Symbols: []model.Symbol{btcUSDT, model.MustParseSymbol("BTC/USDC"), model.MustParseSymbol("USDC/USDT")},
	}
	res, err := engine.Evaluate(cycle, snap, fee)
	require.NoError(t, err)
	assert.Greater(t, res.PercentReturn, 0.1)
}

func TestSimulator_ConfiguredPrices(t *testing.T) {
	_, err := NewSimulator(testLogger, config.SimulatorConfig{Prices: []config.PriceConfig{{Symbol: "BTCUSDT", Bid: 1, Ask: 2}}}, nil)
	assert.Error(t, err)

	_, err = NewSimulator(testLogger, config.SimulatorConfig{Prices: []config.PriceConfig{{Symbol: "BTC/USDT", Bid: 0, Ask: 2}}}, nil)
	assert.Error(t, err)

	sim, err := NewSimulator(testLogger, config.SimulatorConfig{Prices: []config.PriceConfig{{Symbol: "BTC/USDT", Bid: 1, Ask: 2}}}, nil)
	require.NoError(t, err)
	assert.Len(t, sim.prices, 1)
}

func TestSimulator_StartStream(t *testing.T) {
	sim, err := NewSimulator(testLogger, config.SimulatorConfig{Interval: 10 * time.Millisecond, Volatility: 0.0005, Seed: 1}, stableAssets)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan model.PriceTick)
	done := make(chan error, 1)
	go func() { done <- sim.StartStream(ctx, ticks, []model.Symbol{btcUSDT}) }()

	for i := 0; i < 3; i++ {
		tick := <-ticks
		assert.Equal(t, "simulator", tick.Exchange)
		assert.Equal(t, btcUSDT, tick.Symbol)
	}
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("StartStream did not stop")
	}
}
