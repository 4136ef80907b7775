package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"cyclescan/internal/config"
	"cyclescan/internal/model"
)

// Simulator is a synthetic quote source. Each step moves every non-stable
// symbol's bid and ask together by a random fraction of the ask.
type Simulator struct {
	logger     *slog.Logger
	interval   time.Duration
	volatility float64
	stables    map[model.Asset]bool
	rng        *rand.Rand
	now        func() time.Time

	prices map[model.Symbol]model.Quote
}

// NewSimulator creates a Simulator seeded with cfg.Prices, or with
// DefaultPrices when none are configured.
func NewSimulator(logger *slog.Logger, cfg config.SimulatorConfig, stables []string) (*Simulator, error) {
	prices, err := InitialPrices(cfg.Prices)
	if err != nil {
		return nil, err
	}

	seed := uint64(cfg.Seed)
	if seed == 0 {
		seed = rand.Uint64()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}

	st := make(map[model.Asset]bool, len(stables))
	for _, a := range stables {
		st[model.Asset(a)] = true
	}

	return &Simulator{
		logger:     logger,
		interval:   interval,
		volatility: cfg.Volatility,
		stables:    st,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:        time.Now,
		prices:     prices,
	}, nil
}

func (s *Simulator) GetName() string {
	return "simulator"
}

// Step applies one round of fluctuation and returns the new quotes for
// symbols. Symbols without an initial price are skipped.
func (s *Simulator) Step(symbols []model.Symbol) []model.PriceTick {
	ordered := make([]model.Symbol, 0, len(s.prices))
	for sym := range s.prices {
		ordered = append(ordered, sym)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].String() < ordered[j].String() })

	for _, sym := range ordered {
		if s.stables[sym.Base] && s.stables[sym.Quote] {
			continue
		}
		q := s.prices[sym]
		change := (s.rng.Float64() - 0.5) * q.Ask * s.volatility
		q.Bid += change
		q.Ask += change
		if q.Bid >= q.Ask {
			q.Ask = q.Bid + q.Ask*0.0001
		}
		s.prices[sym] = q
	}

	ts := s.now()
	ticks := make([]model.PriceTick, 0, len(symbols))
	for _, sym := range symbols {
		q, ok := s.prices[sym]
		if !ok {
			continue
		}
		ticks = append(ticks, model.PriceTick{Exchange: "simulator", Symbol: sym, Bid: q.Bid, Ask: q.Ask, Timestamp: ts})
	}
	return ticks
}

// StartStream emits a full set of quotes every interval until ctx ends.
func (s *Simulator) StartStream(ctx context.Context, priceChan chan<- model.PriceTick, symbols []model.Symbol) error {
	for _, sym := range symbols {
		if _, ok := s.prices[sym]; !ok {
			s.logger.Warn("Simulator: no initial price, symbol will not be quoted", "symbol", sym.String())
		}
	}
	s.logger.Info("Simulator: streaming synthetic quotes", "symbols", len(symbols), "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		for _, tick := range s.Step(symbols) {
			select {
			case priceChan <- tick:
			case <-ctx.Done():
				return nil
			}
		}
		select {
		case <-ctx.Done():
			s.logger.Info("Simulator: context cancelled, shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

// InitialPrices parses configured starting quotes, falling back to
// DefaultPrices when none are given.
func InitialPrices(configured []config.PriceConfig) (map[model.Symbol]model.Quote, error) {
	if len(configured) == 0 {
		return DefaultPrices(), nil
	}
	prices := make(map[model.Symbol]model.Quote, len(configured))
	for _, p := range configured {
		sym, err := model.ParseSymbol(p.Symbol)
		if err != nil {
			return nil, fmt.Errorf("simulator: %w", err)
		}
		if p.Bid <= 0 || p.Ask <= 0 {
			return nil, fmt.Errorf("simulator: %s needs positive bid and ask", p.Symbol)
		}
		prices[sym] = model.Quote{Bid: p.Bid, Ask: p.Ask}
	}
	return prices, nil
}

// DefaultPrices returns the starting quotes for the built-in catalog.
func DefaultPrices() map[model.Symbol]model.Quote {
	raw := map[string]model.Quote{
		"BTC/USDT":   {Bid: 68000, Ask: 68001},
		"BTC/USDC":   {Bid: 68005, Ask: 68006},
		"USDC/USDT":  {Bid: 1.0, Ask: 1.0},
		"ETH/USDT":   {Bid: 3500, Ask: 3501},
		"ETH/USDC":   {Bid: 3502, Ask: 3503},
		"FDUSD/USDC": {Bid: 1.0, Ask: 1.0},
		"FDUSD/USDT": {Bid: 1.0, Ask: 1.0},
		"BNB/USDT":   {Bid: 580, Ask: 580.5},
		"BNB/FDUSD":  {Bid: 579.5, Ask: 580},
		"TUSD/USDT":  {Bid: 1.0, Ask: 1.0},
		"TUSD/USDC":  {Bid: 1.0, Ask: 1.0},
		"TUSD/FDUSD": {Bid: 1.0, Ask: 1.0},
		"BTC/FDUSD":  {Bid: 68010, Ask: 68012},
		"BTC/TUSD":   {Bid: 68015, Ask: 68017},
		"ETH/BTC":    {Bid: 0.051, Ask: 0.0511},
		"ETH/FDUSD":  {Bid: 3505, Ask: 3506},
		"BNB/ETH":    {Bid: 0.165, Ask: 0.166},
		"BNB/USDC":   {Bid: 581, Ask: 581.5},
		"BNB/BTC":    {Bid: 0.0085, Ask: 0.00855},
		"SOL/USDT":   {Bid: 150, Ask: 150.1},
		"SOL/USDC":   {Bid: 150.2, Ask: 150.3},
		"XRP/USDT":   {Bid: 0.52, Ask: 0.521},
		"XRP/USDC":   {Bid: 0.522, Ask: 0.523},
		"DOGE/USDT":  {Bid: 0.15, Ask: 0.151},
		"DOGE/USDC":  {Bid: 0.152, Ask: 0.153},
	}
	out := make(map[model.Symbol]model.Quote, len(raw))
	for s, q := range raw {
		out[model.MustParseSymbol(s)] = q
	}
	return out
}
