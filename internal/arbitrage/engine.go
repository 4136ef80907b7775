package arbitrage

import (
	"fmt"

	"cyclescan/internal/model"
)

// DefaultNotional is the starting amount a cycle is walked with.
const DefaultNotional = 1000.0

// Engine values cycles against quote snapshots. It keeps no state between
// calls and is safe for concurrent use.
type Engine struct {
	notional float64
	stables  StableSet
}

// NewEngine creates a new Engine. A non-positive notional falls back to
// DefaultNotional.
func NewEngine(notional float64, stables StableSet) *Engine {
	if !(notional > 0) {
		notional = DefaultNotional
	}
	if stables == nil {
		stables = StableSet{}
	}
	return &Engine{notional: notional, stables: stables}
}

// Notional returns the starting amount used for every cycle.
func (e *Engine) Notional() float64 {
	return e.notional
}

// Evaluate walks cycle against snapshot, charging fee on every leg after its
// conversion, and reports the net percentage return.
func (e *Engine) Evaluate(cycle model.Cycle, snapshot model.Snapshot, fee float64) (model.ValuationResult, error) {
	if !(fee >= 0 && fee < 1) {
		return model.ValuationResult{}, fmt.Errorf("%w: %v", ErrInvalidFee, fee)
	}
	if len(cycle.Assets) != len(cycle.Symbols)+1 {
		return model.ValuationResult{}, fmt.Errorf("%w: cycle %s has %d assets for %d symbols",
			ErrInvalidLeg, cycle.ID, len(cycle.Assets), len(cycle.Symbols))
	}

	legs := make([]model.Leg, len(cycle.Symbols))
	amount := e.notional
	for i, sym := range cycle.Symbols {
		q, ok := snapshot.Lookup(sym)
		if !ok {
			return model.ValuationResult{}, &MissingQuoteError{Symbol: sym}
		}
		conv, err := ResolveLeg(cycle.Assets[i], cycle.Assets[i+1], sym, q, e.stables)
		if err != nil {
			return model.ValuationResult{}, fmt.Errorf("cycle %s step %d: %w", cycle.ID, i, err)
		}
		amount = conv.Apply(amount)
		amount *= 1 - fee
		legs[i] = model.Leg{Symbol: sym, Bid: q.Bid, Ask: q.Ask}
	}

	path := make([]model.Asset, len(cycle.Assets))
	copy(path, cycle.Assets)

	return model.ValuationResult{
		CycleID:       cycle.ID,
		Path:          path,
		PercentReturn: (amount - e.notional) / e.notional * 100,
		Notional:      e.notional,
		FinalAmount:   amount,
		FeeRate:       fee,
		Legs:          legs,
		ObservedAt:    snapshot.TakenAt,
	}, nil
}

// Rates returns the pre-fee conversion rate of every leg of cycle.
func (e *Engine) Rates(cycle model.Cycle, snapshot model.Snapshot) ([]float64, error) {
	rates := make([]float64, len(cycle.Symbols))
	for i, sym := range cycle.Symbols {
		q, ok := snapshot.Lookup(sym)
		if !ok {
			return nil, &MissingQuoteError{Symbol: sym}
		}
		conv, err := ResolveLeg(cycle.Assets[i], cycle.Assets[i+1], sym, q, e.stables)
		if err != nil {
			return nil, fmt.Errorf("cycle %s step %d: %w", cycle.ID, i, err)
		}
		rates[i] = conv.Rate()
	}
	return rates, nil
}
