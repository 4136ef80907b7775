package arbitrage

import (
	"fmt"
	"math"

	"cyclescan/internal/model"
)

// Side is the trade a leg performs on the symbol's base asset.
type Side int

const (
	// Buy spends quote to acquire base at the ask.
	Buy Side = iota
	// Sell gives up base for quote at the bid.
	Sell
	// Par converts between two stable-value assets at 1:1.
	Par
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	case Par:
		return "par"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// StableSet is the set of assets whose mutual rate is fixed at 1:1.
type StableSet map[model.Asset]struct{}

// NewStableSet builds a StableSet from a list of assets.
func NewStableSet(assets ...model.Asset) StableSet {
	s := make(StableSet, len(assets))
	for _, a := range assets {
		s[a] = struct{}{}
	}
	return s
}

// Contains reports whether a is a stable-value asset.
func (s StableSet) Contains(a model.Asset) bool {
	_, ok := s[a]
	return ok
}

// Conversion is the pricing decision for one step of a cycle.
type Conversion struct {
	Side Side
	// Price is the ask for a buy, the bid for a sell and 1 for par.
	Price float64
}

// Apply converts amount of the step's input asset into the output asset,
// before fees.
func (c Conversion) Apply(amount float64) float64 {
	switch c.Side {
	case Buy:
		return amount / c.Price
	case Sell:
		return amount * c.Price
	default:
		return amount
	}
}

// Rate is the number of output units received per input unit.
func (c Conversion) Rate() float64 {
	return c.Apply(1)
}

// ResolveLeg decides how converting from into to is priced on sym.
//
// A leg that spends the quote asset buys base at the ask; a leg that spends
// the base asset sells it at the bid. When both assets of the symbol are
// stable-value assets the leg is converted 1:1 and the quote is not read.
// Bid and ask are each used on their own, so a crossed book still prices.
func ResolveLeg(from, to model.Asset, sym model.Symbol, q model.Quote, stables StableSet) (Conversion, error) {
	if from != sym.Base && from != sym.Quote {
		return Conversion{}, fmt.Errorf("%w: %s is not traded by %s", ErrInvalidLeg, from, sym)
	}
	if stables.Contains(sym.Base) && stables.Contains(sym.Quote) {
		return Conversion{Side: Par, Price: 1}, nil
	}

	var side Side
	switch {
	case from == sym.Quote && to == sym.Base:
		side = Buy
	case from == sym.Base && to == sym.Quote:
		side = Sell
	case from == sym.Base:
		side = Sell
	default:
		side = Buy
	}

	price := q.Ask
	if side == Sell {
		price = q.Bid
	}
	if !(price > 0) || math.IsInf(price, 0) {
		return Conversion{}, fmt.Errorf("%w: %s %s price %v", ErrInvalidQuote, sym, side, price)
	}
	return Conversion{Side: side, Price: price}, nil
}
