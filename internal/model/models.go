package model

import "time"

// PriceTick represents a single top-of-book update from an exchange feed.
type PriceTick struct {
	Exchange  string
	Symbol    Symbol
	Bid       float64
	Ask       float64
	Timestamp time.Time
}

// Quote is the best bid and ask for a symbol at a point in time.
// A crossed book (Bid > Ask) is tolerated and kept as reported.
type Quote struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// Snapshot is a read-only view of the quotes used for one evaluation pass.
type Snapshot struct {
	Quotes  map[Symbol]Quote
	TakenAt time.Time
}

// NewSnapshot copies quotes into a new Snapshot so later changes to the
// source map are not visible through it.
func NewSnapshot(quotes map[Symbol]Quote, takenAt time.Time) Snapshot {
	cp := make(map[Symbol]Quote, len(quotes))
	for s, q := range quotes {
		cp[s] = q
	}
	return Snapshot{Quotes: cp, TakenAt: takenAt}
}

// Lookup returns the quote observed for sym.
func (s Snapshot) Lookup(sym Symbol) (Quote, bool) {
	q, ok := s.Quotes[sym]
	return q, ok
}

// Leg is a symbol bound to the quote observed for it during one pass.
type Leg struct {
	Symbol Symbol  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// ValuationResult is the outcome of walking one cycle against one snapshot.
type ValuationResult struct {
	CycleID       string    `json:"cycle_id"`
	Path          []Asset   `json:"path"`
	PercentReturn float64   `json:"percent_return"`
	Notional      float64   `json:"notional"`
	FinalAmount   float64   `json:"final_amount"`
	FeeRate       float64   `json:"fee_rate"`
	Legs          []Leg     `json:"legs"`
	ObservedAt    time.Time `json:"observed_at"`
}

// Opportunity is what the alerting side receives for a qualifying result.
type Opportunity struct {
	CycleID         string
	PathDescription string
	PercentReturn   float64
	LegsDescription string
	ObservedAt      time.Time
}
