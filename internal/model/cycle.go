package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedCycle is returned by Cycle.Validate.
var ErrMalformedCycle = errors.New("malformed cycle")

// Cycle is a closed conversion path. Step i converts Assets[i] into
// Assets[i+1] on market Symbols[i]. Cycles are built once from the catalog
// and treated as read-only afterwards.
type Cycle struct {
	ID      string
	Assets  []Asset
	Symbols []Symbol
}

// Legs returns the number of conversion steps.
func (c Cycle) Legs() int {
	return len(c.Symbols)
}

// Path renders the asset sequence, e.g. "USDT→BTC→USDC→USDT".
func (c Cycle) Path() string {
	parts := make([]string, len(c.Assets))
	for i, a := range c.Assets {
		parts[i] = string(a)
	}
	return strings.Join(parts, "→")
}

// Validate checks the structural invariants of the cycle.
func (c Cycle) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty id", ErrMalformedCycle)
	}
	if len(c.Assets) < 3 {
		return fmt.Errorf("%w %s: need at least two legs, got %d assets", ErrMalformedCycle, c.ID, len(c.Assets))
	}
	if len(c.Symbols) != len(c.Assets)-1 {
		return fmt.Errorf("%w %s: %d assets need %d symbols, got %d",
			ErrMalformedCycle, c.ID, len(c.Assets), len(c.Assets)-1, len(c.Symbols))
	}
	if c.Assets[0] != c.Assets[len(c.Assets)-1] {
		return fmt.Errorf("%w %s: starts at %s but ends at %s",
			ErrMalformedCycle, c.ID, c.Assets[0], c.Assets[len(c.Assets)-1])
	}
	for i, sym := range c.Symbols {
		if sym.Base == "" || sym.Quote == "" || sym.Base == sym.Quote {
			return fmt.Errorf("%w %s: step %d has invalid symbol %s", ErrMalformedCycle, c.ID, i, sym)
		}
		from, to := c.Assets[i], c.Assets[i+1]
		if !sym.Connects(from, to) {
			return fmt.Errorf("%w %s: step %d %s→%s cannot trade on %s", ErrMalformedCycle, c.ID, i, from, to, sym)
		}
	}
	return nil
}

// Reverse returns the same loop walked in the opposite direction.
func (c Cycle) Reverse() Cycle {
	n := len(c.Assets)
	assets := make([]Asset, n)
	for i, a := range c.Assets {
		assets[n-1-i] = a
	}
	symbols := make([]Symbol, len(c.Symbols))
	for i, s := range c.Symbols {
		symbols[len(c.Symbols)-1-i] = s
	}
	return Cycle{ID: c.ID + "-rev", Assets: assets, Symbols: symbols}
}
