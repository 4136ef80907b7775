// Package catalog builds and validates the fixed set of cycles the scanner
// evaluates.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"cyclescan/internal/config"
	"cyclescan/internal/model"
)

var (
	// ErrInvalidCycle is returned when a catalog entry fails validation.
	ErrInvalidCycle = errors.New("invalid cycle")
	// ErrDuplicateCycle is returned when two entries share an id.
	ErrDuplicateCycle = errors.New("duplicate cycle id")
)

// Catalog is an immutable, validated list of cycles.
type Catalog struct {
	cycles  []model.Cycle
	byID    map[string]int
	stables []model.Asset
}

// New validates cycles and builds a Catalog. When includeReverse is set,
// every cycle is followed by its reverse.
func New(cycles []model.Cycle, stables []model.Asset, includeReverse bool) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int)}
	add := func(cy model.Cycle) error {
		if err := cy.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCycle, err)
		}
		if _, dup := c.byID[cy.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateCycle, cy.ID)
		}
		c.byID[cy.ID] = len(c.cycles)
		c.cycles = append(c.cycles, clone(cy))
		return nil
	}
	for _, cy := range cycles {
		if err := add(cy); err != nil {
			return nil, err
		}
		if includeReverse {
			if err := add(cy.Reverse()); err != nil {
				return nil, err
			}
		}
	}
	c.stables = append([]model.Asset(nil), stables...)
	return c, nil
}

// FromConfig builds the catalog described by cfg, falling back to the
// built-in cycles when none are configured.
func FromConfig(cfg config.CatalogConfig) (*Catalog, error) {
	stables := make([]model.Asset, len(cfg.StableAssets))
	for i, a := range cfg.StableAssets {
		stables[i] = model.Asset(a)
	}
	if len(cfg.Cycles) == 0 {
		return New(Builtin(), stables, cfg.IncludeReverse)
	}

	cycles := make([]model.Cycle, 0, len(cfg.Cycles))
	for _, cc := range cfg.Cycles {
		cy, err := parseCycle(cc)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, cy)
	}
	return New(cycles, stables, cfg.IncludeReverse)
}

func parseCycle(cc config.CycleConfig) (model.Cycle, error) {
	cy := model.Cycle{ID: cc.ID}
	for _, a := range cc.Path {
		cy.Assets = append(cy.Assets, model.Asset(a))
	}
	for _, p := range cc.Pairs {
		sym, err := model.ParseSymbol(p)
		if err != nil {
			return model.Cycle{}, fmt.Errorf("%w %s: %w", ErrInvalidCycle, cc.ID, err)
		}
		cy.Symbols = append(cy.Symbols, sym)
	}
	return cy, nil
}

// Cycles returns a copy of the catalog in load order.
func (c *Catalog) Cycles() []model.Cycle {
	out := make([]model.Cycle, len(c.cycles))
	for i, cy := range c.cycles {
		out[i] = clone(cy)
	}
	return out
}

// Get returns the cycle with the given id.
func (c *Catalog) Get(id string) (model.Cycle, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Cycle{}, false
	}
	return clone(c.cycles[i]), true
}

// Len returns the number of cycles.
func (c *Catalog) Len() int {
	return len(c.cycles)
}

// StableAssets returns the assets traded at par with each other.
func (c *Catalog) StableAssets() []model.Asset {
	return append([]model.Asset(nil), c.stables...)
}

// Symbols returns every distinct symbol the catalog needs quotes for,
// sorted by name.
func (c *Catalog) Symbols() []model.Symbol {
	seen := make(map[model.Symbol]struct{})
	var out []model.Symbol
	for _, cy := range c.cycles {
		for _, s := range cy.Symbols {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func clone(c model.Cycle) model.Cycle {
	return model.Cycle{
		ID:      c.ID,
		Assets:  append([]model.Asset(nil), c.Assets...),
		Symbols: append([]model.Symbol(nil), c.Symbols...),
	}
}
