package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Asset is a currency or token identifier. Comparison is case-sensitive.
type Asset string

// Symbol is a trading pair. Prices are quoted as units of Quote per one Base.
type Symbol struct {
	Base  Asset
	Quote Asset
}

// ParseSymbol parses the canonical "BASE/QUOTE" form.
func ParseSymbol(s string) (Symbol, error) {
	base, quote, ok := strings.Cut(s, "/")
	if !ok || base == "" || quote == "" || strings.Contains(quote, "/") {
		return Symbol{}, fmt.Errorf("invalid symbol %q: want BASE/QUOTE", s)
	}
	if base == quote {
		return Symbol{}, fmt.Errorf("invalid symbol %q: base equals quote", s)
	}
	return Symbol{Base: Asset(base), Quote: Asset(quote)}, nil
}

// MustParseSymbol is ParseSymbol for literals known to be valid.
func MustParseSymbol(s string) Symbol {
	sym, err := ParseSymbol(s)
	if err != nil {
		panic(err)
	}
	return sym
}

func (s Symbol) String() string {
	return string(s.Base) + "/" + string(s.Quote)
}

// Connects reports whether the symbol trades a against b in either orientation.
func (s Symbol) Connects(a, b Asset) bool {
	return (s.Base == a && s.Quote == b) || (s.Base == b && s.Quote == a)
}

func (s Symbol) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Symbol) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	sym, err := ParseSymbol(raw)
	if err != nil {
		return err
	}
	*s = sym
	return nil
}
