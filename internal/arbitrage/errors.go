package arbitrage

import (
	"errors"
	"fmt"

	"cyclescan/internal/model"
)

var (
	// ErrInvalidLeg means a step's asset is not traded by its symbol.
	ErrInvalidLeg = errors.New("invalid leg")
	// ErrMissingQuote means the snapshot has no quote for a needed symbol.
	ErrMissingQuote = errors.New("missing quote")
	// ErrInvalidQuote means a needed price side is zero, negative or not finite.
	ErrInvalidQuote = errors.New("invalid quote")
	// ErrInvalidFee means the fee rate is outside [0, 1).
	ErrInvalidFee = errors.New("invalid fee rate")
)

// MissingQuoteError names the symbol that could not be priced.
type MissingQuoteError struct {
	Symbol model.Symbol
}

func (e *MissingQuoteError) Error() string {
	return fmt.Sprintf("missing quote for %s", e.Symbol)
}

func (e *MissingQuoteError) Is(target error) bool {
	return target == ErrMissingQuote
}
