// Package feed keeps the latest quote per symbol from a streaming source and
// hands out consistent snapshots of it.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"cyclescan/internal/model"
)

// ErrRejectedTick is returned by Apply for ticks that cannot be priced.
var ErrRejectedTick = errors.New("rejected tick")

type entry struct {
	quote     model.Quote
	updatedAt time.Time
}

// QuoteBook is the single owner of mutable quote state. Writers call Apply;
// readers only ever see copies through Snapshot.
type QuoteBook struct {
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	quotes map[model.Symbol]entry
}

// NewQuoteBook creates an empty QuoteBook.
func NewQuoteBook(logger *slog.Logger) *QuoteBook {
	return &QuoteBook{
		logger: logger,
		now:    time.Now,
		quotes: make(map[model.Symbol]entry),
	}
}

// Apply records tick as the latest quote for its symbol.
func (b *QuoteBook) Apply(tick model.PriceTick) error {
	if !usable(tick.Bid) || !usable(tick.Ask) {
		return fmt.Errorf("%w: %s bid=%v ask=%v", ErrRejectedTick, tick.Symbol, tick.Bid, tick.Ask)
	}
	ts := tick.Timestamp
	if ts.IsZero() {
		ts = b.now()
	}

	b.mu.Lock()
	b.quotes[tick.Symbol] = entry{quote: model.Quote{Bid: tick.Bid, Ask: tick.Ask}, updatedAt: ts}
	b.mu.Unlock()
	return nil
}

// Run applies ticks until the channel closes or ctx is cancelled.
func (b *QuoteBook) Run(ctx context.Context, ticks <-chan model.PriceTick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			if err := b.Apply(tick); err != nil {
				b.logger.Warn("QuoteBook: dropping tick", "exchange", tick.Exchange, "error", err)
			}
		}
	}
}

// Snapshot copies the current quotes. The copy is taken under one lock, so
// it never mixes quotes from before and after a concurrent update.
func (b *QuoteBook) Snapshot() model.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	quotes := make(map[model.Symbol]model.Quote, len(b.quotes))
	for s, e := range b.quotes {
		quotes[s] = e.quote
	}
	return model.Snapshot{Quotes: quotes, TakenAt: b.now()}
}

// Len returns the number of symbols with a quote.
func (b *QuoteBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.quotes)
}

// Stale returns the symbols whose last update is older than maxAge.
func (b *QuoteBook) Stale(maxAge time.Duration) []model.Symbol {
	cutoff := b.now().Add(-maxAge)

	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []model.Symbol
	for s, e := range b.quotes {
		if e.updatedAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

func usable(p float64) bool {
	return p > 0 && !math.IsInf(p, 0)
}
