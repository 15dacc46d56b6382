package store

import (
	"sync"

	"github.com/shopspring/decimal"
)

// PriceBook is a thread-safe symbol → current price table maintained by
// the caller. The ledger never fetches prices; it receives a snapshot.
type PriceBook struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewPriceBook creates a PriceBook seeded with the given prices.
// The seed map is copied.
func NewPriceBook(seed map[string]decimal.Decimal) *PriceBook {
	prices := make(map[string]decimal.Decimal, len(seed))
	for symbol, p := range seed {
		prices[symbol] = p
	}
	return &PriceBook{prices: prices}
}

// Set inserts or replaces the price for a symbol. Returns true if the
// symbol had no price before.
func (b *PriceBook) Set(symbol string, price decimal.Decimal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, existed := b.prices[symbol]
	b.prices[symbol] = price
	return !existed
}

// Snapshot returns a copy of the whole table.
func (b *PriceBook) Snapshot() map[string]decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(b.prices))
	for symbol, p := range b.prices {
		out[symbol] = p
	}
	return out
}
