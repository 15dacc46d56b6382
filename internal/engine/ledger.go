package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/fifoledger/internal/domain"
	"github.com/efreitasn/fifoledger/internal/store"
)

// Ledger records buys and sells and matches every sell against the oldest
// open buys of the same symbol.
//
// The trade log, the ID counter, the open-lot index and the symbol registry
// are one resource guarded by a single RWMutex. Writes hold the write lock
// for their whole duration, so a reader never sees a sell that has been
// only partly fanned out into fragments.
type Ledger struct {
	mu      sync.RWMutex
	log     *store.TradeLog
	lots    *LotIndex
	symbols *domain.SymbolRegistry
	nextID  int64
	now     func() time.Time
}

// NewLedger creates a Ledger writing to the given log. The log must be
// empty; IDs start at 1.
func NewLedger(log *store.TradeLog, symbols *domain.SymbolRegistry) *Ledger {
	return &Ledger{
		log:     log,
		lots:    NewLotIndex(),
		symbols: symbols,
		nextID:  1,
		now:     time.Now,
	}
}

// RecordBuy appends a buy trade and opens a lot for it. It returns the new
// trade's ID.
func (l *Ledger) RecordBuy(symbol string, price, quantity decimal.Decimal) (int64, error) {
	if err := validateTrade(symbol, price, quantity); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	trade := domain.Trade{
		ID:         l.allocID(),
		Symbol:     symbol,
		Side:       domain.SideBuy,
		Price:      price,
		Quantity:   quantity,
		ExecutedAt: l.now(),
	}
	l.log.Append(trade)
	l.lots.GetOrCreate(symbol).Push(OpenLot{
		BuyID:     trade.ID,
		Price:     price,
		Remaining: quantity,
	})
	l.symbols.Register(symbol)

	return trade.ID, nil
}

// fill is one planned consumption of an open lot.
type fill struct {
	buyID    int64
	quantity decimal.Decimal
}

// RecordSell sells quantity of symbol at price, consuming open lots oldest
// first. Each lot touched produces its own sell trade referencing that
// lot's buy. It returns the IDs of the sell trades in creation order.
//
// If quantity exceeds the open quantity of the symbol, it returns
// domain.ErrInsufficientQuantity and records nothing.
func (l *Ledger) RecordSell(symbol string, price, quantity decimal.Decimal) ([]int64, error) {
	if err := validateTrade(symbol, price, quantity); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	queue := l.lots.Get(symbol)
	available := decimal.Zero
	if queue != nil {
		available = queue.Available()
	}
	if quantity.GreaterThan(available) {
		return nil, fmt.Errorf("sell %s %s with %s open: %w",
			quantity, symbol, available, domain.ErrInsufficientQuantity)
	}

	// Plan first, then apply. The queue must not change while it is walked.
	var fills []fill
	toSell := quantity
	queue.Walk(func(lot OpenLot) bool {
		take := decimal.Min(toSell, lot.Remaining)
		fills = append(fills, fill{buyID: lot.BuyID, quantity: take})
		toSell = toSell.Sub(take)
		return toSell.IsPositive()
	})

	executedAt := l.now()
	trades := make([]domain.Trade, len(fills))
	ids := make([]int64, len(fills))
	for i, f := range fills {
		trades[i] = domain.Trade{
			ID:          l.allocID(),
			Symbol:      symbol,
			Side:        domain.SideSell,
			Price:       price,
			Quantity:    f.quantity,
			ReferenceID: f.buyID,
			ExecutedAt:  executedAt,
		}
		ids[i] = trades[i].ID
	}

	l.log.Append(trades...)
	for _, f := range fills {
		if !queue.Consume(f.buyID, f.quantity) {
			// The plan came from the same queue under the same lock.
			panic(fmt.Sprintf("engine: lot %d cannot cover %s", f.buyID, f.quantity))
		}
	}

	return ids, nil
}

// Reset empties the ledger and restarts IDs at 1.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.log.Clear()
	l.lots.Clear()
	l.symbols.Reset()
	l.nextID = 1
}

// Trades returns a consistent copy of the trade log in ID order.
func (l *Ledger) Trades() []domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.log.All()
}

// OpenQuantity returns the total unconsumed quantity of symbol.
func (l *Ledger) OpenQuantity(symbol string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	queue := l.lots.Get(symbol)
	if queue == nil {
		return decimal.Zero
	}
	return queue.Available()
}

// openLots returns the open lots of symbol, oldest first. It must be
// called with the lock held.
func (l *Ledger) openLots(symbol string) []OpenLot {
	out := []OpenLot{}
	if queue := l.lots.Get(symbol); queue != nil {
		queue.Walk(func(lot OpenLot) bool {
			out = append(out, lot)
			return true
		})
	}
	return out
}

// SymbolSnapshot is one symbol's view of the ledger taken under a single
// read lock: the log, the symbol's open lots, and whether the symbol was
// ever recorded.
type SymbolSnapshot struct {
	Known  bool
	Trades []domain.Trade
	Lots   []OpenLot
}

// Snapshot returns the trade log and the open lots of symbol as of the
// same instant.
func (l *Ledger) Snapshot(symbol string) SymbolSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return SymbolSnapshot{
		Known:  l.symbols.Exists(symbol),
		Trades: l.log.All(),
		Lots:   l.openLots(symbol),
	}
}

// Trade returns the trade with the given ID.
func (l *Ledger) Trade(id int64) (domain.Trade, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.log.Get(id)
}

// TradeCount returns the length of the trade log.
func (l *Ledger) TradeCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.log.Len()
}

// OpenLotCount returns the number of open lots across all symbols.
func (l *Ledger) OpenLotCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lots.OpenLotCount()
}

// allocID must be called with the write lock held.
func (l *Ledger) allocID() int64 {
	id := l.nextID
	l.nextID++
	return id
}

func validateTrade(symbol string, price, quantity decimal.Decimal) error {
	if symbol == "" {
		return &domain.ValidationError{Message: "symbol must not be empty"}
	}
	if !price.IsPositive() {
		return &domain.ValidationError{Message: "price must be positive"}
	}
	if !quantity.IsPositive() {
		return &domain.ValidationError{Message: "quantity must be positive"}
	}
	if err := domain.CheckDecimalBounds(price); err != nil {
		return &domain.ValidationError{Message: "price: " + err.Error()}
	}
	if err := domain.CheckDecimalBounds(quantity); err != nil {
		return &domain.ValidationError{Message: "quantity: " + err.Error()}
	}
	return nil
}
