package engine

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/fifoledger/internal/domain"
)

// Position is the open, unconsumed holding of one symbol.
type Position struct {
	Symbol            string
	Quantity          decimal.Decimal
	AverageEntryPrice decimal.Decimal // cost-weighted over the open remainder of each lot
}

// PnL is the profit and loss of the whole log at a set of current prices.
type PnL struct {
	Realized   decimal.Decimal
	Unrealized decimal.Decimal
	// MissingPrices lists symbols with open lots that had no current price.
	// Those lots were valued at zero.
	MissingPrices []string
}

// The functions below are pure reads over a trade log snapshot such as
// Ledger.Trades(). They re-scan the log on every call and never consult the
// Ledger's lot index, so they double as an independent check of it.

// remainingByBuy returns every buy keyed by ID together with its
// unconsumed quantity.
func remainingByBuy(trades []domain.Trade) (map[int64]domain.Trade, map[int64]decimal.Decimal, error) {
	buys := make(map[int64]domain.Trade)
	remaining := make(map[int64]decimal.Decimal)
	for _, t := range trades {
		if t.IsBuy() {
			buys[t.ID] = t
			remaining[t.ID] = t.Quantity
		}
	}

	for _, t := range trades {
		if !t.IsSell() {
			continue
		}
		buy, ok := buys[t.ReferenceID]
		if !ok || buy.Symbol != t.Symbol {
			return nil, nil, fmt.Errorf("sell %d references buy %d: %w",
				t.ID, t.ReferenceID, domain.ErrUnknownReference)
		}
		remaining[t.ReferenceID] = remaining[t.ReferenceID].Sub(t.Quantity)
	}

	return buys, remaining, nil
}

// Portfolio returns the open position of every symbol that still has one.
// Fully liquidated symbols are absent. The map is empty, never nil, when
// nothing is open.
func Portfolio(trades []domain.Trade) (map[string]Position, error) {
	_, remaining, err := remainingByBuy(trades)
	if err != nil {
		return nil, err
	}

	quantity := make(map[string]decimal.Decimal)
	cost := make(map[string]decimal.Decimal)
	for _, t := range trades {
		if !t.IsBuy() {
			continue
		}
		rem := remaining[t.ID]
		if !rem.IsPositive() {
			continue
		}
		quantity[t.Symbol] = quantity[t.Symbol].Add(rem)
		cost[t.Symbol] = cost[t.Symbol].Add(rem.Mul(t.Price))
	}

	result := make(map[string]Position, len(quantity))
	for symbol, qty := range quantity {
		if !qty.IsPositive() {
			continue
		}
		result[symbol] = Position{
			Symbol:            symbol,
			Quantity:          qty,
			AverageEntryPrice: cost[symbol].Div(qty),
		}
	}
	return result, nil
}

// PositionOf returns the open position of a single symbol. A symbol with
// nothing open yields a zero Position.
func PositionOf(trades []domain.Trade, symbol string) (Position, error) {
	portfolio, err := Portfolio(trades)
	if err != nil {
		return Position{}, err
	}
	if p, ok := portfolio[symbol]; ok {
		return p, nil
	}
	return Position{Symbol: symbol}, nil
}

// ComputePnL returns realized PnL over every sell fragment and unrealized
// PnL over every open lot valued at prices. A symbol missing from prices
// is valued at zero and reported in MissingPrices.
func ComputePnL(trades []domain.Trade, prices map[string]decimal.Decimal) (PnL, error) {
	buys, remaining, err := remainingByBuy(trades)
	if err != nil {
		return PnL{}, err
	}

	result := PnL{MissingPrices: []string{}}
	for _, t := range trades {
		if !t.IsSell() {
			continue
		}
		buy := buys[t.ReferenceID]
		result.Realized = result.Realized.Add(t.Price.Sub(buy.Price).Mul(t.Quantity))
	}

	for _, t := range trades {
		if !t.IsBuy() {
			continue
		}
		rem := remaining[t.ID]
		if !rem.IsPositive() {
			continue
		}
		current, ok := prices[t.Symbol]
		if !ok {
			current = decimal.Zero
			if !slices.Contains(result.MissingPrices, t.Symbol) {
				result.MissingPrices = append(result.MissingPrices, t.Symbol)
			}
		}
		result.Unrealized = result.Unrealized.Add(current.Sub(t.Price).Mul(rem))
	}
	slices.Sort(result.MissingPrices)

	return result, nil
}
