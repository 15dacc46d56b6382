package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side indicates whether a trade bought or sold the instrument.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Trade is a single entry of the ledger's append-only log.
//
// A buy is a lot. A sell is a fragment of a sell request that consumed part or
// all of exactly one lot; ReferenceID is the ID of that buy. ReferenceID is
// zero on buys.
type Trade struct {
	ID          int64
	Symbol      string
	Side        Side
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	ReferenceID int64
	ExecutedAt  time.Time
}

// IsBuy reports whether the trade opened a lot.
func (t *Trade) IsBuy() bool {
	return t.Side == SideBuy
}

// IsSell reports whether the trade is a sell fragment.
func (t *Trade) IsSell() bool {
	return t.Side == SideSell
}
