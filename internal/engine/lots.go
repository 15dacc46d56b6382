package engine

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// OpenLot is the unconsumed remainder of a single buy trade.
type OpenLot struct {
	BuyID     int64
	Price     decimal.Decimal
	Remaining decimal.Decimal
}

// lotLess orders lots by buy ID ascending. IDs are allocated in creation
// order, so Min() is always the oldest open lot.
func lotLess(a, b OpenLot) bool {
	return a.BuyID < b.BuyID
}

// LotQueue holds the open lots of a single symbol in FIFO order.
// It is not safe for concurrent use; the Ledger's lock guards it.
type LotQueue struct {
	lots      *btree.BTreeG[OpenLot]
	available decimal.Decimal
}

// NewLotQueue creates an empty queue.
func NewLotQueue() *LotQueue {
	const degree = 32
	return &LotQueue{
		lots: btree.NewG[OpenLot](degree, lotLess),
	}
}

// Push adds a freshly opened lot.
func (q *LotQueue) Push(lot OpenLot) {
	q.lots.ReplaceOrInsert(lot)
	q.available = q.available.Add(lot.Remaining)
}

// Consume takes qty from the lot with the given buy ID. A lot whose
// remainder reaches zero leaves the queue. Consuming more than the lot
// holds, or from a lot that is not open, is a programming error and
// reports false without changing anything.
func (q *LotQueue) Consume(buyID int64, qty decimal.Decimal) bool {
	lot, ok := q.lots.Get(OpenLot{BuyID: buyID})
	if !ok || qty.GreaterThan(lot.Remaining) {
		return false
	}

	lot.Remaining = lot.Remaining.Sub(qty)
	if lot.Remaining.IsPositive() {
		q.lots.ReplaceOrInsert(lot)
	} else {
		q.lots.Delete(lot)
	}
	q.available = q.available.Sub(qty)
	return true
}

// Walk iterates open lots oldest first. The callback returns true to
// continue, false to stop.
func (q *LotQueue) Walk(fn func(OpenLot) bool) {
	q.lots.Ascend(fn)
}

// Available returns the total open quantity across all lots.
func (q *LotQueue) Available() decimal.Decimal {
	return q.available
}

// Len returns the number of open lots.
func (q *LotQueue) Len() int {
	return q.lots.Len()
}

// LotIndex maps symbol → LotQueue. Like LotQueue it relies on the
// Ledger's lock.
type LotIndex struct {
	queues map[string]*LotQueue
}

// NewLotIndex creates an empty index.
func NewLotIndex() *LotIndex {
	return &LotIndex{queues: make(map[string]*LotQueue)}
}

// Get returns the queue for symbol, or nil if the symbol never had a lot.
func (ix *LotIndex) Get(symbol string) *LotQueue {
	return ix.queues[symbol]
}

// GetOrCreate returns the queue for symbol, creating it if needed.
func (ix *LotIndex) GetOrCreate(symbol string) *LotQueue {
	q, ok := ix.queues[symbol]
	if !ok {
		q = NewLotQueue()
		ix.queues[symbol] = q
	}
	return q
}

// OpenLotCount returns the number of open lots across all symbols.
func (ix *LotIndex) OpenLotCount() int {
	n := 0
	for _, q := range ix.queues {
		n += q.Len()
	}
	return n
}

// Clear drops every queue.
func (ix *LotIndex) Clear() {
	ix.queues = make(map[string]*LotQueue)
}
